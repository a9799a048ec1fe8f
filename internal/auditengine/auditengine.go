// Package auditengine is the only subsystem allowed to mutate projects and
// tasks. It applies drafts inside one transaction, emitting a full
// before/after audit entry per effect, and can synthesize the inverse of
// any single audit entry as a rollback.
package auditengine

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/notify"
	"github.com/projectcore/changecontrol/internal/store"
)

// Engine applies drafts and rolls back individual audit entries.
type Engine struct {
	store    *store.Store
	bus      *notify.Bus
	toaster  *notify.Toaster
	now      func() int64
	OnCommit func(*domain.AuditLog)
}

// New builds an apply/audit engine. bus and toaster may be nil; both types
// treat a nil receiver as "disabled" so callers never need to branch.
func New(s *store.Store, bus *notify.Bus, toaster *notify.Toaster, now func() int64) *Engine {
	return &Engine{store: s, bus: bus, toaster: toaster, now: now}
}

// ApplyDraft re-reads the draft inside a transaction, replays its actions
// in declaration order, and marks it applied. Any per-action failure
// aborts the whole transaction; the draft remains pending and no partial
// writes or audit entries survive.
func (e *Engine) ApplyDraft(draftID string, actor domain.Actor) (*domain.Draft, error) {
	timestamp := e.now()
	var applied *domain.Draft
	var emitted []*domain.AuditLog

	err := e.store.WithTransaction(func(tx *store.Tx) error {
		draft, err := tx.GetDraftForUpdate(draftID)
		if err != nil {
			return err
		}
		if draft.Status != domain.DraftPending {
			return apierr.Conflictf("draft %s is not pending", draftID)
		}

		for _, action := range draft.Actions {
			entries, err := e.applyAction(tx, draft, action, actor, timestamp)
			if err != nil {
				return err
			}
			emitted = append(emitted, entries...)
		}

		if err := tx.MarkDraftApplied(draftID, timestamp); err != nil {
			return err
		}

		draft.Status = domain.DraftApplied
		draft.AppliedAt = &timestamp
		applied = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range emitted {
		e.bus.PublishAudit(a)
		if e.OnCommit != nil {
			e.OnCommit(a)
		}
	}

	log.Printf("auditengine: applied draft %s (%d audit entries)", draftID, len(emitted))
	return applied, nil
}

func (e *Engine) applyAction(tx *store.Tx, draft *domain.Draft, action domain.DraftAction, actor domain.Actor, timestamp int64) ([]*domain.AuditLog, error) {
	switch action.EntityType {
	case domain.EntityProject:
		return e.applyProjectAction(tx, draft, action, actor, timestamp)
	case domain.EntityTask:
		return e.applyTaskAction(tx, draft, action, actor, timestamp)
	default:
		return nil, apierr.Validationf("unknown entityType %q", action.EntityType)
	}
}

func (e *Engine) applyProjectAction(tx *store.Tx, draft *domain.Draft, action domain.DraftAction, actor domain.Actor, timestamp int64) ([]*domain.AuditLog, error) {
	switch action.Action {
	case domain.ActionCreate:
		id := extractID(action.After)
		if id == "" {
			id = uuid.NewString()
		}
		seed := &domain.Project{ID: id, CreatedAt: timestamp}
		merged, err := tx.MergeProject(seed, action.After)
		if err != nil {
			return nil, err
		}
		if merged.Slug == "" {
			merged.Slug = slugify(merged.Name)
		}
		if err := tx.InsertProject(merged); err != nil {
			return nil, err
		}
		after, err := marshalJSON(merged)
		if err != nil {
			return nil, err
		}
		audit := buildAudit(&merged.ID, domain.EntityProject, merged.ID, domain.AuditCreate, actor, nil, after, draft, timestamp)
		if err := tx.InsertAuditLog(audit); err != nil {
			return nil, err
		}
		return []*domain.AuditLog{audit}, nil

	case domain.ActionUpdate:
		id := mustEntityID(action)
		current, err := tx.GetProject(id)
		if err != nil {
			return nil, err
		}
		before, err := marshalJSON(current)
		if err != nil {
			return nil, err
		}
		merged, err := tx.MergeProject(current, action.After)
		if err != nil {
			return nil, err
		}
		if err := tx.ReplaceProject(merged); err != nil {
			return nil, err
		}
		after, err := marshalJSON(merged)
		if err != nil {
			return nil, err
		}
		audit := buildAudit(&merged.ID, domain.EntityProject, merged.ID, domain.AuditUpdate, actor, before, after, draft, timestamp)
		if err := tx.InsertAuditLog(audit); err != nil {
			return nil, err
		}
		return []*domain.AuditLog{audit}, nil

	case domain.ActionDelete:
		id := mustEntityID(action)
		current, err := tx.GetProject(id)
		if err != nil {
			return nil, err
		}
		before, err := marshalJSON(current)
		if err != nil {
			return nil, err
		}

		taskIDs, err := tx.ListTaskIDsForProject(id)
		if err != nil {
			return nil, err
		}

		var entries []*domain.AuditLog
		for _, taskID := range taskIDs {
			task, err := tx.GetTask(taskID)
			if err != nil {
				return nil, err
			}
			taskBefore, err := marshalJSON(task)
			if err != nil {
				return nil, err
			}
			if err := tx.DeleteTask(taskID); err != nil {
				return nil, err
			}
			taskAudit := buildAudit(&id, domain.EntityTask, taskID, domain.AuditDelete, actor, taskBefore, nil, draft, timestamp)
			if err := tx.InsertAuditLog(taskAudit); err != nil {
				return nil, err
			}
			entries = append(entries, taskAudit)
		}

		if err := tx.DeleteProject(id); err != nil {
			return nil, err
		}
		projectAudit := buildAudit(&id, domain.EntityProject, id, domain.AuditDelete, actor, before, nil, draft, timestamp)
		if err := tx.InsertAuditLog(projectAudit); err != nil {
			return nil, err
		}
		entries = append(entries, projectAudit)
		return entries, nil

	default:
		return nil, apierr.Validationf("unknown action %q", action.Action)
	}
}

func (e *Engine) applyTaskAction(tx *store.Tx, draft *domain.Draft, action domain.DraftAction, actor domain.Actor, timestamp int64) ([]*domain.AuditLog, error) {
	switch action.Action {
	case domain.ActionCreate:
		id := extractID(action.After)
		if id == "" {
			id = uuid.NewString()
		}
		seed := &domain.Task{ID: id, CreatedAt: timestamp, Predecessors: []string{}}
		merged, err := tx.MergeTask(seed, action.After)
		if err != nil {
			return nil, err
		}
		if merged.Status == "" {
			merged.Status = domain.TaskTODO
		}
		if merged.Priority == "" {
			merged.Priority = domain.PriorityMedium
		}
		if merged.ProjectID == "" {
			return nil, apierr.Validationf("task %s: projectId is required to apply", id)
		}
		if err := tx.InsertTask(merged); err != nil {
			return nil, err
		}
		after, err := marshalJSON(merged)
		if err != nil {
			return nil, err
		}
		audit := buildAudit(&merged.ProjectID, domain.EntityTask, merged.ID, domain.AuditCreate, actor, nil, after, draft, timestamp)
		if err := tx.InsertAuditLog(audit); err != nil {
			return nil, err
		}
		return []*domain.AuditLog{audit}, nil

	case domain.ActionUpdate:
		id := mustEntityID(action)
		current, err := tx.GetTask(id)
		if err != nil {
			return nil, err
		}
		before, err := marshalJSON(current)
		if err != nil {
			return nil, err
		}
		merged, err := tx.MergeTask(current, action.After)
		if err != nil {
			return nil, err
		}
		if err := tx.ReplaceTask(merged); err != nil {
			return nil, err
		}
		after, err := marshalJSON(merged)
		if err != nil {
			return nil, err
		}
		audit := buildAudit(&merged.ProjectID, domain.EntityTask, merged.ID, domain.AuditUpdate, actor, before, after, draft, timestamp)
		if err := tx.InsertAuditLog(audit); err != nil {
			return nil, err
		}
		return []*domain.AuditLog{audit}, nil

	case domain.ActionDelete:
		id := mustEntityID(action)
		current, err := tx.GetTask(id)
		if err != nil {
			return nil, err
		}
		before, err := marshalJSON(current)
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteTask(id); err != nil {
			return nil, err
		}
		audit := buildAudit(&current.ProjectID, domain.EntityTask, id, domain.AuditDelete, actor, before, nil, draft, timestamp)
		if err := tx.InsertAuditLog(audit); err != nil {
			return nil, err
		}
		return []*domain.AuditLog{audit}, nil

	default:
		return nil, apierr.Validationf("unknown action %q", action.Action)
	}
}

// RollbackAudit synthesizes and commits the inverse of one audit entry.
// Rolling back a rollback entry is rejected (P-5): chained reversal is the
// caller's responsibility, one entry at a time.
func (e *Engine) RollbackAudit(auditID string, actor domain.Actor) (*domain.AuditLog, error) {
	timestamp := e.now()
	var rollback *domain.AuditLog

	err := e.store.WithTransaction(func(tx *store.Tx) error {
		original, err := tx.GetAuditLogForUpdate(auditID)
		if err != nil {
			return err
		}
		if original.Action == domain.AuditRollback {
			return apierr.Validationf("cannot roll back a rollback entry")
		}

		var currentState, restoredState domain.RawJSON

		switch original.Action {
		case domain.AuditCreate:
			currentState, err = e.deleteForRollback(tx, original)
			if err != nil {
				return err
			}

		case domain.AuditDelete:
			restoredState, err = e.reinsertForRollback(tx, original)
			if err != nil {
				return err
			}

		case domain.AuditUpdate:
			currentState, restoredState, err = e.restoreForRollback(tx, original)
			if err != nil {
				return err
			}

		default:
			return apierr.Validationf("audit entry %s has no rollback-eligible action %q", auditID, original.Action)
		}

		rollback = &domain.AuditLog{
			ID:                uuid.NewString(),
			ProjectID:         original.ProjectID,
			EntityType:        original.EntityType,
			EntityID:          original.EntityID,
			Action:            domain.AuditRollback,
			Actor:             actor,
			Before:            currentState,
			After:             restoredState,
			Timestamp:         timestamp,
			RollbackOfAuditID: &auditID,
		}
		return tx.InsertAuditLog(rollback)
	})
	if err != nil {
		return nil, err
	}

	e.bus.PublishAudit(rollback)
	if e.OnCommit != nil {
		e.OnCommit(rollback)
	}
	if err := e.toaster.NotifyRollback(rollback); err != nil {
		log.Printf("auditengine: toast notification skipped: %v", err)
	}

	return rollback, nil
}

func (e *Engine) deleteForRollback(tx *store.Tx, original *domain.AuditLog) (domain.RawJSON, error) {
	switch original.EntityType {
	case domain.EntityProject:
		proj, err := tx.GetProject(original.EntityID)
		if err != nil {
			return nil, apierr.Conflictf("project %s already removed", original.EntityID)
		}
		state, err := marshalJSON(proj)
		if err != nil {
			return nil, err
		}
		return state, tx.DeleteProject(original.EntityID)
	case domain.EntityTask:
		task, err := tx.GetTask(original.EntityID)
		if err != nil {
			return nil, apierr.Conflictf("task %s already removed", original.EntityID)
		}
		state, err := marshalJSON(task)
		if err != nil {
			return nil, err
		}
		return state, tx.DeleteTask(original.EntityID)
	default:
		return nil, apierr.Validationf("unknown entityType %q", original.EntityType)
	}
}

func (e *Engine) reinsertForRollback(tx *store.Tx, original *domain.AuditLog) (domain.RawJSON, error) {
	switch original.EntityType {
	case domain.EntityProject:
		if _, err := tx.GetProject(original.EntityID); err == nil {
			return nil, apierr.Conflictf("project %s id collision on rollback", original.EntityID)
		}
		var proj domain.Project
		if err := json.Unmarshal(original.Before, &proj); err != nil {
			return nil, apierr.Internalf(err, "failed to decode rollback snapshot for project %s", original.EntityID)
		}
		if err := tx.InsertProject(&proj); err != nil {
			return nil, err
		}
		return marshalJSON(&proj)
	case domain.EntityTask:
		if _, err := tx.GetTask(original.EntityID); err == nil {
			return nil, apierr.Conflictf("task %s id collision on rollback", original.EntityID)
		}
		var task domain.Task
		if err := json.Unmarshal(original.Before, &task); err != nil {
			return nil, apierr.Internalf(err, "failed to decode rollback snapshot for task %s", original.EntityID)
		}
		if err := tx.InsertTask(&task); err != nil {
			return nil, err
		}
		return marshalJSON(&task)
	default:
		return nil, apierr.Validationf("unknown entityType %q", original.EntityType)
	}
}

func (e *Engine) restoreForRollback(tx *store.Tx, original *domain.AuditLog) (currentState, restoredState domain.RawJSON, err error) {
	switch original.EntityType {
	case domain.EntityProject:
		current, err := tx.GetProject(original.EntityID)
		if err != nil {
			return nil, nil, apierr.Conflictf("project %s no longer exists", original.EntityID)
		}
		currentState, err := marshalJSON(current)
		if err != nil {
			return nil, nil, err
		}
		var restored domain.Project
		if err := json.Unmarshal(original.Before, &restored); err != nil {
			return nil, nil, apierr.Internalf(err, "failed to decode rollback snapshot for project %s", original.EntityID)
		}
		if err := tx.ReplaceProject(&restored); err != nil {
			return nil, nil, err
		}
		restoredState, err := marshalJSON(&restored)
		if err != nil {
			return nil, nil, err
		}
		return currentState, restoredState, nil
	case domain.EntityTask:
		current, err := tx.GetTask(original.EntityID)
		if err != nil {
			return nil, nil, apierr.Conflictf("task %s no longer exists", original.EntityID)
		}
		currentState, err := marshalJSON(current)
		if err != nil {
			return nil, nil, err
		}
		var restored domain.Task
		if err := json.Unmarshal(original.Before, &restored); err != nil {
			return nil, nil, apierr.Internalf(err, "failed to decode rollback snapshot for task %s", original.EntityID)
		}
		if err := tx.ReplaceTask(&restored); err != nil {
			return nil, nil, err
		}
		restoredState, err := marshalJSON(&restored)
		if err != nil {
			return nil, nil, err
		}
		return currentState, restoredState, nil
	default:
		return nil, nil, apierr.Validationf("unknown entityType %q", original.EntityType)
	}
}

func buildAudit(projectID *string, entityType domain.EntityType, entityID string, action domain.AuditAction, actor domain.Actor, before, after domain.RawJSON, draft *domain.Draft, timestamp int64) *domain.AuditLog {
	draftID := draft.ID
	return &domain.AuditLog{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		EntityType:    entityType,
		EntityID:      entityID,
		Action:        action,
		Actor:         actor,
		Before:        before,
		After:         after,
		Reason:        draft.Reason,
		Timestamp:     timestamp,
		SourceDraftID: &draftID,
	}
}

func marshalJSON(v interface{}) (domain.RawJSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apierr.Internalf(err, "failed to marshal snapshot")
	}
	return b, nil
}

func extractID(after map[string]interface{}) string {
	if v, ok := after["id"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func mustEntityID(action domain.DraftAction) string {
	if action.EntityID == nil {
		return ""
	}
	return *action.EntityID
}

func slugify(name string) string {
	out := make([]rune, 0, len(name))
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			lastDash = false
		default:
			if !lastDash && len(out) > 0 {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return uuid.NewString()
	}
	return string(out)
}

// GetAuditLog, ListAuditLogs, and DiffForAudit are thin pass-throughs kept
// on Engine so callers only depend on one audit-side collaborator.

func (e *Engine) GetAuditLog(id string) (*domain.AuditLog, error) { return e.store.GetAuditLog(id) }

func (e *Engine) ListAuditLogs(filter domain.AuditFilter) (*domain.Page, error) {
	return e.store.ListAuditLogs(filter)
}

func (e *Engine) DiffForAudit(id string) ([]domain.DiffRow, error) {
	a, err := e.store.GetAuditLog(id)
	if err != nil {
		return nil, err
	}
	return Diff(a.Before, a.After)
}
