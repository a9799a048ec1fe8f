// Package draftengine accepts batches of proposed mutations, validates them
// softly, and persists them as pending drafts for the audit engine to apply
// or discard later. It never writes to projects or tasks itself.
package draftengine

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/store"
)

// Engine validates and persists drafts. It reads projects and tasks to
// generate submission-time warnings but only ever writes draft rows.
type Engine struct {
	store *store.Store
	now   func() int64
}

// New builds a draft engine backed by s. now supplies the current Unix
// timestamp and is injectable so tests can control draft creation times.
func New(s *store.Store, now func() int64) *Engine {
	return &Engine{store: s, now: now}
}

// SubmitRequest mirrors the submitDraft wire contract.
type SubmitRequest struct {
	ProjectID *string
	CreatedBy domain.Actor
	Reason    *string
	Actions   []domain.DraftAction
}

// SubmitResult pairs the persisted draft with the warnings accumulated
// during validation.
type SubmitResult struct {
	Draft    *domain.Draft `json:"draft"`
	Warnings []string      `json:"warnings"`
}

// SubmitDraft validates req, assigns ids, persists the draft as pending,
// and returns it along with any soft warnings. Only structural problems
// (empty action list, missing discriminator fields) are hard VALIDATION
// failures; everything else surfaces as a warning for human review.
func (e *Engine) SubmitDraft(req SubmitRequest) (*SubmitResult, error) {
	if len(req.Actions) == 0 {
		return nil, apierr.Validationf("actions array must not be empty")
	}

	for i, a := range req.Actions {
		if a.EntityType != domain.EntityProject && a.EntityType != domain.EntityTask {
			return nil, apierr.Validationf("action %d: unknown entityType %q", i, a.EntityType)
		}
		switch a.Action {
		case domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete:
		default:
			return nil, apierr.Validationf("action %d: unknown action %q", i, a.Action)
		}
		if (a.Action == domain.ActionUpdate || a.Action == domain.ActionDelete) && a.EntityID == nil {
			return nil, apierr.Validationf("action %d: %s requires entityId", i, a.Action)
		}
		if (a.Action == domain.ActionCreate || a.Action == domain.ActionUpdate) && a.After == nil {
			return nil, apierr.Validationf("action %d: %s requires an after object", i, a.Action)
		}
	}

	var warnings []string
	seenIDs := map[string]bool{}
	actions := make([]domain.DraftAction, len(req.Actions))
	copy(actions, req.Actions)

	for i := range actions {
		a := &actions[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if seenIDs[a.ID] {
			warnings = append(warnings, fmt.Sprintf("duplicate action id %q in submitted batch", a.ID))
		}
		seenIDs[a.ID] = true

		if a.Action == domain.ActionUpdate || a.Action == domain.ActionDelete {
			if !e.entityExists(a.EntityType, *a.EntityID) {
				warnings = append(warnings, fmt.Sprintf("entity %s/%s not found; action may fail at apply time", a.EntityType, *a.EntityID))
			}
		}

		if a.EntityType == domain.EntityTask && a.Action == domain.ActionCreate {
			e.backfillProjectID(a, req.ProjectID, &warnings)
		}

		if a.EntityType == domain.EntityTask && (a.Action == domain.ActionCreate || a.Action == domain.ActionUpdate) {
			var current *domain.Task
			if a.Action == domain.ActionUpdate && a.EntityID != nil {
				current, _ = e.store.GetTask(*a.EntityID)
			}
			e.warnDueBeforeStart(a, current, &warnings)
			e.warnMissingPredecessors(a, &warnings)
			e.warnCompletionRange(a, &warnings)
		}
	}

	d := &domain.Draft{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		CreatedBy: req.CreatedBy,
		Status:    domain.DraftPending,
		Reason:    req.Reason,
		Actions:   actions,
		Warnings:  warnings,
		CreatedAt: e.now(),
	}

	if err := e.store.InsertDraft(d); err != nil {
		return nil, err
	}

	log.Printf("draftengine: submitted draft %s (%d actions, %d warnings)", d.ID, len(actions), len(warnings))

	return &SubmitResult{Draft: d, Warnings: warnings}, nil
}

func (e *Engine) entityExists(entityType domain.EntityType, id string) bool {
	switch entityType {
	case domain.EntityProject:
		_, err := e.store.GetProject(id)
		return err == nil
	case domain.EntityTask:
		_, err := e.store.GetTask(id)
		return err == nil
	default:
		return false
	}
}

// backfillProjectID fills a task create's projectId from the draft-level
// projectId when the action omitted it, warning if neither is present.
func (e *Engine) backfillProjectID(a *domain.DraftAction, draftProjectID *string, warnings *[]string) {
	if _, ok := a.After["projectId"]; ok {
		if s, ok := a.After["projectId"].(string); ok && s != "" {
			return
		}
	}
	if draftProjectID != nil && *draftProjectID != "" {
		a.After["projectId"] = *draftProjectID
		return
	}
	*warnings = append(*warnings, "task create missing projectId")
}

// warnDueBeforeStart checks startDate/dueDate after merging a.After onto
// current (the task's stored row, nil for a create), so an update that
// only supplies one of the two fields is still checked against the other
// field's existing value.
func (e *Engine) warnDueBeforeStart(a *domain.DraftAction, current *domain.Task, warnings *[]string) {
	startN, ok1 := mergedDateField(a, current, "startDate", func(t *domain.Task) *int64 { return t.StartDate })
	dueN, ok2 := mergedDateField(a, current, "dueDate", func(t *domain.Task) *int64 { return t.DueDate })
	if !ok1 || !ok2 {
		return
	}
	if dueN < startN {
		label := a.ID
		if a.EntityID != nil {
			label = *a.EntityID
		}
		*warnings = append(*warnings, fmt.Sprintf("%s: due before start", label))
	}
}

// mergedDateField resolves field's effective value: the draft action's
// After value if it supplies one, else current's stored value.
func mergedDateField(a *domain.DraftAction, current *domain.Task, field string, currentValue func(*domain.Task) *int64) (float64, bool) {
	if v, ok := a.After[field]; ok {
		if v == nil {
			return 0, false
		}
		return toFloat(v)
	}
	if current != nil {
		if ptr := currentValue(current); ptr != nil {
			return float64(*ptr), true
		}
	}
	return 0, false
}

// warnCompletionRange warns when completion falls outside [0,100]; the
// audit engine clamps it at apply time, but the out-of-range value is
// worth surfacing to a human reviewer before that happens.
func (e *Engine) warnCompletionRange(a *domain.DraftAction, warnings *[]string) {
	v, ok := a.After["completion"]
	if !ok || v == nil {
		return
	}
	n, ok := toFloat(v)
	if !ok {
		return
	}
	if n < 0 || n > 100 {
		label := a.ID
		if a.EntityID != nil {
			label = *a.EntityID
		}
		*warnings = append(*warnings, fmt.Sprintf("%s: completion %v outside [0,100], will be clamped on apply", label, v))
	}
}

func (e *Engine) warnMissingPredecessors(a *domain.DraftAction, warnings *[]string) {
	raw, ok := a.After["predecessors"]
	if !ok || raw == nil {
		return
	}
	list, ok := raw.([]interface{})
	if !ok {
		return
	}
	var missing []string
	for _, item := range list {
		ref, ok := item.(string)
		if !ok || ref == "" {
			continue
		}
		if !e.store.TaskExistsByIDOrWBS(ref) {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		label := a.ID
		if a.EntityID != nil {
			label = *a.EntityID
		}
		*warnings = append(*warnings, fmt.Sprintf("%s: predecessors not found: %s", label, strings.Join(missing, ", ")))
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// DiscardDraft transitions a pending draft to discarded. Idempotent if
// already discarded; CONFLICT if already applied.
func (e *Engine) DiscardDraft(id string) (*domain.Draft, error) {
	d, err := e.store.GetDraft(id)
	if err != nil {
		return nil, err
	}
	switch d.Status {
	case domain.DraftDiscarded:
		return d, nil
	case domain.DraftApplied:
		return nil, apierr.Conflictf("draft %s already applied", id)
	}
	if err := e.store.MarkDraftDiscarded(id); err != nil {
		return nil, err
	}
	d.Status = domain.DraftDiscarded
	return d, nil
}

// GetDraft and ListDrafts are thin pass-throughs kept on Engine so callers
// (HTTP facade, tool registry) only depend on one draft-side collaborator.
func (e *Engine) GetDraft(id string) (*domain.Draft, error) { return e.store.GetDraft(id) }
func (e *Engine) ListDrafts() ([]*domain.Draft, error)      { return e.store.ListDrafts() }
