package draftengine

import (
	"path/filepath"
	"testing"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	clock := int64(5000)
	return New(s, func() int64 { return clock }), s
}

func TestSubmitDraftRejectsEmptyActions(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.SubmitDraft(SubmitRequest{CreatedBy: domain.ActorAgent, Actions: nil})
	if apierr.CodeOf(err) != apierr.Validation {
		t.Fatalf("code = %v, want Validation", apierr.CodeOf(err))
	}
}

func TestSubmitDraftRejectsMissingEntityID(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionUpdate, After: map[string]interface{}{"title": "x"}},
		},
	})
	if apierr.CodeOf(err) != apierr.Validation {
		t.Fatalf("code = %v, want Validation", apierr.CodeOf(err))
	}
}

func TestSubmitDraftWarnsOnUnknownEntity(t *testing.T) {
	e, _ := newTestEngine(t)
	missing := "does-not-exist"
	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionUpdate, EntityID: &missing, After: map[string]interface{}{"title": "x"}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want 1 entry", res.Warnings)
	}
	if res.Draft.Status != domain.DraftPending {
		t.Errorf("Status = %v, want pending", res.Draft.Status)
	}
}

func TestSubmitDraftBackfillsProjectID(t *testing.T) {
	e, _ := newTestEngine(t)
	projectID := "proj-1"
	res, err := e.SubmitDraft(SubmitRequest{
		ProjectID: &projectID,
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{"title": "t"}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
	if res.Draft.Actions[0].After["projectId"] != projectID {
		t.Errorf("projectId = %v, want %q", res.Draft.Actions[0].After["projectId"], projectID)
	}
}

func TestSubmitDraftWarnsMissingProjectID(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{"title": "t"}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "task create missing projectId" {
		t.Errorf("warnings = %v, want exactly the missing-projectId warning", res.Warnings)
	}
}

func TestSubmitDraftWarnsDueBeforeStart(t *testing.T) {
	e, _ := newTestEngine(t)
	projectID := "proj-1"
	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{
				"title": "t", "projectId": projectID, "startDate": float64(2000), "dueDate": float64(1000),
			}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if w == res.Draft.Actions[0].ID+": due before start" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a due-before-start warning", res.Warnings)
	}
}

func TestSubmitDraftWarnsCompletionOutOfRange(t *testing.T) {
	e, _ := newTestEngine(t)
	projectID := "proj-1"
	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{
				"title": "t", "projectId": projectID, "completion": float64(140),
			}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if w == res.Draft.Actions[0].ID+": completion 140 outside [0,100], will be clamped on apply" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a completion-range warning", res.Warnings)
	}
}

func TestSubmitDraftWarnsDueBeforeStartOnUpdateMergedWithStored(t *testing.T) {
	e, s := newTestEngine(t)
	projectID := "proj-1"
	taskID := "task-1"
	start := int64(2000)
	if err := s.WithTransaction(func(tx *store.Tx) error {
		if err := tx.InsertProject(&domain.Project{ID: projectID, Slug: projectID, Name: "p"}); err != nil {
			return err
		}
		return tx.InsertTask(&domain.Task{
			ID: taskID, ProjectID: projectID, Title: "t", Status: domain.TaskTODO,
			Priority: domain.PriorityMedium, StartDate: &start,
		})
	}); err != nil {
		t.Fatalf("InsertTask() error = %v", err)
	}

	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionUpdate, EntityID: &taskID, After: map[string]interface{}{
				"dueDate": float64(1000),
			}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if w == taskID+": due before start" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a due-before-start warning merged against the stored startDate", res.Warnings)
	}
}

func TestSubmitDraftWarnsDuplicateActionID(t *testing.T) {
	e, _ := newTestEngine(t)
	projectID := "proj-1"
	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{ID: "dup", EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{"title": "a", "projectId": projectID}},
			{ID: "dup", EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{"title": "b", "projectId": projectID}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if w == `duplicate action id "dup" in submitted batch` {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want duplicate-id warning", res.Warnings)
	}
}

func TestDiscardDraftIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	projectID := "proj-1"
	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{"title": "t", "projectId": projectID}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}

	if _, err := e.DiscardDraft(res.Draft.ID); err != nil {
		t.Fatalf("DiscardDraft() error = %v", err)
	}
	if _, err := e.DiscardDraft(res.Draft.ID); err != nil {
		t.Errorf("second DiscardDraft() should be idempotent, got error = %v", err)
	}
}

func TestDiscardDraftConflictWhenApplied(t *testing.T) {
	e, s := newTestEngine(t)
	projectID := "proj-1"
	res, err := e.SubmitDraft(SubmitRequest{
		CreatedBy: domain.ActorAgent,
		Actions: []domain.DraftAction{
			{EntityType: domain.EntityTask, Action: domain.ActionCreate, After: map[string]interface{}{"title": "t", "projectId": projectID}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}

	if err := s.WithTransaction(func(tx *store.Tx) error {
		return tx.MarkDraftApplied(res.Draft.ID, 9999)
	}); err != nil {
		t.Fatalf("MarkDraftApplied() error = %v", err)
	}

	if _, err := e.DiscardDraft(res.Draft.ID); apierr.CodeOf(err) != apierr.Conflict {
		t.Fatalf("code = %v, want Conflict", apierr.CodeOf(err))
	}
}
