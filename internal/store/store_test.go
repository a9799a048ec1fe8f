package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustProject(t *testing.T, s *Store, name string) *domain.Project {
	t.Helper()
	p := &domain.Project{ID: uuid.NewString(), Slug: name, Name: name, CreatedAt: 1000}
	if err := insertProject(s.q(), p); err != nil {
		t.Fatalf("insertProject() error = %v", err)
	}
	return p
}

func TestProjectCRUD(t *testing.T) {
	s := newTestStore(t)
	p := mustProject(t, s, "alpha")

	got, err := s.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Name != "alpha" {
		t.Errorf("Name = %q, want alpha", got.Name)
	}

	list, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	if _, err := s.GetProject("missing"); apierr.CodeOf(err) != apierr.NotFound {
		t.Errorf("GetProject(missing) code = %v, want NotFound", apierr.CodeOf(err))
	}
}

func TestProjectMergeValidation(t *testing.T) {
	s := newTestStore(t)
	p := mustProject(t, s, "alpha")

	if _, err := mergeProject(p, map[string]interface{}{"name": ""}); apierr.CodeOf(err) != apierr.Validation {
		t.Errorf("mergeProject empty name code = %v, want Validation", apierr.CodeOf(err))
	}

	merged, err := mergeProject(p, map[string]interface{}{"description": "new desc"})
	if err != nil {
		t.Fatalf("mergeProject() error = %v", err)
	}
	if merged.Description == nil || *merged.Description != "new desc" {
		t.Errorf("Description = %v, want new desc", merged.Description)
	}
}

func TestTaskCRUDAndListing(t *testing.T) {
	s := newTestStore(t)
	p := mustProject(t, s, "alpha")

	task := &domain.Task{
		ID: uuid.NewString(), ProjectID: p.ID, Title: "Write docs",
		Status: domain.TaskTODO, Priority: domain.PriorityMedium, CreatedAt: 1001,
		Predecessors: []string{},
	}
	if err := insertTask(s.q(), task); err != nil {
		t.Fatalf("insertTask() error = %v", err)
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Predecessors == nil {
		t.Error("Predecessors should never be nil on read")
	}

	page, err := s.ListTasks(domain.TaskFilter{ProjectID: p.ID, Q: "DOCS"})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Total = %d, want 1 (case-insensitive search)", page.Total)
	}
}

func TestTaskMergeClampsCompletion(t *testing.T) {
	task := &domain.Task{ID: "t1", Title: "x", Predecessors: []string{}}
	merged, err := mergeTask(task, map[string]interface{}{"completion": 150})
	if err != nil {
		t.Fatalf("mergeTask() error = %v", err)
	}
	if merged.Completion != 100 {
		t.Errorf("Completion = %d, want clamped 100", merged.Completion)
	}

	merged, err = mergeTask(task, map[string]interface{}{"completion": -10})
	if err != nil {
		t.Fatalf("mergeTask() error = %v", err)
	}
	if merged.Completion != 0 {
		t.Errorf("Completion = %d, want clamped 0", merged.Completion)
	}
}

func TestDraftLifecycle(t *testing.T) {
	s := newTestStore(t)

	d := &domain.Draft{
		ID: uuid.NewString(), CreatedBy: domain.ActorAgent, Status: domain.DraftPending,
		Actions: []domain.DraftAction{{ID: "a1", EntityType: domain.EntityTask, Action: domain.ActionCreate}},
		Warnings: []string{}, CreatedAt: 2000,
	}
	if err := s.InsertDraft(d); err != nil {
		t.Fatalf("InsertDraft() error = %v", err)
	}

	got, err := s.GetDraft(d.ID)
	if err != nil {
		t.Fatalf("GetDraft() error = %v", err)
	}
	if got.Status != domain.DraftPending {
		t.Errorf("Status = %v, want pending", got.Status)
	}
	if len(got.Actions) != 1 {
		t.Fatalf("len(Actions) = %d, want 1", len(got.Actions))
	}

	if err := s.MarkDraftDiscarded(d.ID); err != nil {
		t.Fatalf("MarkDraftDiscarded() error = %v", err)
	}
	got, err = s.GetDraft(d.ID)
	if err != nil {
		t.Fatalf("GetDraft() error = %v", err)
	}
	if got.Status != domain.DraftDiscarded {
		t.Errorf("Status = %v, want discarded", got.Status)
	}
}

func TestAuditLogInsertAndList(t *testing.T) {
	s := newTestStore(t)
	p := mustProject(t, s, "alpha")
	draftID := uuid.NewString()

	err := s.WithTransaction(func(tx *Tx) error {
		for i := 0; i < 3; i++ {
			a := &domain.AuditLog{
				ID: uuid.NewString(), ProjectID: &p.ID, EntityType: domain.EntityTask,
				EntityID: uuid.NewString(), Action: domain.AuditCreate, Actor: domain.ActorAgent,
				After: []byte(`{"title":"x"}`), Timestamp: int64(3000 + i), SourceDraftID: &draftID,
			}
			if err := tx.InsertAuditLog(a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}

	n, err := s.CountAuditLogsForDraft(draftID)
	if err != nil {
		t.Fatalf("CountAuditLogsForDraft() error = %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	page, err := s.ListAuditLogs(domain.AuditFilter{ProjectID: p.ID, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListAuditLogs() error = %v", err)
	}
	entries, ok := page.Data.([]*domain.AuditLog)
	if !ok {
		t.Fatalf("Data is %T, want []*domain.AuditLog", page.Data)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Timestamp < entries[1].Timestamp {
		t.Errorf("entries not ordered by timestamp DESC")
	}
	if entries[0].SeqNo == 0 {
		t.Errorf("SeqNo should be populated from rowid")
	}
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	s := newTestStore(t)

	err := s.WithTransaction(func(tx *Tx) error {
		p := &domain.Project{ID: uuid.NewString(), Slug: "x", Name: "x", CreatedAt: 1}
		if err := tx.InsertProject(p); err != nil {
			return err
		}
		return apierr.Internalf(nil, "force rollback")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	list, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected rollback to discard the insert, got %d projects", len(list))
	}
}
