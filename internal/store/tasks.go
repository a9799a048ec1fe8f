package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/stringutils"
)

func scanTask(row interface{ Scan(...interface{}) error }) (*domain.Task, error) {
	var t domain.Task
	var description, assignee, wbs sql.NullString
	var startDate, dueDate sql.NullInt64
	var isMilestone int
	var predecessorsJSON string

	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &description, &t.Status, &t.Priority,
		&t.CreatedAt, &startDate, &dueDate, &t.Completion, &assignee, &wbs,
		&isMilestone, &predecessorsJSON,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		t.Description = &description.String
	}
	if assignee.Valid {
		t.Assignee = &assignee.String
	}
	if wbs.Valid {
		t.WBS = &wbs.String
	}
	if startDate.Valid {
		t.StartDate = &startDate.Int64
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Int64
	}
	t.IsMilestone = isMilestone != 0

	t.Predecessors = []string{}
	if predecessorsJSON != "" {
		if err := json.Unmarshal([]byte(predecessorsJSON), &t.Predecessors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal predecessors: %w", err)
		}
	}

	return &t, nil
}

const taskColumns = `id, project_id, title, description, status, priority, created_at, start_date, due_date, completion, assignee, wbs, is_milestone, predecessors`

func getTask(q querier, id string) (*domain.Task, error) {
	row := q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("task %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internalf(err, "failed to read task %s", id)
	}
	return t, nil
}

// ListTasks returns a paginated, filtered task listing ordered by createdAt
// ascending, tiebreak id, with q matched case-insensitively against title
// and description.
func (s *Store) ListTasks(filter domain.TaskFilter) (*domain.Page, error) {
	page, pageSize := domain.NormalizePage(filter.Page, filter.PageSize)

	where := []string{"1=1"}
	var args []interface{}

	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Assignee != "" {
		where = append(where, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	if filter.Q != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		needle := "%" + strings.ToLower(filter.Q) + "%"
		args = append(args, needle, needle)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countRow := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE `+whereClause, args...)
	if err := countRow.Scan(&total); err != nil {
		return nil, apierr.Internalf(err, "failed to count tasks")
	}

	listArgs := append(append([]interface{}{}, args...), pageSize, (page-1)*pageSize)
	rows, err := s.db.Query(
		`SELECT `+taskColumns+` FROM tasks WHERE `+whereClause+` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		listArgs...,
	)
	if err != nil {
		return nil, apierr.Internalf(err, "failed to list tasks")
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, apierr.Internalf(err, "failed to scan task row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internalf(err, "failed to iterate task rows")
	}

	return &domain.Page{Data: out, Total: total, Page: page, PageSize: pageSize}, nil
}

func insertTask(q querier, t *domain.Task) error {
	predecessorsJSON, err := json.Marshal(t.Predecessors)
	if err != nil {
		return apierr.Internalf(err, "failed to marshal predecessors")
	}
	_, err = q.Exec(
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.CreatedAt, t.StartDate, t.DueDate, t.Completion, t.Assignee, t.WBS,
		boolToInt(t.IsMilestone), string(predecessorsJSON),
	)
	if err != nil {
		return apierr.Internalf(err, "failed to insert task %s", t.ID)
	}
	return nil
}

func replaceTask(q querier, t *domain.Task) error {
	predecessorsJSON, err := json.Marshal(t.Predecessors)
	if err != nil {
		return apierr.Internalf(err, "failed to marshal predecessors")
	}
	_, err = q.Exec(
		`UPDATE tasks SET project_id=?, title=?, description=?, status=?, priority=?, start_date=?, due_date=?, completion=?, assignee=?, wbs=?, is_milestone=?, predecessors=? WHERE id=?`,
		t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.StartDate, t.DueDate, t.Completion, t.Assignee, t.WBS,
		boolToInt(t.IsMilestone), string(predecessorsJSON), t.ID,
	)
	if err != nil {
		return apierr.Internalf(err, "failed to update task %s", t.ID)
	}
	return nil
}

func deleteTask(q querier, id string) error {
	res, err := q.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return apierr.Internalf(err, "failed to delete task %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apierr.NotFoundf("task %s not found", id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mergeTask merges patch (only provided keys) onto current, applying the
// typed coercions and clamps draft/apply both rely on.
func mergeTask(current *domain.Task, patch map[string]interface{}) (*domain.Task, error) {
	merged := *current
	predecessors := append([]string{}, current.Predecessors...)
	merged.Predecessors = predecessors

	if v, ok := patch["title"]; ok {
		s, ok := v.(string)
		if !ok || stringutils.IsEmpty(s) {
			return nil, apierr.Validationf("title must be a non-empty string")
		}
		merged.Title = s
	}
	if v, ok := patch["projectId"]; ok {
		if s, ok := v.(string); ok && s != "" {
			merged.ProjectID = s
		}
	}
	if v, ok := patch["description"]; ok {
		merged.Description = toStringPtr(v)
	}
	if v, ok := patch["status"]; ok {
		s, _ := v.(string)
		merged.Status = domain.TaskStatus(strings.ToUpper(s))
	}
	if v, ok := patch["priority"]; ok {
		s, _ := v.(string)
		merged.Priority = domain.TaskPriority(strings.ToUpper(s))
	}
	if v, ok := patch["completion"]; ok {
		n, err := toInt(v)
		if err != nil {
			return nil, apierr.Validationf("completion must be a number")
		}
		merged.Completion = clampCompletion(n)
	}
	if v, ok := patch["assignee"]; ok {
		merged.Assignee = toStringPtr(v)
	}
	if v, ok := patch["wbs"]; ok {
		merged.WBS = toStringPtr(v)
	}
	if v, ok := patch["isMilestone"]; ok {
		b, _ := v.(bool)
		merged.IsMilestone = b
	}
	if v, ok := patch["startDate"]; ok {
		merged.StartDate = toInt64Ptr(v)
	}
	if v, ok := patch["dueDate"]; ok {
		merged.DueDate = toInt64Ptr(v)
	}
	if v, ok := patch["predecessors"]; ok {
		list, err := toStringSlice(v)
		if err != nil {
			return nil, apierr.Validationf("predecessors must be a list of strings")
		}
		merged.Predecessors = list
	}

	return &merged, nil
}

func clampCompletion(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toInt64Ptr(v interface{}) *int64 {
	if v == nil {
		return nil
	}
	switch n := v.(type) {
	case int:
		i := int64(n)
		return &i
	case int64:
		return &n
	case float64:
		i := int64(n)
		return &i
	default:
		return nil
	}
}

func toStringSlice(v interface{}) ([]string, error) {
	list, ok := v.([]interface{})
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, nil
		}
		return nil, fmt.Errorf("not a list: %v", v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("non-string predecessor entry: %v", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Store-level read methods.

func (s *Store) GetTask(id string) (*domain.Task, error) { return getTask(s.q(), id) }

// Tx-level methods used by the apply/audit engine.

func (t *Tx) GetTask(id string) (*domain.Task, error)  { return getTask(t.q(), id) }
func (t *Tx) InsertTask(task *domain.Task) error        { return insertTask(t.q(), task) }
func (t *Tx) ReplaceTask(task *domain.Task) error       { return replaceTask(t.q(), task) }
func (t *Tx) DeleteTask(id string) error                { return deleteTask(t.q(), id) }
func (t *Tx) MergeTask(current *domain.Task, patch map[string]interface{}) (*domain.Task, error) {
	return mergeTask(current, patch)
}

// TaskExistsByIDOrWBS reports whether a task reference (id or WBS code)
// resolves to a known task, for predecessor-reference warnings.
func (s *Store) TaskExistsByIDOrWBS(ref string) bool {
	var count int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = ? OR wbs = ?`, ref, ref)
	if err := row.Scan(&count); err != nil {
		return false
	}
	return count > 0
}
