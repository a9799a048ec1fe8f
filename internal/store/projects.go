package store

import (
	"database/sql"
	"fmt"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/stringutils"
)

func scanProject(row interface{ Scan(...interface{}) error }) (*domain.Project, error) {
	var p domain.Project
	var description, icon sql.NullString
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &description, &icon, &p.CreatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		p.Description = &description.String
	}
	if icon.Valid {
		p.Icon = &icon.String
	}
	return &p, nil
}

func getProject(q querier, id string) (*domain.Project, error) {
	row := q.QueryRow(`SELECT id, slug, name, description, icon, created_at FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("project %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internalf(err, "failed to read project %s", id)
	}
	return p, nil
}

func listProjects(q querier) ([]*domain.Project, error) {
	rows, err := q.Query(`SELECT id, slug, name, description, icon, created_at FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, apierr.Internalf(err, "failed to list projects")
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, apierr.Internalf(err, "failed to scan project row")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func insertProject(q querier, p *domain.Project) error {
	_, err := q.Exec(
		`INSERT INTO projects (id, slug, name, description, icon, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Name, p.Description, p.Icon, p.CreatedAt,
	)
	if err != nil {
		return apierr.Internalf(err, "failed to insert project %s", p.ID)
	}
	return nil
}

// mergeProject merges patch (only provided keys) onto the current row
// and returns the merged result; callers persist it with replaceProject.
func mergeProject(current *domain.Project, patch map[string]interface{}) (*domain.Project, error) {
	merged := *current
	if v, ok := patch["name"]; ok {
		s, ok := v.(string)
		if !ok || stringutils.IsEmpty(s) {
			return nil, apierr.Validationf("name must be a non-empty string")
		}
		merged.Name = s
	}
	if v, ok := patch["description"]; ok {
		s := toStringPtr(v)
		merged.Description = s
	}
	if v, ok := patch["icon"]; ok {
		s := toStringPtr(v)
		merged.Icon = s
	}
	return &merged, nil
}

func replaceProject(q querier, p *domain.Project) error {
	_, err := q.Exec(
		`UPDATE projects SET slug = ?, name = ?, description = ?, icon = ? WHERE id = ?`,
		p.Slug, p.Name, p.Description, p.Icon, p.ID,
	)
	if err != nil {
		return apierr.Internalf(err, "failed to update project %s", p.ID)
	}
	return nil
}

func deleteProject(q querier, id string) error {
	res, err := q.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return apierr.Internalf(err, "failed to delete project %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apierr.NotFoundf("project %s not found", id)
	}
	return nil
}

func toStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	if s == "" {
		return nil
	}
	return &s
}

// Store-level read methods (outside any transaction).

func (s *Store) GetProject(id string) (*domain.Project, error) { return getProject(s.q(), id) }
func (s *Store) ListProjects() ([]*domain.Project, error)      { return listProjects(s.q()) }

// Tx-level methods used by the apply/audit engine inside WithTransaction.

func (t *Tx) GetProject(id string) (*domain.Project, error)    { return getProject(t.q(), id) }
func (t *Tx) InsertProject(p *domain.Project) error            { return insertProject(t.q(), p) }
func (t *Tx) MergeProject(current *domain.Project, patch map[string]interface{}) (*domain.Project, error) {
	return mergeProject(current, patch)
}
func (t *Tx) ReplaceProject(p *domain.Project) error { return replaceProject(t.q(), p) }
func (t *Tx) DeleteProject(id string) error          { return deleteProject(t.q(), id) }
func (t *Tx) ListTaskIDsForProject(projectID string) ([]string, error) {
	rows, err := t.q().Query(`SELECT id FROM tasks WHERE project_id = ? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, apierr.Internalf(err, "failed to list tasks for project %s", projectID)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierr.Internalf(err, "failed to scan task id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
