package store

import (
	"database/sql"
	"encoding/json"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
)

func scanDraft(row interface{ Scan(...interface{}) error }) (*domain.Draft, error) {
	var d domain.Draft
	var projectID, reason sql.NullString
	var appliedAt sql.NullInt64
	var actionsJSON, warningsJSON string
	var createdBy, status string

	err := row.Scan(&d.ID, &projectID, &createdBy, &status, &reason, &actionsJSON, &warningsJSON, &d.CreatedAt, &appliedAt)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		d.ProjectID = &projectID.String
	}
	if reason.Valid {
		d.Reason = &reason.String
	}
	if appliedAt.Valid {
		d.AppliedAt = &appliedAt.Int64
	}
	d.CreatedBy = domain.Actor(createdBy)
	d.Status = domain.DraftStatus(status)

	d.Actions = []domain.DraftAction{}
	if actionsJSON != "" {
		if err := json.Unmarshal([]byte(actionsJSON), &d.Actions); err != nil {
			return nil, err
		}
	}
	d.Warnings = []string{}
	if warningsJSON != "" {
		if err := json.Unmarshal([]byte(warningsJSON), &d.Warnings); err != nil {
			return nil, err
		}
	}

	return &d, nil
}

const draftColumns = `id, project_id, created_by, status, reason, actions, warnings, created_at, applied_at`

func (s *Store) GetDraft(id string) (*domain.Draft, error) {
	row := s.db.QueryRow(`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("draft %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internalf(err, "failed to read draft %s", id)
	}
	return d, nil
}

func (s *Store) ListDrafts() ([]*domain.Draft, error) {
	rows, err := s.db.Query(`SELECT ` + draftColumns + ` FROM drafts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apierr.Internalf(err, "failed to list drafts")
	}
	defer rows.Close()

	var out []*domain.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, apierr.Internalf(err, "failed to scan draft row")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// InsertDraft persists a new pending draft row.
func (s *Store) InsertDraft(d *domain.Draft) error {
	actionsJSON, err := json.Marshal(d.Actions)
	if err != nil {
		return apierr.Internalf(err, "failed to marshal draft actions")
	}
	warningsJSON, err := json.Marshal(d.Warnings)
	if err != nil {
		return apierr.Internalf(err, "failed to marshal draft warnings")
	}

	_, err = s.db.Exec(
		`INSERT INTO drafts (`+draftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, string(d.CreatedBy), string(d.Status), d.Reason,
		string(actionsJSON), string(warningsJSON), d.CreatedAt, d.AppliedAt,
	)
	if err != nil {
		return apierr.Internalf(err, "failed to insert draft %s", d.ID)
	}
	return nil
}

// GetDraftForUpdate re-reads a draft inside a transaction, guarding against
// a concurrent apply/discard racing the current one (P-4).
func (t *Tx) GetDraftForUpdate(id string) (*domain.Draft, error) {
	row := t.tx.QueryRow(`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("draft %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internalf(err, "failed to read draft %s", id)
	}
	return d, nil
}

// MarkDraftApplied transitions a pending draft to applied, stamping
// appliedAt. Callers must have already verified the draft is pending.
func (t *Tx) MarkDraftApplied(id string, appliedAt int64) error {
	_, err := t.tx.Exec(`UPDATE drafts SET status = ?, applied_at = ? WHERE id = ?`, string(domain.DraftApplied), appliedAt, id)
	if err != nil {
		return apierr.Internalf(err, "failed to mark draft %s applied", id)
	}
	return nil
}

// MarkDraftDiscarded transitions a pending draft to discarded.
func (s *Store) MarkDraftDiscarded(id string) error {
	_, err := s.db.Exec(`UPDATE drafts SET status = ? WHERE id = ?`, string(domain.DraftDiscarded), id)
	if err != nil {
		return apierr.Internalf(err, "failed to mark draft %s discarded", id)
	}
	return nil
}
