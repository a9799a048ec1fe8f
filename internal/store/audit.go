package store

import (
	"database/sql"
	"strings"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/domain"
)

const auditSelectColumns = `rowid, id, project_id, entity_type, entity_id, action, actor, before, after, reason, timestamp, source_draft_id, rollback_of_audit_id`

func scanAudit(row interface{ Scan(...interface{}) error }) (*domain.AuditLog, error) {
	var a domain.AuditLog
	var projectID, reason, sourceDraftID, rollbackOf sql.NullString
	var before, after sql.NullString
	var entityType, action, actor string

	err := row.Scan(
		&a.SeqNo, &a.ID, &projectID, &entityType, &a.EntityID, &action, &actor,
		&before, &after, &reason, &a.Timestamp, &sourceDraftID, &rollbackOf,
	)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		a.ProjectID = &projectID.String
	}
	if reason.Valid {
		a.Reason = &reason.String
	}
	if sourceDraftID.Valid {
		a.SourceDraftID = &sourceDraftID.String
	}
	if rollbackOf.Valid {
		a.RollbackOfAuditID = &rollbackOf.String
	}
	if before.Valid {
		a.Before = []byte(before.String)
	}
	if after.Valid {
		a.After = []byte(after.String)
	}
	a.EntityType = domain.EntityType(entityType)
	a.Action = domain.AuditAction(action)
	a.Actor = domain.Actor(actor)

	return &a, nil
}

// InsertAuditLog appends one audit entry inside the apply/rollback
// transaction. before/after must already be the full post-serialization
// row shape (or nil for create/delete, per the spec's snapshot semantics).
func (t *Tx) InsertAuditLog(a *domain.AuditLog) error {
	_, err := t.tx.Exec(
		`INSERT INTO audit_logs (id, project_id, entity_type, entity_id, action, actor, before, after, reason, timestamp, source_draft_id, rollback_of_audit_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, string(a.EntityType), a.EntityID, string(a.Action), string(a.Actor),
		nullableRaw(a.Before), nullableRaw(a.After), a.Reason, a.Timestamp, a.SourceDraftID, a.RollbackOfAuditID,
	)
	if err != nil {
		return apierr.Internalf(err, "failed to insert audit log %s", a.ID)
	}
	return nil
}

func nullableRaw(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func (s *Store) GetAuditLog(id string) (*domain.AuditLog, error) {
	row := s.db.QueryRow(`SELECT `+auditSelectColumns+` FROM audit_logs WHERE id = ?`, id)
	a, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("audit log %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internalf(err, "failed to read audit log %s", id)
	}
	return a, nil
}

// GetAuditLogForUpdate re-reads the audit entry inside the rollback
// transaction, so the rollback sees a consistent snapshot of the entry.
func (t *Tx) GetAuditLogForUpdate(id string) (*domain.AuditLog, error) {
	row := t.tx.QueryRow(`SELECT `+auditSelectColumns+` FROM audit_logs WHERE id = ?`, id)
	a, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("audit log %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internalf(err, "failed to read audit log %s", id)
	}
	return a, nil
}

// ListAuditLogs returns a paginated, filtered audit listing ordered by
// timestamp descending.
func (s *Store) ListAuditLogs(filter domain.AuditFilter) (*domain.Page, error) {
	page, pageSize := domain.NormalizePage(filter.Page, filter.PageSize)

	where := []string{"1=1"}
	var args []interface{}

	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.TaskID != "" {
		where = append(where, "entity_type = 'task' AND entity_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.Q != "" {
		where = append(where, "(LOWER(COALESCE(reason,'')) LIKE ? OR LOWER(entity_id) LIKE ?)")
		needle := "%" + strings.ToLower(filter.Q) + "%"
		args = append(args, needle, needle)
	}
	if filter.From > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.From)
	}
	if filter.To > 0 {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.To)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countRow := s.db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE `+whereClause, args...)
	if err := countRow.Scan(&total); err != nil {
		return nil, apierr.Internalf(err, "failed to count audit logs")
	}

	listArgs := append(append([]interface{}{}, args...), pageSize, (page-1)*pageSize)
	rows, err := s.db.Query(
		`SELECT `+auditSelectColumns+` FROM audit_logs WHERE `+whereClause+` ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`,
		listArgs...,
	)
	if err != nil {
		return nil, apierr.Internalf(err, "failed to list audit logs")
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, apierr.Internalf(err, "failed to scan audit row")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internalf(err, "failed to iterate audit rows")
	}

	return &domain.Page{Data: out, Total: total, Page: page, PageSize: pageSize}, nil
}

// CountAuditLogsForDraft counts audit entries sharing a sourceDraftId, used
// by tests verifying the "N+1 entries, same sourceDraftId" invariant.
func (s *Store) CountAuditLogsForDraft(draftID string) (int, error) {
	var n int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE source_draft_id = ?`, draftID)
	if err := row.Scan(&n); err != nil {
		return 0, apierr.Internalf(err, "failed to count audit logs for draft %s", draftID)
	}
	return n, nil
}
