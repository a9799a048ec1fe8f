// Package domain holds the Project/Task/Draft/AuditLog shapes shared by the
// store, draft engine, audit engine, tool registry, and HTTP facade.
package domain

import "encoding/json"

// EntityType is the kind of row a DraftAction or AuditLog entry targets.
type EntityType string

const (
	EntityProject EntityType = "project"
	EntityTask    EntityType = "task"
)

// ActionKind is the mutation a DraftAction performs.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
)

// Actor identifies who is responsible for a draft or audit entry.
type Actor string

const (
	ActorUser   Actor = "user"
	ActorAgent  Actor = "agent"
	ActorSystem Actor = "system"
)

// DraftStatus is the one-shot terminal state machine for a Draft.
type DraftStatus string

const (
	DraftPending   DraftStatus = "pending"
	DraftApplied   DraftStatus = "applied"
	DraftDiscarded DraftStatus = "discarded"
)

// AuditAction is the mutation an AuditLog entry records. It extends
// ActionKind with "rollback", which has no DraftAction equivalent.
type AuditAction string

const (
	AuditCreate   AuditAction = "create"
	AuditUpdate   AuditAction = "update"
	AuditDelete   AuditAction = "delete"
	AuditRollback AuditAction = "rollback"
)

// TaskStatus enumerates the lifecycle of a Task.
type TaskStatus string

const (
	TaskTODO       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// TaskPriority enumerates the urgency of a Task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

// Project is a top-level container that owns zero or more Tasks.
type Project struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	CreatedAt   int64   `json:"createdAt"`
}

// Task belongs to exactly one Project.
type Task struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"projectId"`
	Title        string       `json:"title"`
	Description  *string      `json:"description,omitempty"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	CreatedAt    int64        `json:"createdAt"`
	StartDate    *int64       `json:"startDate,omitempty"`
	DueDate      *int64       `json:"dueDate,omitempty"`
	Completion   int          `json:"completion"`
	Assignee     *string      `json:"assignee,omitempty"`
	WBS          *string      `json:"wbs,omitempty"`
	IsMilestone  bool         `json:"isMilestone,omitempty"`
	Predecessors []string     `json:"predecessors"`
}

// DraftAction is one proposed mutation inside a Draft, evaluated in array
// order at apply time.
type DraftAction struct {
	ID         string                 `json:"id"`
	EntityType EntityType             `json:"entityType"`
	Action     ActionKind             `json:"action"`
	EntityID   *string                `json:"entityId,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
}

// Draft is a persisted, named batch of proposed mutations, not yet applied.
type Draft struct {
	ID        string        `json:"id"`
	ProjectID *string       `json:"projectId,omitempty"`
	CreatedBy Actor         `json:"createdBy"`
	Status    DraftStatus   `json:"status"`
	Reason    *string       `json:"reason,omitempty"`
	Actions   []DraftAction `json:"actions"`
	Warnings  []string      `json:"warnings"`
	CreatedAt int64         `json:"createdAt"`
	AppliedAt *int64        `json:"appliedAt,omitempty"`
}

// AuditLog is one append-only record of an entity mutation, carrying full
// before/after snapshots sufficient for display and reversal.
type AuditLog struct {
	ID                string          `json:"id"`
	SeqNo             int64           `json:"seqNo"`
	ProjectID         *string         `json:"projectId,omitempty"`
	EntityType        EntityType      `json:"entityType"`
	EntityID          string          `json:"entityId"`
	Action            AuditAction     `json:"action"`
	Actor             Actor           `json:"actor"`
	Before            RawJSON         `json:"before"`
	After             RawJSON         `json:"after"`
	Reason            *string         `json:"reason,omitempty"`
	Timestamp         int64           `json:"timestamp"`
	SourceDraftID     *string         `json:"sourceDraftId,omitempty"`
	RollbackOfAuditID *string         `json:"rollbackOfAuditId,omitempty"`
}

// RawJSON is an opaque JSON document; nil marshals to the JSON null the
// spec's before/after semantics require for create/delete entries.
// json.RawMessage embeds the bytes verbatim into the parent document
// instead of base64-encoding them the way a plain []byte would.
type RawJSON = json.RawMessage

// DiffRow is one leaf-level difference between a before and after snapshot.
type DiffRow struct {
	Path   string      `json:"path"`
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// TaskFilter narrows a listTasks query.
type TaskFilter struct {
	ProjectID string
	Status    string
	Assignee  string
	Q         string
	Page      int
	PageSize  int
}

// AuditFilter narrows a listAuditLogs query.
type AuditFilter struct {
	ProjectID  string
	TaskID     string
	Actor      string
	Action     string
	EntityType string
	Q          string
	From       int64
	To         int64
	Page       int
	PageSize   int
}

// Page wraps a page of results with the pagination metadata the HTTP
// facade and tool registry both echo back verbatim.
type Page struct {
	Data     interface{} `json:"data"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// NormalizePage clamps page/pageSize to sane defaults the way every listing
// endpoint in this system expects.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
