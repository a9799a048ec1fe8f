// Package notify carries audit events out of the apply/rollback transaction
// boundary onto the two fire-and-forget fabrics the teacher already ships:
// an embedded NATS server for external log shippers and a local desktop
// toast for interactive operators. Neither subscribes to its own
// publications, so this package cannot become a synchronization mechanism.
package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/projectcore/changecontrol/internal/domain"
)

const (
	// SubjectAuditApplied carries every non-rollback audit entry committed
	// by the apply engine.
	SubjectAuditApplied = "audit.applied"
	// SubjectAuditRollback carries rollback audit entries.
	SubjectAuditRollback = "audit.rollback"
)

// AuditEvent is the JSON payload published on both subjects.
type AuditEvent struct {
	AuditID    string            `json:"auditId"`
	EntityType domain.EntityType `json:"entityType"`
	EntityID   string            `json:"entityId"`
	Action     domain.AuditAction `json:"action"`
	Actor      domain.Actor      `json:"actor"`
	Timestamp  int64             `json:"timestamp"`
}

// Bus wraps an embedded NATS server plus a publishing connection. A nil
// *Bus is valid and every method becomes a no-op, so callers that run
// without NATS configured don't need to branch.
type Bus struct {
	mu   sync.RWMutex
	ns   *server.Server
	conn *nats.Conn
}

// NewBus starts an embedded NATS server on port (0 selects the NATS
// default 4222, -1 an OS-assigned port) and opens a publishing connection
// to it.
func NewBus(port int) (*Bus, error) {
	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("embedded NATS server not ready for connections")
	}

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS server: %w", err)
	}

	return &Bus{ns: ns, conn: conn}, nil
}

// URL returns the connection URL clients can use to tail the same subjects.
func (b *Bus) URL() string {
	if b == nil || b.ns == nil {
		return ""
	}
	return b.ns.ClientURL()
}

// PublishAudit fire-and-forgets one audit entry to the subject matching its
// action. Failures are logged, never returned: this is a notification tap,
// not part of the transaction's success criteria.
func (b *Bus) PublishAudit(a *domain.AuditLog) {
	if b == nil || b.conn == nil {
		return
	}

	subject := SubjectAuditApplied
	if a.Action == domain.AuditRollback {
		subject = SubjectAuditRollback
	}

	payload, err := json.Marshal(AuditEvent{
		AuditID: a.ID, EntityType: a.EntityType, EntityID: a.EntityID,
		Action: a.Action, Actor: a.Actor, Timestamp: a.Timestamp,
	})
	if err != nil {
		log.Printf("notify: failed to marshal audit event %s: %v", a.ID, err)
		return
	}

	if err := b.conn.Publish(subject, payload); err != nil {
		log.Printf("notify: failed to publish audit event %s: %v", a.ID, err)
	}
}

// Close drains the connection and shuts down the embedded server.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
	}
	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
	}
}
