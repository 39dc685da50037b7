package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger. A nil pool yields a nil logger,
// which callers treat as "auditing disabled".
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	if pool == nil {
		return nil
	}
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return ErrAuditDisabled
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6)`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
