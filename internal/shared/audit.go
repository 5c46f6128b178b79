package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row in audit_logs. Action follows the "module:verb"
// convention (ledger:receive, shipments:send, users:update) so entries can
// be filtered per module without parsing Meta.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) validate() error {
	switch {
	case l.Action == "":
		return errors.New("audit: action required")
	case l.Entity == "":
		return errors.New("audit: entity required")
	case l.EntityID == "":
		return errors.New("audit: entity id required")
	}
	return nil
}

// AuditLogger appends mutation records to audit_logs. Services call it
// best-effort after a committed transaction; a failed audit write never
// rolls back the mutation it describes.
type AuditLogger struct {
	pool *pgxpool.Pool
}

func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record inserts the entry. A zero At defers to the database clock.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit: logger not initialised")
	}
	if err := entry.validate(); err != nil {
		return err
	}
	meta := []byte("{}")
	if len(entry.Meta) > 0 {
		encoded, err := json.Marshal(entry.Meta)
		if err != nil {
			return err
		}
		meta = encoded
	}
	var at any
	if !entry.At.IsZero() {
		at = entry.At
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta, at)
	return err
}
