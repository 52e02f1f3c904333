package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SystemActor is recorded when a mutation has no caller identity, e.g. the
// nightly reorder refresh.
const SystemActor = "system"

// AuditLog is one entry of the operations timeline: a PO transition, a
// receipt, a stock adjustment or a return decision.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) normalise(now time.Time) (AuditLog, error) {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return l, InvalidArgument("audit: action, entity and entity id are required")
	}
	if l.Actor == "" {
		l.Actor = SystemActor
	}
	if l.At.IsZero() {
		l.At = now
	}
	l.At = l.At.UTC()
	if l.Meta == nil {
		l.Meta = map[string]any{}
	}
	return l, nil
}

var errNoPool = errors.New("audit logger has no database pool")

// AuditLogger appends entries to audit_logs, read back by internal/audit.
type AuditLogger struct {
	pool *pgxpool.Pool
}

func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record appends one entry. Callers treat failures as non-fatal and log them.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	entry, err := entry.normalise(time.Now())
	if err != nil {
		return err
	}
	if l == nil || l.pool == nil {
		return Internal("shared.AuditLogger.Record", errNoPool)
	}
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return Internal("shared.AuditLogger.Record", err)
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, meta, entry.At)
	if err != nil {
		return Internal("shared.AuditLogger.Record", err)
	}
	return nil
}
