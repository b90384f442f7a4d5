package authapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"closet/cmd/identity"
)

// Audit actions.
const (
	AuditSignup         = "auth.signup"
	AuditLoginSuccess   = "auth.login.success"
	AuditLoginFailed    = "auth.login.failed"
	AuditLogout         = "auth.logout"
	AuditAccountDelete  = "auth.account.delete"
	AuditPasswordChange = "auth.password.change"
	AuditRefresh        = "auth.refresh.rotate"
)

// AuditEvent is one security-relevant account action.
type AuditEvent struct {
	Action    string
	UserID    string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
}

// Auditor records audit events. Record must not fail the request.
type Auditor interface {
	Record(ctx context.Context, ev AuditEvent)
}

// LogAuditor writes audit events to a structured logger.
type LogAuditor struct {
	Log *slog.Logger
}

func (a LogAuditor) Record(ctx context.Context, ev AuditEvent) {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{"action", ev.Action}
	if ev.UserID != "" {
		attrs = append(attrs, "user_id", ev.UserID)
	}
	if ev.IP != nil {
		attrs = append(attrs, "ip", ev.IP.String())
	}
	if len(ev.Meta) > 0 {
		attrs = append(attrs, "meta", ev.Meta)
	}
	log.InfoContext(ctx, "auth.audit", attrs...)
}

// PostgresAuditor inserts audit events into <schema>.audit_log.
type PostgresAuditor struct {
	pool   *pgxpool.Pool
	schema string
	log    *slog.Logger
}

// NewPostgresAuditor returns an auditor over pool. Insert failures are logged.
func NewPostgresAuditor(pool *pgxpool.Pool, schema string, log *slog.Logger) *PostgresAuditor {
	if schema == "" || !identity.PgIdentIsValid(schema) {
		schema = "closet"
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAuditor{pool: pool, schema: schema, log: log}
}

// Migrate creates the audit_log table when missing.
func (a *PostgresAuditor) Migrate(ctx context.Context) error {
	table := identity.PgIdent(a.schema, "audit_log")
	_, err := a.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+table+` (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NULL,
  action TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  ip INET NULL,
  user_agent TEXT NULL,
  meta JSONB NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_action_created ON `+table+` (action, created_at);`)
	return err
}

func (a *PostgresAuditor) Record(ctx context.Context, ev AuditEvent) {
	if a == nil || a.pool == nil {
		return
	}
	action := strings.TrimSpace(ev.Action)
	if action == "" {
		return
	}

	var ipVal any
	if ev.IP != nil {
		ipVal = ev.IP.String()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO `+identity.PgIdent(a.schema, "audit_log")+` (
			user_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, trimOrNil(ev.UserID), action, ipVal, trimOrNil(ev.UserAgent), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
