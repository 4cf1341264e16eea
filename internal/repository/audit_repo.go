package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"authsuite/internal/domain"
)

// Acciones registradas en audit_logs.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegistration   = "REGISTRATION"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionFailedLogin    = "FAILED_LOGIN"

	auditResourceAuth = "AUTH"
)

// AuditEntry es una fila de audit_logs.
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
	CreatedAt time.Time
}

// PgAuditLogger escribe eventos de seguridad en audit_logs.
type PgAuditLogger struct {
	pool  Pool
	now   func() time.Time
	newID func() string
}

func NewPgAuditLogger(pool Pool) *PgAuditLogger {
	return &PgAuditLogger{pool: pool, now: time.Now, newID: uuid.NewString}
}

func (l *PgAuditLogger) LogUserLogin(ctx context.Context, userID domain.UserID, method, ip, userAgent string) error {
	return l.Record(ctx, AuditEntry{
		UserID:    userID.String(),
		Action:    AuditActionLogin,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  map[string]any{"method": method},
	})
}

func (l *PgAuditLogger) LogUserLogout(ctx context.Context, userID domain.UserID, ip, userAgent string) error {
	return l.Record(ctx, AuditEntry{UserID: userID.String(), Action: AuditActionLogout, IPAddress: ip, UserAgent: userAgent})
}

func (l *PgAuditLogger) LogUserRegistration(ctx context.Context, userID domain.UserID, ip, userAgent string) error {
	return l.Record(ctx, AuditEntry{UserID: userID.String(), Action: AuditActionRegistration, IPAddress: ip, UserAgent: userAgent})
}

func (l *PgAuditLogger) LogPasswordChange(ctx context.Context, userID domain.UserID, ip, userAgent string) error {
	return l.Record(ctx, AuditEntry{UserID: userID.String(), Action: AuditActionPasswordChange, IPAddress: ip, UserAgent: userAgent})
}

// LogFailedLogin no tiene user_id: el intento se identifica por el email enviado.
func (l *PgAuditLogger) LogFailedLogin(ctx context.Context, email, reason, ip, userAgent string) error {
	return l.Record(ctx, AuditEntry{
		Action:    AuditActionFailedLogin,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  map[string]any{"email": email, "reason": reason},
	})
}

// Record inserta una entrada completando id, recurso y fecha si faltan.
func (l *PgAuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	const query = `
		INSERT INTO audit_logs (id, user_id, action, resource, ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if entry.ID == "" {
		entry.ID = l.newID()
	}
	if entry.Resource == "" {
		entry.Resource = auditResourceAuth
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	if len(entry.IPAddress) > 45 {
		entry.IPAddress = entry.IPAddress[:45]
	}

	_, err := l.pool.Exec(ctx, query,
		entry.ID,
		nullableString(entry.UserID),
		entry.Action,
		entry.Resource,
		nullableString(entry.IPAddress),
		nullableString(entry.UserAgent),
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return oops.Code("AUDIT_WRITE_FAILED").
			With("operation", "insert audit log").
			With("action", entry.Action).
			Wrap(err)
	}
	return nil
}
