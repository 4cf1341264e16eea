package service

import (
	"context"
	"time"

	"authsuite/internal/domain"
)

// PasswordHasher calcula y verifica hashes de contrasena.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// TokenGenerator produce tokens de sesion opacos.
type TokenGenerator interface {
	GenerateToken() (string, error)
	VerifyToken(token string) bool
}

// AuditLogger registra eventos de seguridad. Los casos de uso nunca propagan sus errores.
type AuditLogger interface {
	LogUserLogin(ctx context.Context, userID domain.UserID, method, ip, userAgent string) error
	LogUserLogout(ctx context.Context, userID domain.UserID, ip, userAgent string) error
	LogUserRegistration(ctx context.Context, userID domain.UserID, ip, userAgent string) error
	LogPasswordChange(ctx context.Context, userID domain.UserID, ip, userAgent string) error
	LogFailedLogin(ctx context.Context, email, reason, ip, userAgent string) error
}

// MfaVerifier valida codigos TOTP.
type MfaVerifier interface {
	Verify(code, secret string, at time.Time) bool
}

// Clock devuelve la hora actual.
type Clock func() time.Time

// IDGenerator devuelve un identificador nuevo.
type IDGenerator func() string

// RequestMeta acompana a cada caso de uso para auditoria.
type RequestMeta struct {
	IP        string
	UserAgent string
}
