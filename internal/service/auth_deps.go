package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
	"authsuite/internal/metrics"
	"authsuite/internal/repository"
)

const defaultSessionTTL = 24 * time.Hour

// Errores publicos de los casos de uso de autenticacion.
var (
	ErrInvalidCredentials     = apperr.Auth("Invalid credentials")
	ErrInvalidSessionToken    = apperr.Auth("Invalid session token")
	ErrSessionExpired         = apperr.Auth("Session expired or invalid")
	ErrAccountDeactivated     = apperr.Auth("User account is deactivated")
	ErrUserExists             = apperr.Domain("User with this email already exists")
	ErrCredentialsRequired    = apperr.Validation("Email and password are required")
	ErrMfaUserNotFound        = apperr.Auth("User not found")
	ErrMfaNotEnabled          = apperr.Auth("MFA is not enabled for this user")
	ErrMfaSecretMissing       = apperr.Auth("MFA secret not found")
	ErrInvalidMfaCode         = apperr.Auth("Invalid MFA code")
	ErrMfaAlreadyEnabled      = apperr.Domain("MFA is already enabled for this user")
	ErrInvalidMfaEnrollment   = apperr.Auth("Invalid or expired MFA enrollment")
	ErrExternalAccountLinked  = apperr.Domain("External account is already linked to another user")
	ErrExternalIdentity       = apperr.Validation("Provider and external id are required")
	ErrPasswordLoginDisabled  = apperr.Domain("Password login is not enabled for this account")
	ErrCurrentPasswordInvalid = apperr.Auth("Current password is incorrect")
)

// Dependencies son los puertos compartidos por todos los casos de uso.
// Se arma una sola vez en la raiz de composicion.
type Dependencies struct {
	Logger     *zap.Logger
	Users      repository.UserRepository
	Sessions   repository.SessionStore
	Hasher     PasswordHasher
	Tokens     TokenGenerator
	Audit      AuditLogger
	Mfa        MfaVerifier
	Failures   FailedLoginTracker
	Metrics    metrics.Recorder
	SessionTTL time.Duration
	Clock      Clock
	NewID      IDGenerator
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = defaultSessionTTL
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Failures == nil {
		d.Failures = NewMemoryFailedLoginTracker(15 * time.Minute)
	}
	return d
}

func (d Dependencies) now() time.Time {
	return d.Clock().UTC()
}

// issueSession genera un token, crea la sesion y la persiste.
func (d Dependencies) issueSession(ctx context.Context, user domain.User, method string) (domain.Session, error) {
	raw, err := d.Tokens.GenerateToken()
	if err != nil {
		return domain.Session{}, apperr.Infra(err)
	}
	token, err := domain.NewSessionToken(raw)
	if err != nil {
		return domain.Session{}, apperr.Infra(err)
	}
	now := d.now()
	session, err := domain.NewSession(d.NewID(), token, user.ID(), now.Add(d.SessionTTL), now)
	if err != nil {
		return domain.Session{}, err
	}
	if err := d.Sessions.Save(ctx, session); err != nil {
		return domain.Session{}, apperr.Infra(err)
	}
	d.Metrics.SessionIssued(method)
	return session, nil
}

// completeLogin marca el ultimo acceso, persiste, emite la sesion y audita.
func (d Dependencies) completeLogin(ctx context.Context, user domain.User, method string, meta RequestMeta) (AuthResult, error) {
	user = user.UpdateLastLogin(d.now())
	if err := d.Users.Update(ctx, user); err != nil {
		return AuthResult{}, apperr.Infra(err)
	}
	session, err := d.issueSession(ctx, user, method)
	if err != nil {
		return AuthResult{}, err
	}
	d.audit(repository.AuditActionLogin, func() error {
		return d.Audit.LogUserLogin(ctx, user.ID(), method, meta.IP, meta.UserAgent)
	})
	d.Metrics.LoginSucceeded(method)
	d.Logger.Info("session issued",
		zap.String("user_id", user.ID().String()),
		zap.String("method", method),
		zap.String("session_id", session.ID()),
	)
	return AuthResult{User: user, Session: session}, nil
}

// audit ejecuta fn y descarta su error: la auditoria nunca interrumpe el flujo.
func (d Dependencies) audit(action string, fn func() error) {
	if d.Audit == nil {
		return
	}
	if err := fn(); err != nil {
		d.Metrics.AuditFailed(action)
		d.Logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (d Dependencies) recordFailedLogin(ctx context.Context, email, method, reason string, meta RequestMeta) {
	d.audit(repository.AuditActionFailedLogin, func() error {
		return d.Audit.LogFailedLogin(ctx, email, reason, meta.IP, meta.UserAgent)
	})
	attempts, err := d.Failures.RecordFailure(ctx, email)
	if err != nil {
		d.Logger.Warn("failed login tracker error", zap.Error(err))
	}
	d.Metrics.LoginFailed(method, reason)
	d.Logger.Warn("login failed",
		zap.String("method", method),
		zap.String("reason", reason),
		zap.Int64("recent_failures", attempts),
	)
}

func (d Dependencies) resetFailures(ctx context.Context, key string) {
	if err := d.Failures.Reset(ctx, key); err != nil {
		d.Logger.Warn("failed login tracker reset error", zap.Error(err))
	}
}

// loadUser traduce ausencia en NotFound y cualquier otro fallo en Infra.
func (d Dependencies) loadUser(ctx context.Context, rawID string) (domain.User, error) {
	id, err := domain.NewUserID(rawID)
	if err != nil {
		return domain.User{}, apperr.NotFound("User", rawID)
	}
	user, err := d.Users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, apperr.NotFound("User", rawID)
	}
	if err != nil {
		return domain.User{}, apperr.Infra(err)
	}
	return user, nil
}

// AuthResult es el par usuario/sesion devuelto por un login completo.
type AuthResult struct {
	User    domain.User
	Session domain.Session
}
