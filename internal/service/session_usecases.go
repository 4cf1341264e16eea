package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
	"authsuite/internal/repository"
)

// Resultados de validacion reportados a metricas.
const (
	validationValid       = "valid"
	validationMalformed   = "malformed"
	validationUnknown     = "unknown"
	validationExpired     = "expired"
	validationOrphaned    = "orphaned"
	validationDeactivated = "deactivated"
)

// ValidateSessionUseCase resuelve un token de sesion al usuario autenticado.
type ValidateSessionUseCase struct {
	deps Dependencies
}

func NewValidateSessionUseCase(deps Dependencies) *ValidateSessionUseCase {
	return &ValidateSessionUseCase{deps: deps.withDefaults()}
}

// Execute chequea el formato antes de tocar el almacenamiento. En el camino
// feliz no escribe nada; sesiones vencidas o huerfanas se borran.
func (uc *ValidateSessionUseCase) Execute(ctx context.Context, token string) (AuthResult, error) {
	d := uc.deps
	if !d.Tokens.VerifyToken(token) {
		d.Metrics.SessionValidated(validationMalformed)
		return AuthResult{}, ErrInvalidSessionToken
	}

	session, err := d.Sessions.FindByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		d.Metrics.SessionValidated(validationUnknown)
		return AuthResult{}, ErrInvalidSessionToken
	}
	if err != nil {
		return AuthResult{}, apperr.Infra(err)
	}

	now := d.now()
	if !session.IsValidAt(now) {
		if session.IsExpiredAt(now) {
			uc.discard(ctx, token, session, "expired")
		}
		d.Metrics.SessionValidated(validationExpired)
		return AuthResult{}, ErrSessionExpired
	}

	user, err := d.Users.FindByID(ctx, session.UserID())
	if errors.Is(err, repository.ErrNotFound) {
		uc.discard(ctx, token, session, "user_missing")
		d.Metrics.SessionValidated(validationOrphaned)
		return AuthResult{}, apperr.NotFound("User", session.UserID().String())
	}
	if err != nil {
		return AuthResult{}, apperr.Infra(err)
	}
	if !user.CanLogin() {
		uc.discard(ctx, token, session, "user_deactivated")
		d.Metrics.SessionValidated(validationDeactivated)
		return AuthResult{}, ErrAccountDeactivated
	}

	d.Metrics.SessionValidated(validationValid)
	return AuthResult{User: user, Session: session}, nil
}

func (uc *ValidateSessionUseCase) discard(ctx context.Context, token string, session domain.Session, reason string) {
	if err := uc.deps.Sessions.Delete(ctx, token); err != nil {
		uc.deps.Logger.Warn("session cleanup failed",
			zap.String("session_id", session.ID()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// LogoutInput identifica la sesion a cerrar.
type LogoutInput struct {
	Token string
	Meta  RequestMeta
}

// LogoutUseCase es idempotente: un token desconocido no es error.
type LogoutUseCase struct {
	deps Dependencies
}

func NewLogoutUseCase(deps Dependencies) *LogoutUseCase {
	return &LogoutUseCase{deps: deps.withDefaults()}
}

func (uc *LogoutUseCase) Execute(ctx context.Context, in LogoutInput) error {
	d := uc.deps
	session, err := d.Sessions.FindByToken(ctx, in.Token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Infra(err)
	}
	if err := d.Sessions.Delete(ctx, in.Token); err != nil {
		return apperr.Infra(err)
	}
	d.audit(repository.AuditActionLogout, func() error {
		return d.Audit.LogUserLogout(ctx, session.UserID(), in.Meta.IP, in.Meta.UserAgent)
	})
	d.Logger.Info("session closed",
		zap.String("user_id", session.UserID().String()),
		zap.String("session_id", session.ID()),
	)
	return nil
}

// RevokeUserSessionsUseCase cierra todas las sesiones de un usuario.
type RevokeUserSessionsUseCase struct {
	deps Dependencies
}

func NewRevokeUserSessionsUseCase(deps Dependencies) *RevokeUserSessionsUseCase {
	return &RevokeUserSessionsUseCase{deps: deps.withDefaults()}
}

func (uc *RevokeUserSessionsUseCase) Execute(ctx context.Context, userID string) (int64, error) {
	user, err := uc.deps.loadUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	deleted, err := uc.deps.Sessions.DeleteByUserID(ctx, user.ID())
	if err != nil {
		return 0, apperr.Infra(err)
	}
	uc.deps.Logger.Info("user sessions revoked",
		zap.String("user_id", user.ID().String()),
		zap.Int64("deleted_count", deleted),
	)
	return deleted, nil
}
