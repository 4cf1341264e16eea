package service

import (
	"context"

	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
	"authsuite/internal/repository"
)

// ChangePasswordInput pide la contrasena actual y la nueva.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	Meta            RequestMeta
}

// ChangePasswordUseCase cambia la contrasena y revoca todas las sesiones del usuario.
type ChangePasswordUseCase struct {
	deps Dependencies
}

func NewChangePasswordUseCase(deps Dependencies) *ChangePasswordUseCase {
	return &ChangePasswordUseCase{deps: deps.withDefaults()}
}

func (uc *ChangePasswordUseCase) Execute(ctx context.Context, in ChangePasswordInput) error {
	d := uc.deps
	if err := domain.ValidatePasswordChange(in.CurrentPassword, in.NewPassword); err != nil {
		return err
	}
	user, err := d.loadUser(ctx, in.UserID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return ErrPasswordLoginDisabled
	}
	ok, err := d.Hasher.Verify(in.CurrentPassword, user.PasswordHash().String())
	if err != nil {
		d.Logger.Error("password verification failed", zap.String("user_id", user.ID().String()), zap.Error(err))
	}
	if !ok {
		return ErrCurrentPasswordInvalid
	}
	hash, err := d.Hasher.Hash(in.NewPassword)
	if err != nil {
		return apperr.Infra(err)
	}
	if user, err = user.ChangePasswordHash(hash, d.now()); err != nil {
		return err
	}
	if err := d.Users.Update(ctx, user); err != nil {
		return apperr.Infra(err)
	}
	revoked, err := d.Sessions.DeleteByUserID(ctx, user.ID())
	if err != nil {
		return apperr.Infra(err)
	}
	d.audit(repository.AuditActionPasswordChange, func() error {
		return d.Audit.LogPasswordChange(ctx, user.ID(), in.Meta.IP, in.Meta.UserAgent)
	})
	d.Logger.Info("password changed",
		zap.String("user_id", user.ID().String()),
		zap.Int64("revoked_sessions", revoked),
	)
	return nil
}

// SetUserActiveUseCase activa o desactiva una cuenta. Al desactivar revoca sus sesiones.
type SetUserActiveUseCase struct {
	deps Dependencies
}

func NewSetUserActiveUseCase(deps Dependencies) *SetUserActiveUseCase {
	return &SetUserActiveUseCase{deps: deps.withDefaults()}
}

func (uc *SetUserActiveUseCase) Execute(ctx context.Context, userID string, active bool) (domain.User, error) {
	d := uc.deps
	user, err := d.loadUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if active {
		user = user.Activate(d.now())
	} else {
		user = user.Deactivate(d.now())
	}
	if err := d.Users.Update(ctx, user); err != nil {
		return domain.User{}, apperr.Infra(err)
	}
	if !active {
		if _, err := d.Sessions.DeleteByUserID(ctx, user.ID()); err != nil {
			return domain.User{}, apperr.Infra(err)
		}
	}
	d.Logger.Info("user activation changed",
		zap.String("user_id", user.ID().String()),
		zap.Bool("active", active),
	)
	return user, nil
}
