package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
	"authsuite/internal/repository"
)

const (
	LoginMethodPassword = "password"
	LoginMethodMfa      = "mfa"

	timingPassword = "authsuite-timing-equalizer"
)

// LoginInput son las credenciales del login por contrasena.
type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// LoginOutput lleva la sesion emitida, o MfaRequired sin sesion si el usuario tiene MFA.
type LoginOutput struct {
	AuthResult
	MfaRequired bool
}

// rehashChecker lo implementan hashers que saben si un hash quedo desactualizado.
type rehashChecker interface {
	NeedsUpgrade(hash string) bool
}

// LoginUseCase autentica por email y contrasena.
type LoginUseCase struct {
	deps Dependencies

	dummyOnce sync.Once
	dummyHash string
}

func NewLoginUseCase(deps Dependencies) *LoginUseCase {
	return &LoginUseCase{deps: deps.withDefaults()}
}

func (uc *LoginUseCase) Execute(ctx context.Context, in LoginInput) (LoginOutput, error) {
	d := uc.deps
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return LoginOutput{}, ErrCredentialsRequired
	}
	email, err := domain.NewEmail(in.Email)
	if err != nil {
		return LoginOutput{}, ErrCredentialsRequired
	}

	user, err := d.Users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		uc.equalizeTiming(in.Password)
		d.recordFailedLogin(ctx, email.String(), LoginMethodPassword, "user_not_found", in.Meta)
		return LoginOutput{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginOutput{}, apperr.Infra(err)
	}

	if err := domain.CanUserLogin(user); err != nil {
		d.recordFailedLogin(ctx, email.String(), LoginMethodPassword, "account_deactivated", in.Meta)
		return LoginOutput{}, err
	}

	if !user.HasPassword() {
		uc.equalizeTiming(in.Password)
		d.recordFailedLogin(ctx, email.String(), LoginMethodPassword, "password_not_set", in.Meta)
		return LoginOutput{}, ErrInvalidCredentials
	}
	ok, err := d.Hasher.Verify(in.Password, user.PasswordHash().String())
	if err != nil {
		d.Logger.Error("password verification failed", zap.String("user_id", user.ID().String()), zap.Error(err))
	}
	if !ok {
		d.recordFailedLogin(ctx, email.String(), LoginMethodPassword, "invalid_password", in.Meta)
		return LoginOutput{}, ErrInvalidCredentials
	}
	d.resetFailures(ctx, email.String())

	if user.MfaEnabled() {
		d.Logger.Info("mfa required", zap.String("user_id", user.ID().String()))
		return LoginOutput{AuthResult: AuthResult{User: user}, MfaRequired: true}, nil
	}

	user = uc.upgradeHash(user, in.Password)

	result, err := d.completeLogin(ctx, user, LoginMethodPassword, in.Meta)
	if err != nil {
		return LoginOutput{}, err
	}
	return LoginOutput{AuthResult: result}, nil
}

// equalizeTiming verifica contra un hash fijo para que un email inexistente
// tarde lo mismo que una contrasena incorrecta.
func (uc *LoginUseCase) equalizeTiming(password string) {
	uc.dummyOnce.Do(func() {
		hash, err := uc.deps.Hasher.Hash(timingPassword)
		if err == nil {
			uc.dummyHash = hash
		}
	})
	if uc.dummyHash == "" {
		return
	}
	_, _ = uc.deps.Hasher.Verify(password, uc.dummyHash)
}

// upgradeHash re-hashea con el algoritmo configurado; el cambio viaja en el Update del login.
func (uc *LoginUseCase) upgradeHash(user domain.User, password string) domain.User {
	checker, ok := uc.deps.Hasher.(rehashChecker)
	if !ok || !checker.NeedsUpgrade(user.PasswordHash().String()) {
		return user
	}
	hash, err := uc.deps.Hasher.Hash(password)
	if err != nil {
		uc.deps.Logger.Warn("password rehash failed", zap.Error(err))
		return user
	}
	upgraded, err := user.ChangePasswordHash(hash, uc.deps.now())
	if err != nil {
		return user
	}
	return upgraded
}
