package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
	"authsuite/internal/repository"
)

const (
	defaultExternalFirstName = "External"
	defaultExternalLastName  = "User"
)

// ExternalAuthInput es la identidad ya verificada por un proveedor OAuth.
type ExternalAuthInput struct {
	Provider   string
	ExternalID string
	Email      string // solo si el proveedor lo verifico; se usa para vincular cuentas existentes
	FirstName  string
	LastName   string
	Meta       RequestMeta
}

// ExternalAuthUseCase resuelve o crea el usuario de una identidad externa y emite sesion.
type ExternalAuthUseCase struct {
	deps Dependencies
}

func NewExternalAuthUseCase(deps Dependencies) *ExternalAuthUseCase {
	return &ExternalAuthUseCase{deps: deps.withDefaults()}
}

func (uc *ExternalAuthUseCase) Execute(ctx context.Context, in ExternalAuthInput) (AuthResult, error) {
	d := uc.deps
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	externalID := strings.TrimSpace(in.ExternalID)
	if provider == "" || externalID == "" {
		return AuthResult{}, ErrExternalIdentity
	}

	user, err := uc.resolveUser(ctx, provider, externalID, in)
	if err != nil {
		return AuthResult{}, err
	}
	if err := domain.CanUserLogin(user); err != nil {
		return AuthResult{}, err
	}

	if !user.HasExternalAccount(provider, externalID) {
		account, err := domain.NewExternalAccount(d.NewID(), user.ID(), provider, externalID, strings.TrimSpace(in.Email), d.now())
		if err != nil {
			return AuthResult{}, err
		}
		user, err = user.AddExternalAccount(account, d.now())
		if err != nil {
			return AuthResult{}, err
		}
		if err := d.Users.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrExternalAccountTaken) {
				return AuthResult{}, ErrExternalAccountLinked
			}
			return AuthResult{}, apperr.Infra(err)
		}
		d.Logger.Info("external account linked",
			zap.String("user_id", user.ID().String()),
			zap.String("provider", provider),
		)
	}
	return d.completeLogin(ctx, user, provider, in.Meta)
}

// resolveUser busca por identidad externa, luego por email; si no existe lo crea.
func (uc *ExternalAuthUseCase) resolveUser(ctx context.Context, provider, externalID string, in ExternalAuthInput) (domain.User, error) {
	d := uc.deps
	user, err := d.Users.FindByExternalID(ctx, provider, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, apperr.Infra(err)
	}

	var email domain.Email
	if strings.TrimSpace(in.Email) != "" {
		if email, err = domain.NewEmail(in.Email); err != nil {
			return domain.User{}, err
		}
		user, err = d.Users.FindByEmail(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, apperr.Infra(err)
		}
	}

	if email.IsZero() {
		if email, err = domain.NewEmail(placeholderEmail(provider, externalID)); err != nil {
			return domain.User{}, err
		}
	}
	firstName := strings.TrimSpace(in.FirstName)
	if firstName == "" {
		firstName = defaultExternalFirstName
	}
	lastName := strings.TrimSpace(in.LastName)
	if lastName == "" {
		lastName = defaultExternalLastName
	}
	user, err = domain.NewUser(domain.NewUserParams{
		ID:        d.NewID(),
		Email:     email.String(),
		FirstName: firstName,
		LastName:  lastName,
	}, d.now())
	if err != nil {
		return domain.User{}, err
	}
	if err := d.Users.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, apperr.Infra(err)
	}
	d.audit(repository.AuditActionRegistration, func() error {
		return d.Audit.LogUserRegistration(ctx, user.ID(), in.Meta.IP, in.Meta.UserAgent)
	})
	d.Logger.Info("user created from external identity",
		zap.String("user_id", user.ID().String()),
		zap.String("provider", provider),
	)
	return user, nil
}

func placeholderEmail(provider, externalID string) string {
	id := strings.Map(func(r rune) rune {
		if r == '@' || r == ' ' || r == '\t' || r == '\n' {
			return '_'
		}
		return r
	}, externalID)
	return fmt.Sprintf("external_%s_%s@example.com", provider, id)
}
