package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
	"authsuite/internal/repository"
)

// RegisterInput son los datos del alta por email y contrasena.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Meta      RequestMeta
}

// RegisterUserUseCase da de alta usuarios con contrasena.
type RegisterUserUseCase struct {
	deps Dependencies
}

func NewRegisterUserUseCase(deps Dependencies) *RegisterUserUseCase {
	return &RegisterUserUseCase{deps: deps.withDefaults()}
}

func (uc *RegisterUserUseCase) Execute(ctx context.Context, in RegisterInput) (domain.User, error) {
	d := uc.deps
	if err := domain.ValidateRegistrationData(domain.RegistrationData{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}); err != nil {
		return domain.User{}, err
	}
	email, err := domain.NewEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}

	exists, err := d.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return domain.User{}, apperr.Infra(err)
	}
	if exists {
		return domain.User{}, ErrUserExists
	}

	hash, err := d.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, apperr.Infra(err)
	}
	user, err := domain.NewUser(domain.NewUserParams{
		ID:           d.NewID(),
		Email:        email.String(),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
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
	d.Logger.Info("user registered", zap.String("user_id", user.ID().String()))
	return user, nil
}
