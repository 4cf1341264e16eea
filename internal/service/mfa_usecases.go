package service

import (
	"context"

	"go.uber.org/zap"

	"authsuite/internal/apperr"
	"authsuite/internal/domain"
)

// EnrollmentSealer guarda el secreto pendiente de un alta MFA hasta su confirmacion.
type EnrollmentSealer interface {
	SealMfaEnrollment(userID domain.UserID, secret string) (string, error)
	OpenMfaEnrollment(token string, userID domain.UserID) (string, error)
}

// VerifyMfaInput completa un login que devolvio MfaRequired.
type VerifyMfaInput struct {
	UserID string
	Code   string
	Meta   RequestMeta
}

// VerifyMfaUseCase valida el segundo factor y emite la sesion.
type VerifyMfaUseCase struct {
	deps Dependencies
}

func NewVerifyMfaUseCase(deps Dependencies) *VerifyMfaUseCase {
	return &VerifyMfaUseCase{deps: deps.withDefaults()}
}

func (uc *VerifyMfaUseCase) Execute(ctx context.Context, in VerifyMfaInput) (AuthResult, error) {
	d := uc.deps
	user, err := d.loadUser(ctx, in.UserID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return AuthResult{}, ErrMfaUserNotFound
	}
	if err != nil {
		return AuthResult{}, err
	}
	if err := domain.CanUserLogin(user); err != nil {
		return AuthResult{}, err
	}
	if !user.MfaEnabled() {
		return AuthResult{}, ErrMfaNotEnabled
	}
	if user.MfaSecret() == "" {
		return AuthResult{}, ErrMfaSecretMissing
	}
	if !d.Mfa.Verify(in.Code, user.MfaSecret(), d.now()) {
		d.recordFailedLogin(ctx, user.Email().String(), LoginMethodMfa, "invalid_mfa_code", in.Meta)
		return AuthResult{}, ErrInvalidMfaCode
	}
	d.resetFailures(ctx, user.Email().String())
	return d.completeLogin(ctx, user, LoginMethodMfa, in.Meta)
}

// MfaEnrollmentOutput es lo que el cliente necesita para registrar el autenticador.
type MfaEnrollmentOutput struct {
	Secret          string
	OTPAuthURL      string
	EnrollmentToken string
}

// EnrollMfaUseCase genera un secreto nuevo sin activarlo todavia.
type EnrollMfaUseCase struct {
	deps      Dependencies
	generator MfaSecretGenerator
	sealer    EnrollmentSealer
}

func NewEnrollMfaUseCase(deps Dependencies, generator MfaSecretGenerator, sealer EnrollmentSealer) *EnrollMfaUseCase {
	return &EnrollMfaUseCase{deps: deps.withDefaults(), generator: generator, sealer: sealer}
}

func (uc *EnrollMfaUseCase) Execute(ctx context.Context, userID string) (MfaEnrollmentOutput, error) {
	user, err := uc.deps.loadUser(ctx, userID)
	if err != nil {
		return MfaEnrollmentOutput{}, err
	}
	if user.MfaEnabled() {
		return MfaEnrollmentOutput{}, ErrMfaAlreadyEnabled
	}
	enrollment, err := uc.generator.Generate(user.Email().String())
	if err != nil {
		return MfaEnrollmentOutput{}, apperr.Infra(err)
	}
	token, err := uc.sealer.SealMfaEnrollment(user.ID(), enrollment.Secret)
	if err != nil {
		return MfaEnrollmentOutput{}, apperr.Infra(err)
	}
	return MfaEnrollmentOutput{
		Secret:          enrollment.Secret,
		OTPAuthURL:      enrollment.OTPAuthURL,
		EnrollmentToken: token,
	}, nil
}

// ConfirmMfaInput activa el secreto sellado si el codigo es correcto.
type ConfirmMfaInput struct {
	UserID          string
	EnrollmentToken string
	Code            string
}

type ConfirmMfaUseCase struct {
	deps   Dependencies
	sealer EnrollmentSealer
}

func NewConfirmMfaUseCase(deps Dependencies, sealer EnrollmentSealer) *ConfirmMfaUseCase {
	return &ConfirmMfaUseCase{deps: deps.withDefaults(), sealer: sealer}
}

func (uc *ConfirmMfaUseCase) Execute(ctx context.Context, in ConfirmMfaInput) (domain.User, error) {
	d := uc.deps
	user, err := d.loadUser(ctx, in.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if user.MfaEnabled() {
		return domain.User{}, ErrMfaAlreadyEnabled
	}
	secret, err := uc.sealer.OpenMfaEnrollment(in.EnrollmentToken, user.ID())
	if err != nil {
		return domain.User{}, ErrInvalidMfaEnrollment
	}
	if !d.Mfa.Verify(in.Code, secret, d.now()) {
		return domain.User{}, ErrInvalidMfaCode
	}
	user, err = user.EnableMfa(secret, d.now())
	if err != nil {
		return domain.User{}, err
	}
	if err := d.Users.Update(ctx, user); err != nil {
		return domain.User{}, apperr.Infra(err)
	}
	d.Logger.Info("mfa enabled", zap.String("user_id", user.ID().String()))
	return user, nil
}

// DisableMfaInput exige un codigo vigente para apagar MFA.
type DisableMfaInput struct {
	UserID string
	Code   string
}

type DisableMfaUseCase struct {
	deps Dependencies
}

func NewDisableMfaUseCase(deps Dependencies) *DisableMfaUseCase {
	return &DisableMfaUseCase{deps: deps.withDefaults()}
}

func (uc *DisableMfaUseCase) Execute(ctx context.Context, in DisableMfaInput) (domain.User, error) {
	d := uc.deps
	user, err := d.loadUser(ctx, in.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if !user.MfaEnabled() {
		return domain.User{}, apperr.Domain(ErrMfaNotEnabled.Message)
	}
	if !d.Mfa.Verify(in.Code, user.MfaSecret(), d.now()) {
		return domain.User{}, ErrInvalidMfaCode
	}
	user = user.DisableMfa(d.now())
	if err := d.Users.Update(ctx, user); err != nil {
		return domain.User{}, apperr.Infra(err)
	}
	d.Logger.Info("mfa disabled", zap.String("user_id", user.ID().String()))
	return user, nil
}
