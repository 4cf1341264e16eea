package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// MfaEnrollment es el secreto TOTP generado para un alta de MFA.
type MfaEnrollment struct {
	Secret     string
	OTPAuthURL string
}

// MfaSecretGenerator crea secretos TOTP nuevos.
type MfaSecretGenerator interface {
	Generate(accountName string) (MfaEnrollment, error)
}

// TOTPService valida y genera secretos TOTP (RFC 6238, 30s, 6 digitos, SHA1).
type TOTPService struct {
	issuer string
	skew   uint
}

func NewTOTPService(issuer string) *TOTPService {
	if strings.TrimSpace(issuer) == "" {
		issuer = "authsuite"
	}
	return &TOTPService{issuer: issuer, skew: 1}
}

// Verify acepta el paso actual y uno a cada lado.
func (s *TOTPService) Verify(code, secret string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), s.opts())
	return err == nil && ok
}

func (s *TOTPService) Generate(accountName string) (MfaEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return MfaEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	return MfaEnrollment{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// Code calcula el codigo TOTP vigente en at para el secreto dado.
func (s *TOTPService) Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), s.opts())
}

func (s *TOTPService) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    30,
		Skew:      s.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
