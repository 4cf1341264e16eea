package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authsuite/internal/domain"
)

const (
	purposeOAuthState    = "oauth_state"
	purposeMfaChallenge  = "mfa_challenge"
	purposeMfaEnrollment = "mfa_enrollment"
)

var (
	ErrChallengeInvalid = errors.New("challenge token invalid")
	ErrChallengeExpired = errors.New("challenge token expired")
)

// ChallengeTokens firma tokens cortos (HS256) para pasos intermedios:
// state de OAuth, desafio MFA posterior al login y alta de MFA.
type ChallengeTokens struct {
	secret        []byte
	issuer        string
	stateTTL      time.Duration
	challengeTTL  time.Duration
	enrollmentTTL time.Duration
	now           func() time.Time
}

type challengeClaims struct {
	Purpose  string `json:"typ"`
	Provider string `json:"prv,omitempty"`
	Secret   string `json:"sec,omitempty"`
	jwt.RegisteredClaims
}

func NewChallengeTokens(secret string) *ChallengeTokens {
	return &ChallengeTokens{
		secret:        []byte(secret),
		issuer:        "authsuite",
		stateTTL:      10 * time.Minute,
		challengeTTL:  5 * time.Minute,
		enrollmentTTL: 10 * time.Minute,
		now:           time.Now,
	}
}

// IssueOAuthState devuelve un state firmado y atado al provider.
func (s *ChallengeTokens) IssueOAuthState(provider string) (string, error) {
	return s.sign(challengeClaims{Purpose: purposeOAuthState, Provider: provider}, "", s.stateTTL)
}

func (s *ChallengeTokens) VerifyOAuthState(state, provider string) error {
	claims, err := s.parse(state, purposeOAuthState)
	if err != nil {
		return err
	}
	if claims.Provider != provider {
		return ErrChallengeInvalid
	}
	return nil
}

// IssueMfaChallenge se entrega tras un login correcto de un usuario con MFA.
func (s *ChallengeTokens) IssueMfaChallenge(userID domain.UserID) (string, time.Time, error) {
	expiresAt := s.now().UTC().Add(s.challengeTTL)
	token, err := s.sign(challengeClaims{Purpose: purposeMfaChallenge}, userID.String(), s.challengeTTL)
	return token, expiresAt, err
}

func (s *ChallengeTokens) ParseMfaChallenge(token string) (string, error) {
	claims, err := s.parse(token, purposeMfaChallenge)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// SealMfaEnrollment guarda el secreto pendiente hasta que el usuario confirme un codigo.
func (s *ChallengeTokens) SealMfaEnrollment(userID domain.UserID, secret string) (string, error) {
	return s.sign(challengeClaims{Purpose: purposeMfaEnrollment, Secret: secret}, userID.String(), s.enrollmentTTL)
}

func (s *ChallengeTokens) OpenMfaEnrollment(token string, userID domain.UserID) (string, error) {
	claims, err := s.parse(token, purposeMfaEnrollment)
	if err != nil {
		return "", err
	}
	if claims.Subject != userID.String() || claims.Secret == "" {
		return "", ErrChallengeInvalid
	}
	return claims.Secret, nil
}

func (s *ChallengeTokens) sign(claims challengeClaims, subject string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrChallengeInvalid
	}
	now := s.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *ChallengeTokens) parse(tokenString, purpose string) (challengeClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return challengeClaims{}, ErrChallengeInvalid
	}
	var claims challengeClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return challengeClaims{}, ErrChallengeExpired
		}
		return challengeClaims{}, ErrChallengeInvalid
	}
	if claims.Purpose != purpose {
		return challengeClaims{}, ErrChallengeInvalid
	}
	return claims, nil
}
