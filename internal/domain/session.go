package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"authsuite/internal/apperr"
)

// HashSessionToken devuelve el SHA-256 hex del token. Es lo unico que se persiste.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Session representa una sesion emitida. El token en claro solo vive en memoria.
type Session struct {
	id        string
	token     SessionToken
	tokenHash string
	userID    UserID
	expiresAt time.Time
	active    bool
	createdAt time.Time
	updatedAt time.Time
}

// SessionData es la representacion plana de Session.
type SessionData struct {
	ID        string
	Token     string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession crea una sesion activa a partir de un token recien generado.
func NewSession(id string, token SessionToken, userID UserID, expiresAt, now time.Time) (Session, error) {
	if !expiresAt.After(now) {
		return Session{}, apperr.Domain("Session expiry must be in the future")
	}
	return ReconstructSession(SessionData{
		ID:        id,
		Token:     token.String(),
		UserID:    userID.String(),
		ExpiresAt: expiresAt,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ReconstructSession rehidrata una sesion. Desde almacenamiento llega solo el hash.
func ReconstructSession(d SessionData) (Session, error) {
	if strings.TrimSpace(d.ID) == "" {
		return Session{}, apperr.Validation("Session id is required")
	}
	userID, err := NewUserID(d.UserID)
	if err != nil {
		return Session{}, err
	}
	var token SessionToken
	hash := d.TokenHash
	if d.Token != "" {
		if token, err = NewSessionToken(d.Token); err != nil {
			return Session{}, err
		}
		computed := HashSessionToken(d.Token)
		if hash != "" && hash != computed {
			return Session{}, apperr.Validation("Session token hash mismatch")
		}
		hash = computed
	}
	if hash == "" {
		return Session{}, apperr.Validation("Session token hash is required")
	}
	return Session{
		id:        d.ID,
		token:     token,
		tokenHash: hash,
		userID:    userID,
		expiresAt: d.ExpiresAt,
		active:    d.IsActive,
		createdAt: d.CreatedAt,
		updatedAt: d.UpdatedAt,
	}, nil
}

func (s Session) Data() SessionData {
	return SessionData{
		ID:        s.id,
		Token:     s.token.String(),
		TokenHash: s.tokenHash,
		UserID:    s.userID.String(),
		ExpiresAt: s.expiresAt,
		IsActive:  s.active,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

func (s Session) ID() string           { return s.id }
func (s Session) Token() SessionToken  { return s.token }
func (s Session) TokenHash() string    { return s.tokenHash }
func (s Session) UserID() UserID       { return s.userID }
func (s Session) ExpiresAt() time.Time { return s.expiresAt }
func (s Session) IsActive() bool       { return s.active }
func (s Session) CreatedAt() time.Time { return s.createdAt }
func (s Session) UpdatedAt() time.Time { return s.updatedAt }
func (s Session) IsZero() bool         { return s.id == "" }

// IsExpiredAt: una sesion vence estrictamente despues de expiresAt.
func (s Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.expiresAt)
}

func (s Session) IsValidAt(t time.Time) bool {
	return s.active && !s.IsExpiredAt(t)
}

func (s Session) IsExpired() bool { return s.IsExpiredAt(time.Now()) }

func (s Session) IsValid() bool { return s.IsValidAt(time.Now()) }

func (s Session) Deactivate(now time.Time) Session {
	next := s
	next.active = false
	next.updatedAt = now
	return next
}

// Revoke es un alias de Deactivate usado en logout administrativo.
func (s Session) Revoke(now time.Time) Session {
	return s.Deactivate(now)
}

// UpdateExpiry solo permite mover la expiracion hacia adelante.
func (s Session) UpdateExpiry(expiresAt, now time.Time) (Session, error) {
	if !expiresAt.After(s.expiresAt) {
		return Session{}, apperr.Domain("New expiry date must be later than current expiry date")
	}
	next := s
	next.expiresAt = expiresAt
	next.updatedAt = now
	return next, nil
}
