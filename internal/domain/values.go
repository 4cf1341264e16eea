package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"authsuite/internal/apperr"
)

const (
	maxNameLength         = 100
	minPasswordHashLength = 60
	minSessionTokenLength = 32
)

// Email es una direccion normalizada (trim + minusculas).
type Email struct {
	value string
}

// NewEmail valida y normaliza un email.
func NewEmail(raw string) (Email, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " \t\r\n") {
		return Email{}, apperr.Validation("Invalid email format")
	}
	if strings.Count(value, "@") != 1 {
		return Email{}, apperr.Validation("Invalid email format")
	}
	return Email{value: value}, nil
}

func (e Email) String() string { return e.value }

// LocalPart devuelve lo que esta antes de la arroba.
func (e Email) LocalPart() string {
	local, _, _ := strings.Cut(e.value, "@")
	return local
}

// Domain devuelve lo que esta despues de la arroba.
func (e Email) Domain() string {
	_, domain, _ := strings.Cut(e.value, "@")
	return domain
}

func (e Email) IsZero() bool { return e.value == "" }

// UserID identifica a un usuario (UUID).
type UserID string

func NewUserID(raw string) (UserID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.Validation("Invalid user id")
	}
	return UserID(id.String()), nil
}

func (id UserID) String() string { return string(id) }

// PasswordHash es un hash ya calculado; solo se valida el formato.
type PasswordHash string

func NewPasswordHash(raw string) (PasswordHash, error) {
	if len(raw) < minPasswordHashLength {
		return "", apperr.Validation("Invalid password hash format")
	}
	return PasswordHash(raw), nil
}

func (h PasswordHash) String() string { return string(h) }

// SessionToken es el token opaco que recibe el cliente.
type SessionToken string

func NewSessionToken(raw string) (SessionToken, error) {
	if len(raw) < minSessionTokenLength {
		return "", apperr.Validation("Invalid session token format")
	}
	return SessionToken(raw), nil
}

func (t SessionToken) String() string { return string(t) }

func (t SessionToken) Equals(other SessionToken) bool { return t == other }

func NewFirstName(raw string) (string, error) {
	return newPersonName(raw, "First name")
}

func NewLastName(raw string) (string, error) {
	return newPersonName(raw, "Last name")
}

func newPersonName(raw, field string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", apperr.Validation(field + " is required")
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return "", apperr.Validation(field + " must be at most 100 characters")
	}
	return value, nil
}
