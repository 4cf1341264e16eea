package domain

import (
	"encoding/json"
	"strings"
	"time"

	"authsuite/internal/apperr"
)

// User es inmutable: cada transicion devuelve una copia nueva.
type User struct {
	id               UserID
	email            Email
	passwordHash     PasswordHash
	firstName        string
	lastName         string
	active           bool
	createdAt        time.Time
	updatedAt        time.Time
	lastLoginAt      *time.Time
	mfaEnabled       bool
	mfaSecret        string
	externalAccounts []ExternalAccount
}

// UserData es la representacion plana usada por persistencia.
type UserData struct {
	ID               string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastLoginAt      *time.Time
	MfaEnabled       bool
	MfaSecret        string
	ExternalAccounts []ExternalAccount
}

// NewUserParams agrupa los datos para crear un usuario nuevo.
type NewUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// NewUser crea un usuario activo, sin MFA ni cuentas externas.
func NewUser(p NewUserParams, now time.Time) (User, error) {
	return ReconstructUser(UserData{
		ID:           p.ID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// ReconstructUser rehidrata un usuario desde almacenamiento validando sus invariantes.
func ReconstructUser(d UserData) (User, error) {
	id, err := NewUserID(d.ID)
	if err != nil {
		return User{}, err
	}
	email, err := NewEmail(d.Email)
	if err != nil {
		return User{}, err
	}
	var hash PasswordHash
	if d.PasswordHash != "" {
		if hash, err = NewPasswordHash(d.PasswordHash); err != nil {
			return User{}, err
		}
	}
	first, err := NewFirstName(d.FirstName)
	if err != nil {
		return User{}, err
	}
	last, err := NewLastName(d.LastName)
	if err != nil {
		return User{}, err
	}
	return User{
		id:               id,
		email:            email,
		passwordHash:     hash,
		firstName:        first,
		lastName:         last,
		active:           d.IsActive,
		createdAt:        d.CreatedAt,
		updatedAt:        d.UpdatedAt,
		lastLoginAt:      copyTime(d.LastLoginAt),
		mfaEnabled:       d.MfaEnabled,
		mfaSecret:        d.MfaSecret,
		externalAccounts: copyAccounts(d.ExternalAccounts),
	}, nil
}

// Data devuelve una copia plana del estado.
func (u User) Data() UserData {
	return UserData{
		ID:               u.id.String(),
		Email:            u.email.String(),
		PasswordHash:     u.passwordHash.String(),
		FirstName:        u.firstName,
		LastName:         u.lastName,
		IsActive:         u.active,
		CreatedAt:        u.createdAt,
		UpdatedAt:        u.updatedAt,
		LastLoginAt:      copyTime(u.lastLoginAt),
		MfaEnabled:       u.mfaEnabled,
		MfaSecret:        u.mfaSecret,
		ExternalAccounts: copyAccounts(u.externalAccounts),
	}
}

func (u User) ID() UserID                 { return u.id }
func (u User) Email() Email               { return u.email }
func (u User) PasswordHash() PasswordHash { return u.passwordHash }
func (u User) HasPassword() bool          { return u.passwordHash != "" }
func (u User) FirstName() string          { return u.firstName }
func (u User) LastName() string           { return u.lastName }
func (u User) IsActive() bool             { return u.active }
func (u User) CreatedAt() time.Time       { return u.createdAt }
func (u User) UpdatedAt() time.Time       { return u.updatedAt }
func (u User) LastLoginAt() *time.Time    { return copyTime(u.lastLoginAt) }
func (u User) MfaEnabled() bool           { return u.mfaEnabled }
func (u User) MfaSecret() string          { return u.mfaSecret }
func (u User) IsZero() bool               { return u.id == "" }
func (u User) FullName() string           { return u.firstName + " " + u.lastName }
func (u User) ExternalAccounts() []ExternalAccount {
	return copyAccounts(u.externalAccounts)
}

// CanLogin es la unica compuerta antes de emitir una sesion.
func (u User) CanLogin() bool {
	return u.active
}

func (u User) Deactivate(now time.Time) User {
	next := u.clone()
	next.active = false
	next.updatedAt = now
	return next
}

func (u User) Activate(now time.Time) User {
	next := u.clone()
	next.active = true
	next.updatedAt = now
	return next
}

func (u User) UpdateName(firstName, lastName string, now time.Time) (User, error) {
	first, err := NewFirstName(firstName)
	if err != nil {
		return User{}, err
	}
	last, err := NewLastName(lastName)
	if err != nil {
		return User{}, err
	}
	next := u.clone()
	next.firstName = first
	next.lastName = last
	next.updatedAt = now
	return next, nil
}

func (u User) UpdateLastLogin(now time.Time) User {
	next := u.clone()
	next.lastLoginAt = &now
	next.updatedAt = now
	return next
}

func (u User) ChangePasswordHash(hash string, now time.Time) (User, error) {
	parsed, err := NewPasswordHash(hash)
	if err != nil {
		return User{}, err
	}
	next := u.clone()
	next.passwordHash = parsed
	next.updatedAt = now
	return next, nil
}

func (u User) EnableMfa(secret string, now time.Time) (User, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return User{}, apperr.Domain("MFA secret is required")
	}
	next := u.clone()
	next.mfaEnabled = true
	next.mfaSecret = secret
	next.updatedAt = now
	return next, nil
}

func (u User) DisableMfa(now time.Time) User {
	next := u.clone()
	next.mfaEnabled = false
	next.mfaSecret = ""
	next.updatedAt = now
	return next
}

// HasExternalAccount indica si el par (provider, externalID) ya esta vinculado.
func (u User) HasExternalAccount(provider, externalID string) bool {
	for _, acc := range u.externalAccounts {
		if acc.Matches(provider, externalID) {
			return true
		}
	}
	return false
}

// AddExternalAccount vincula una cuenta externa. Un usuario tiene como maximo una cuenta por provider.
func (u User) AddExternalAccount(acc ExternalAccount, now time.Time) (User, error) {
	if acc.UserID != u.id {
		return User{}, apperr.Domain("External account belongs to another user")
	}
	if u.HasExternalAccount(acc.Provider, acc.ExternalID) {
		return u.clone(), nil
	}
	for _, existing := range u.externalAccounts {
		if existing.Provider == acc.Provider {
			return User{}, apperr.Domain("User already has a linked " + acc.Provider + " account")
		}
	}
	next := u.clone()
	next.externalAccounts = append(next.externalAccounts, acc)
	next.updatedAt = now
	return next, nil
}

// MarshalJSON expone solo los campos publicos; hash y secreto MFA nunca salen.
func (u User) MarshalJSON() ([]byte, error) {
	accounts := make([]publicExternalAccount, 0, len(u.externalAccounts))
	for _, acc := range u.externalAccounts {
		accounts = append(accounts, publicExternalAccount{Provider: acc.Provider, Email: acc.Email, LinkedAt: acc.CreatedAt})
	}
	return json.Marshal(struct {
		ID               string                  `json:"id"`
		Email            string                  `json:"email"`
		FirstName        string                  `json:"firstName"`
		LastName         string                  `json:"lastName"`
		IsActive         bool                    `json:"isActive"`
		MfaEnabled       bool                    `json:"mfaEnabled"`
		CreatedAt        time.Time               `json:"createdAt"`
		UpdatedAt        time.Time               `json:"updatedAt"`
		LastLoginAt      *time.Time              `json:"lastLoginAt,omitempty"`
		ExternalAccounts []publicExternalAccount `json:"externalAccounts"`
	}{
		ID:               u.id.String(),
		Email:            u.email.String(),
		FirstName:        u.firstName,
		LastName:         u.lastName,
		IsActive:         u.active,
		MfaEnabled:       u.mfaEnabled,
		CreatedAt:        u.createdAt,
		UpdatedAt:        u.updatedAt,
		LastLoginAt:      u.lastLoginAt,
		ExternalAccounts: accounts,
	})
}

type publicExternalAccount struct {
	Provider string    `json:"provider"`
	Email    string    `json:"email,omitempty"`
	LinkedAt time.Time `json:"linkedAt"`
}

func (u User) clone() User {
	next := u
	next.lastLoginAt = copyTime(u.lastLoginAt)
	next.externalAccounts = copyAccounts(u.externalAccounts)
	return next
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyAccounts(in []ExternalAccount) []ExternalAccount {
	if len(in) == 0 {
		return nil
	}
	out := make([]ExternalAccount, len(in))
	copy(out, in)
	return out
}
