package domain

import (
	"strings"
	"time"

	"authsuite/internal/apperr"
)

// ExternalAccount vincula un usuario con una identidad OAuth (provider, externalId).
type ExternalAccount struct {
	ID         string    `json:"id"`
	UserID     UserID    `json:"user_id"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewExternalAccount valida y construye un vinculo nuevo.
func NewExternalAccount(id string, userID UserID, provider, externalID, email string, now time.Time) (ExternalAccount, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	externalID = strings.TrimSpace(externalID)
	if provider == "" {
		return ExternalAccount{}, apperr.Validation("Provider is required")
	}
	if externalID == "" {
		return ExternalAccount{}, apperr.Validation("External id is required")
	}
	if strings.TrimSpace(id) == "" || userID == "" {
		return ExternalAccount{}, apperr.Validation("External account requires id and user id")
	}
	return ExternalAccount{
		ID:         id,
		UserID:     userID,
		Provider:   provider,
		ExternalID: externalID,
		Email:      strings.ToLower(strings.TrimSpace(email)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (a ExternalAccount) Matches(provider, externalID string) bool {
	return a.Provider == strings.ToLower(strings.TrimSpace(provider)) && a.ExternalID == strings.TrimSpace(externalID)
}
