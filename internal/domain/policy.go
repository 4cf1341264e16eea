package domain

import (
	"strings"

	"authsuite/internal/apperr"
)

// MinPasswordLength es el largo minimo de una contrasena.
const MinPasswordLength = 8

const minLocalPartCheck = 3

var (
	ErrInvalidEmail          = apperr.Domain("Valid email is required")
	ErrPasswordTooShort      = apperr.Domain("Password must be at least 8 characters long")
	ErrPasswordContainsEmail = apperr.Domain("Password cannot contain email username")
	ErrFirstNameRequired     = apperr.Domain("First name is required")
	ErrLastNameRequired      = apperr.Domain("Last name is required")
	ErrUserDeactivated       = apperr.Domain("User account is deactivated")
	ErrNewPasswordTooShort   = apperr.Domain("New password must be at least 8 characters long")
	ErrPasswordUnchanged     = apperr.Domain("New password must be different from current password")
)

// RegistrationData son los datos crudos de un alta.
type RegistrationData struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ValidateRegistrationData devuelve la primera regla violada.
func ValidateRegistrationData(d RegistrationData) error {
	email, err := NewEmail(d.Email)
	if err != nil {
		return ErrInvalidEmail
	}
	if len(d.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if strings.TrimSpace(d.FirstName) == "" {
		return ErrFirstNameRequired
	}
	if strings.TrimSpace(d.LastName) == "" {
		return ErrLastNameRequired
	}
	// Locales de uno o dos caracteres aparecen en casi cualquier contrasena:
	// sin este minimo, a@b.com con "longpassword1" seria rechazado y ese registro debe pasar.
	// No quitar el minimo sin cambiar TestValidateRegistrationData.
	if local := email.LocalPart(); len(local) >= minLocalPartCheck && strings.Contains(strings.ToLower(d.Password), local) {
		return ErrPasswordContainsEmail
	}
	return nil
}

// CanUserLogin falla si la cuenta esta desactivada.
func CanUserLogin(u User) error {
	if !u.CanLogin() {
		return ErrUserDeactivated
	}
	return nil
}

func ValidatePasswordChange(current, next string) error {
	if len(next) < MinPasswordLength {
		return ErrNewPasswordTooShort
	}
	if current == next {
		return ErrPasswordUnchanged
	}
	return nil
}

func ValidateNameUpdate(firstName, lastName string) error {
	if strings.TrimSpace(firstName) == "" {
		return ErrFirstNameRequired
	}
	if strings.TrimSpace(lastName) == "" {
		return ErrLastNameRequired
	}
	return nil
}
