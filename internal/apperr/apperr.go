// Package apperr define la taxonomia de errores que exponen los casos de uso.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind clasifica un error y determina su status HTTP.
type Kind string

const (
	KindDomain     Kind = "DOMAIN_ERROR"
	KindValidation Kind = "VALIDATION_ERROR"
	KindAuth       Kind = "AUTH_ERROR"
	KindNotFound   Kind = "NOT_FOUND"
	KindInfra      Kind = "INFRA_ERROR"
)

const internalMessage = "Internal server error"

// Status devuelve el status HTTP asociado al tipo de error.
func (k Kind) Status() int {
	switch k {
	case KindDomain:
		return http.StatusBadRequest
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error es el error tipado que devuelven dominio y casos de uso.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Kind == KindInfra {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is compara por Kind y, si el target trae mensaje, tambien por mensaje.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Status devuelve el status HTTP del error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// PublicMessage devuelve el mensaje apto para el cliente.
func (e *Error) PublicMessage() string {
	if e.Kind == KindInfra {
		return internalMessage
	}
	return e.Message
}

// Domain crea un error de regla de negocio (400).
func Domain(message string) *Error {
	return &Error{Kind: KindDomain, Message: message}
}

// Validation crea un error de formato de entrada (422).
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Auth crea un error de autenticacion (401).
func Auth(message string) *Error {
	if message == "" {
		message = "Authentication failed"
	}
	return &Error{Kind: KindAuth, Message: message}
}

// NotFound crea un error de entidad inexistente (404).
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Context: map[string]string{"resource": resource, "id": id},
	}
}

// Infra envuelve un fallo inesperado (500). El mensaje publico es siempre generico.
func Infra(cause error) *Error {
	return &Error{Kind: KindInfra, Message: internalMessage, Cause: cause}
}

// As extrae el *Error de la cadena, si existe.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf devuelve el Kind del error; cualquier error desconocido es KindInfra.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInfra
}

// IsKind indica si err (o algo que envuelve) es del tipo indicado.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Normalize convierte cualquier error en *Error.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Infra(err)
}
