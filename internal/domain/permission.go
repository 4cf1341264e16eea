package domain

import (
	"strings"

	"github.com/gobwas/glob"

	"authsuite/internal/apperr"
)

// Permission es un permiso "recurso:accion" que admite comodines ("article:*").
type Permission struct {
	name    string
	matcher glob.Glob
}

// NewPermission compila el patron usando ':' como separador de segmentos.
func NewPermission(name string) (Permission, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Permission{}, apperr.Validation("Permission name is required")
	}
	pattern := name
	if name == "*" {
		pattern = "**"
	}
	matcher, err := glob.Compile(pattern, ':')
	if err != nil {
		return Permission{}, apperr.Validation("Invalid permission pattern: " + name)
	}
	return Permission{name: name, matcher: matcher}, nil
}

func (p Permission) Name() string { return p.name }

// Matches indica si este permiso cubre el permiso requerido.
func (p Permission) Matches(required string) bool {
	if p.matcher == nil {
		return false
	}
	return p.matcher.Match(strings.ToLower(strings.TrimSpace(required)))
}

// Role agrupa permisos. No participa en los flujos de autenticacion.
type Role struct {
	ID          string
	Name        string
	Description string
	permissions []Permission
}

func NewRole(id, name, description string, permissions ...string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, apperr.Validation("Role name is required")
	}
	role := Role{ID: id, Name: name, Description: strings.TrimSpace(description)}
	for _, raw := range permissions {
		perm, err := NewPermission(raw)
		if err != nil {
			return Role{}, err
		}
		role.permissions = append(role.permissions, perm)
	}
	return role, nil
}

func (r Role) Permissions() []Permission {
	out := make([]Permission, len(r.permissions))
	copy(out, r.permissions)
	return out
}

// Grant devuelve un rol nuevo con el permiso agregado.
func (r Role) Grant(permission string) (Role, error) {
	perm, err := NewPermission(permission)
	if err != nil {
		return Role{}, err
	}
	next := r
	next.permissions = append(r.Permissions(), perm)
	return next, nil
}

func (r Role) HasPermission(required string) bool {
	for _, perm := range r.permissions {
		if perm.Matches(required) {
			return true
		}
	}
	return false
}
