// Package auth resolves bearer tokens issued by the hosted identity service
// into principals with a storefront role.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Role is a storefront authorization role.
type Role string

// Roles. A user without a stored role is RoleUser.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

var (
	// ErrUnauthorized is returned for missing, malformed or expired tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidRole is returned for an unknown role name.
	ErrInvalidRole = errors.New("role must be admin or user")
	// ErrUserNotFound is returned when a profile does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleUser:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// Principal is an authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the principal may use admin endpoints.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// User is a profile joined with its role.
type User struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
}

// Repository reads profiles and manages roles.
type Repository interface {
	// RoleOf returns RoleUser when no role row exists.
	RoleOf(ctx context.Context, userID string) (Role, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetRole(ctx context.Context, userID string, role Role) error
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
