// Package user models registered storefront users and the request-scoped
// session the checkout reads contact defaults from.
package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrExists is returned when registering a user whose email or external id
// is already taken.
var ErrExists = errors.New("user already exists")

// Role grants access to a slice of the storefront.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleDelivery Role = "delivery"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleDelivery:
		return true
	default:
		return false
	}
}

// User is a registered account. ExternalID is the identifier issued by the
// external auth provider.
type User struct {
	ID         string
	ExternalID string
	Email      string
	Username   string
	Role       Role
	CreatedAt  time.Time
}

// Repository persists users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	Create(ctx context.Context, u *User) error
	ListIDsByRole(ctx context.Context, role Role) ([]string, error)
}
