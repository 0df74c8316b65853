package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/resbook/service-booking/pkg/domain"
)

// Role is the identity-store role of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

const CodeUserNotFound = "USER_NOT_FOUND"

// User is a read-only view of an account owned by the identity store.
type User struct {
	id    uuid.UUID
	email string
	role  Role
}

// Reconstruct rebuilds a User from persistence data.
func Reconstruct(id uuid.UUID, email string, role Role) *User {
	return &User{id: id, email: email, role: role}
}

func (u *User) ID() uuid.UUID  { return u.id }
func (u *User) Email() string  { return u.email }
func (u *User) Role() Role     { return u.role }
func (u *User) IsAdmin() bool  { return u.role == RoleAdmin }

// UserRepository looks accounts up in the identity store.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// NewMissingPrincipalError reports an authenticated caller that the
// identity store does not know. This is a consistency failure, not bad input.
func NewMissingPrincipalError(id uuid.UUID) *domain.DomainError {
	return domain.NewInternalError(CodeUserNotFound, fmt.Sprintf("User not found: %s", id)).
		WithDetail("user_id", id.String())
}
