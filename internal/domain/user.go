package domain

import (
	"context"
	"time"
)

type ContextKey string

const UserContextKey ContextKey = "user"

// Roles
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// Session is the signed-in user as seen by the storefront. It is owned by the
// session manager; everyone else only reads it.
type Session struct {
	UserID      string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// User is an account in the development backend.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session projects the account onto the client-facing session shape.
func (u *User) Session() Session {
	return Session{
		UserID:      u.ID,
		DisplayName: u.Name,
		Email:       u.Email,
		Role:        u.Role,
	}
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// CartRepository stores one saved cart per account.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	SaveCart(ctx context.Context, userID string, cart Cart) error
	// ListCartOwners returns the ids of accounts with a saved cart.
	ListCartOwners(ctx context.Context) ([]string, error)
}
