// Package user defines user accounts and credential verification.
package user

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches a lookup.
	ErrNotFound = errors.New("user not found")
	// ErrExists is returned when registering a username or email already taken.
	ErrExists = errors.New("user already exists")
	// ErrBadCredentials is returned when password verification fails.
	ErrBadCredentials = errors.New("invalid credentials")
)

// User is a registered account. The password hash never leaves the store.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists user accounts.
type Store interface {
	// Create registers a new user with the given plaintext password.
	Create(u *User, password string) (string, error)

	// Get retrieves a user by ID.
	Get(id string) (*User, error)

	// Authenticate verifies a username/password pair and returns the user.
	Authenticate(username, password string) (*User, error)
}
