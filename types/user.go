package types

import "time"

// User represents an account in the system.
// It contains identity, authorization flag, and the user's game library.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	// Uniqueness is case-sensitive.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, stored trimmed and lowercased.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsAdmin grants catalog write access when the catalog is admin-only.
	IsAdmin bool `json:"isAdmin" db:"is_admin"`

	// Library holds the IDs of the games the user owns, in the order
	// they were added.
	Library []int `json:"library" db:"-"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
