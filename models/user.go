package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// User is a local account that can exchange credentials for a token
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(username, passwordHash string, roles []string) *User {
	now := time.Now().UTC()
	sorted := append([]string(nil), roles...)
	sort.Strings(sorted)
	return &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Roles:        sorted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasRole returns true if the user holds role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
