package repositories

import (
	"context"
	"errors"

	"github.com/upb/jwt-auth-gateway/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint would be violated
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes fn within a transaction. Repositories called
	// with the ctx passed to fn take part in the transaction.
	// Commits if fn succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles account data operations
type UserRepository interface {
	// Create stores user and links it to user.Roles. Returns ErrDuplicate
	// when the username is taken and ErrNotFound when a role does not exist.
	Create(ctx context.Context, user *models.User) error

	// GetByUsername retrieves a user and its roles. Returns ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// List retrieves all users ordered by username
	List(ctx context.Context) ([]*models.User, error)
}

// RoleRepository handles role data operations
type RoleRepository interface {
	// EnsureRoles creates any of names that do not exist yet
	EnsureRoles(ctx context.Context, names ...string) error

	// FindByNames returns the roles among names that exist
	FindByNames(ctx context.Context, names []string) ([]*models.Role, error)

	// List retrieves all roles ordered by name
	List(ctx context.Context) ([]*models.Role, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Users UserRepository
	Roles RoleRepository
}
