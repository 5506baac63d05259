// Package memory is an in-process account store used for development and
// tests. Data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/repositories"
)

// Store keeps users and roles in maps guarded by a single RWMutex.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	roles    map[string]*models.Role
	nextRole int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users: make(map[string]*models.User),
		roles: make(map[string]*models.Role),
	}
}

// Repositories returns the store behind both repository interfaces
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users: s.Users(),
		Roles: s.Roles(),
	}
}

// Users returns the store as a repositories.UserRepository
func (s *Store) Users() repositories.UserRepository { return (*userRepo)(s) }

// Roles returns the store as a repositories.RoleRepository
func (s *Store) Roles() repositories.RoleRepository { return (*roleRepo)(s) }

type userRepo Store

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("username %q: %w", user.Username, repositories.ErrDuplicate)
	}
	for _, role := range user.Roles {
		if _, ok := s.roles[role]; !ok {
			return fmt.Errorf("role %q: %w", role, repositories.ErrNotFound)
		}
	}
	s.users[user.Username] = cloneUser(user)
	return nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

type roleRepo Store

func (r *roleRepo) EnsureRoles(ctx context.Context, names ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if _, ok := s.roles[name]; ok {
			continue
		}
		s.nextRole++
		s.roles[name] = &models.Role{ID: s.nextRole, Name: name}
	}
	return nil
}

func (r *roleRepo) FindByNames(ctx context.Context, names []string) ([]*models.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(names))
	roles := make([]*models.Role, 0, len(names))
	for _, name := range names {
		role, ok := s.roles[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		c := *role
		roles = append(roles, &c)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r *roleRepo) List(ctx context.Context) ([]*models.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := make([]*models.Role, 0, len(s.roles))
	for _, role := range s.roles {
		c := *role
		roles = append(roles, &c)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	if c.Roles == nil {
		c.Roles = []string{}
	}
	return &c
}

// TransactionManager satisfies repositories.TransactionManager for the
// memory store. Each repository call is atomic on its own; there is no
// multi-call rollback.
type TransactionManager struct{}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// Begin returns a transaction whose Commit and Rollback do nothing
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &transaction{ctx: ctx}, nil
}

// InTransaction runs fn directly
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type transaction struct {
	ctx context.Context
}

func (t *transaction) Commit() error            { return nil }
func (t *transaction) Rollback() error          { return nil }
func (t *transaction) Context() context.Context { return t.ctx }
