package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/repositories"
	"go.uber.org/zap"
)

// RoleRepository implements the repositories.RoleRepository interface
type RoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB, logger *zap.Logger) repositories.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureRoles inserts the missing roles among names
func (r *RoleRepository) EnsureRoles(ctx context.Context, names ...string) error {
	query := `INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`

	executor := GetExecutor(ctx, r.db)
	for _, name := range names {
		result, err := executor.ExecContext(ctx, query, name)
		if err != nil {
			return fmt.Errorf("failed to ensure role %q: %w", name, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			r.logger.Info("role created", zap.String("role", name))
		}
	}
	return nil
}

// FindByNames returns the existing roles among names
func (r *RoleRepository) FindByNames(ctx context.Context, names []string) ([]*models.Role, error) {
	query := `SELECT id, name FROM roles WHERE name = ANY($1) ORDER BY name`
	return r.query(ctx, query, pq.Array(names))
}

// List retrieves all roles ordered by name
func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	return r.query(ctx, `SELECT id, name FROM roles ORDER BY name`)
}

func (r *RoleRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Role, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		role := &models.Role{}
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}
	return roles, nil
}
