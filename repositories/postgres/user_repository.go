package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/repositories"
	"go.uber.org/zap"
)

const selectUsers = `
		SELECT u.id, u.username, u.password_hash, u.created_at, u.updated_at,
			COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the user and its role links. Callers that need the
// insert and the links to be atomic run it inside InTransaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translateError(err))
	}

	linkQuery := `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
	`
	for _, role := range user.Roles {
		result, err := executor.ExecContext(ctx, linkQuery, user.ID, role)
		if err != nil {
			return fmt.Errorf("failed to assign role %q: %w", role, translateError(err))
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to assign role %q: %w", role, err)
		}
		if n == 0 {
			return fmt.Errorf("role %q: %w", role, repositories.ErrNotFound)
		}
	}

	r.logger.Debug("user created",
		zap.String("id", user.ID.String()),
		zap.String("username", user.Username),
		zap.Strings("roles", user.Roles))
	return nil
}

// GetByUsername retrieves a user and its roles
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := selectUsers + `
		WHERE u.username = $1
		GROUP BY u.id
	`

	executor := GetExecutor(ctx, r.db)
	user := &models.User{}
	var roles pq.StringArray

	err := executor.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&roles,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", translateError(err))
	}

	user.Roles = sortedRoles(roles)
	return user, nil
}

// List retrieves all users ordered by username
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := selectUsers + `
		GROUP BY u.id
		ORDER BY u.username
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user := &models.User{}
		var roles pq.StringArray
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.CreatedAt,
			&user.UpdatedAt,
			&roles,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Roles = sortedRoles(roles)
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

func sortedRoles(roles pq.StringArray) []string {
	out := make([]string, len(roles))
	copy(out, roles)
	sort.Strings(out)
	return out
}
