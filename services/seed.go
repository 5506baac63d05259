package services

import (
	"context"
	"errors"

	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/policy"
	"github.com/upb/jwt-auth-gateway/repositories"
	"go.uber.org/zap"
)

// SeedAccount is an account created at start-up when missing
type SeedAccount struct {
	Username string
	Password string
	Roles    []string
}

// DefaultSeedRoles are created on every seeded start
func DefaultSeedRoles() []string {
	return []string{policy.RoleUser, policy.RoleAdmin}
}

// DefaultSeedAccounts returns the development accounts
func DefaultSeedAccounts() []SeedAccount {
	return []SeedAccount{
		{Username: "admin", Password: "adminpassword", Roles: []string{policy.RoleAdmin}},
		{Username: "user", Password: "userpassword", Roles: []string{policy.RoleUser}},
	}
}

// Seeder creates the base roles and accounts. Running it again is a no-op.
type Seeder struct {
	repos  *repositories.Repositories
	txMgr  repositories.TransactionManager
	hasher PasswordHasher
	logger *zap.Logger
}

// NewSeeder creates a new Seeder
func NewSeeder(repos *repositories.Repositories, txMgr repositories.TransactionManager, hasher PasswordHasher, logger *zap.Logger) *Seeder {
	return &Seeder{
		repos:  repos,
		txMgr:  txMgr,
		hasher: hasher,
		logger: logger,
	}
}

// Seed ensures roles exist and creates the accounts that are missing
func (s *Seeder) Seed(ctx context.Context, roles []string, accounts []SeedAccount) error {
	return WithTransaction(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) error {
		if err := s.repos.Roles.EnsureRoles(ctx, roles...); err != nil {
			return WrapInternal("failed to seed roles", err)
		}

		for _, acct := range accounts {
			_, err := s.repos.Users.GetByUsername(ctx, acct.Username)
			if err == nil {
				continue
			}
			if !errors.Is(err, repositories.ErrNotFound) {
				return WrapInternal("failed to look up seed account", err)
			}

			hash, err := s.hasher.Hash(acct.Password)
			if err != nil {
				return WrapInternal("failed to hash seed password", err)
			}
			if err := s.repos.Users.Create(ctx, models.NewUser(acct.Username, hash, acct.Roles)); err != nil {
				return WrapInternal("failed to create seed account", err)
			}
			s.logger.Info("seed account created",
				zap.String("username", acct.Username),
				zap.Strings("roles", acct.Roles))
		}
		return nil
	})
}
