package services

import (
	"context"
	"errors"

	"github.com/upb/jwt-auth-gateway/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier checks a username and secret and returns the account's roles
type CredentialVerifier interface {
	Verify(ctx context.Context, username, secret string) ([]string, error)
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher creates a hasher; a cost of 0 uses bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

// Hash returns the bcrypt hash of password
func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil when password matches hash
func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// StoreVerifier verifies credentials against the user repository
type StoreVerifier struct {
	users     repositories.UserRepository
	hasher    PasswordHasher
	dummyHash string
	logger    *zap.Logger
}

// NewStoreVerifier creates a verifier. Unknown usernames are compared against
// a throwaway hash so both failure paths cost one bcrypt comparison.
func NewStoreVerifier(users repositories.UserRepository, hasher PasswordHasher, logger *zap.Logger) (*StoreVerifier, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	return &StoreVerifier{
		users:     users,
		hasher:    hasher,
		dummyHash: dummy,
		logger:    logger,
	}, nil
}

// Verify implements CredentialVerifier
func (v *StoreVerifier) Verify(ctx context.Context, username, secret string) ([]string, error) {
	user, err := v.users.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		_ = v.hasher.Compare(v.dummyHash, secret)
		return nil, ErrCredentialInvalid
	}
	if err != nil {
		v.logger.Error("failed to load user", zap.String("username", username), zap.Error(err))
		return nil, ErrDatabaseError.Wrap(err)
	}

	if err := v.hasher.Compare(user.PasswordHash, secret); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			v.logger.Warn("password comparison failed", zap.String("username", username), zap.Error(err))
		}
		return nil, ErrCredentialInvalid
	}

	roles := make([]string, len(user.Roles))
	copy(roles, user.Roles)
	return roles, nil
}
