package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/jwt-auth-gateway/repositories"
	"github.com/upb/jwt-auth-gateway/repositories/memory"
	"github.com/upb/jwt-auth-gateway/token"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type recorder struct {
	mu     sync.Mutex
	issued []string
	logins []string
}

func (r *recorder) TokenIssued(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, origin)
}

func (r *recorder) LoginAttempted(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, result)
}

// MockLimiter is a mock implementation of loginlimit.Limiter
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockLimiter) Fail(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// MockVerifier is a mock implementation of CredentialVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, username, secret string) ([]string, error) {
	args := m.Called(ctx, username, secret)
	if roles := args.Get(0); roles != nil {
		return roles.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	store     *memory.Store
	repos     *repositories.Repositories
	txMgr     repositories.TransactionManager
	hasher    *BcryptHasher
	keys      *token.Keyring
	issuer    *token.Issuer
	validator *token.Validator
	now       time.Time
	recorder  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := token.GenerateSecretKey()
	require.NoError(t, err)

	f := &fixture{
		store:    memory.NewStore(),
		txMgr:    memory.NewTransactionManager(),
		hasher:   NewBcryptHasher(bcrypt.MinCost),
		keys:     token.NewKeyring(key),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		recorder: &recorder{},
	}
	f.repos = f.store.Repositories()
	clock := func() time.Time { return f.now }
	f.issuer = token.NewIssuer(f.keys, 6*time.Minute, token.WithClock(clock))
	f.validator = token.NewValidator(f.keys, token.WithClock(clock))

	seeder := NewSeeder(f.repos, f.txMgr, f.hasher, zap.NewNop())
	require.NoError(t, seeder.Seed(context.Background(), DefaultSeedRoles(), DefaultSeedAccounts()))
	return f
}

func (f *fixture) verifier(t *testing.T) *StoreVerifier {
	t.Helper()
	v, err := NewStoreVerifier(f.repos.Users, f.hasher, zap.NewNop())
	require.NoError(t, err)
	return v
}
