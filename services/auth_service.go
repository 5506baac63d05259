package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/policy"
	"github.com/upb/jwt-auth-gateway/repositories"
	"github.com/upb/jwt-auth-gateway/services/loginlimit"
	"github.com/upb/jwt-auth-gateway/token"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenType is the scheme clients use to present issued tokens
const TokenType = "Bearer"

// TokenIssuer signs access tokens
type TokenIssuer interface {
	Issue(subject string, roles []string) (string, token.Claims, error)
}

// AuthRecorder receives authentication outcomes for metrics
type AuthRecorder interface {
	TokenIssued(origin string)
	LoginAttempted(result string)
}

type nopRecorder struct{}

func (nopRecorder) TokenIssued(string)    {}
func (nopRecorder) LoginAttempted(string) {}

// IssuedToken is returned by login and refresh
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

func newIssuedToken(raw string, claims token.Claims) *IssuedToken {
	return &IssuedToken{
		Token:     raw,
		TokenType: TokenType,
		ExpiresAt: claims.ExpiresAt,
		ExpiresIn: int64(claims.ExpiresAt.Sub(claims.IssuedAt) / time.Second),
	}
}

// LoginRequest carries the credentials exchanged for a token
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,bcryptmax"`
}

// RegisterRequest creates a new account
type RegisterRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=64,username"`
	Password string   `json:"password" validate:"required,min=8,bcryptmax"`
	Roles    []string `json:"roles" validate:"omitempty,max=16,unique,dive,required,rolename"`
}

// AuthService handles login and registration
type AuthService struct {
	users    repositories.UserRepository
	roles    repositories.RoleRepository
	txMgr    repositories.TransactionManager
	verifier CredentialVerifier
	hasher   PasswordHasher
	issuer   TokenIssuer
	limiter  loginlimit.Limiter
	recorder AuthRecorder
	logger   *zap.Logger

	// roles an anonymous caller may request at registration
	registerRoles map[string]bool
}

// AuthOption configures an AuthService
type AuthOption func(*AuthService)

// WithRegisterRoles sets the roles a caller may assign to itself when
// registering. The default is USER only.
func WithRegisterRoles(roles ...string) AuthOption {
	return func(s *AuthService) {
		s.registerRoles = make(map[string]bool, len(roles))
		for _, r := range roles {
			s.registerRoles[r] = true
		}
	}
}

// NewAuthService creates a new AuthService. limiter and recorder may be nil.
func NewAuthService(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	verifier CredentialVerifier,
	hasher PasswordHasher,
	issuer TokenIssuer,
	limiter loginlimit.Limiter,
	recorder AuthRecorder,
	logger *zap.Logger,
	opts ...AuthOption,
) *AuthService {
	if limiter == nil {
		limiter = loginlimit.Noop{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	s := &AuthService{
		users:         repos.Users,
		roles:         repos.Roles,
		txMgr:         txMgr,
		verifier:      verifier,
		hasher:        hasher,
		issuer:        issuer,
		limiter:       limiter,
		recorder:      recorder,
		logger:        logger,
		registerRoles: map[string]bool{policy.RoleUser: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the credentials and issues a token for the account.
// Repeated failures for one username are throttled.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*IssuedToken, error) {
	key := loginlimit.Key(req.Username)

	retryAfter, err := s.limiter.Check(ctx, key)
	if err != nil {
		// Limiter errors fail open.
		s.logger.Warn("login limiter unavailable", zap.Error(err))
	}
	if retryAfter > 0 {
		s.recorder.LoginAttempted("throttled")
		s.logger.Warn("login throttled",
			zap.String("username", req.Username),
			zap.Duration("retry_after", retryAfter))
		return nil, ErrTooManyAttempts.WithDetail("retry_after", retryAfter)
	}

	roles, err := s.verifier.Verify(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrCredentialInvalid) {
			s.recorder.LoginAttempted("failure")
			if ferr := s.limiter.Fail(ctx, key); ferr != nil {
				s.logger.Warn("failed to record login failure", zap.Error(ferr))
			}
			s.logger.Info("login failed", zap.String("username", req.Username))
		}
		return nil, err
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn("failed to reset login failures", zap.Error(err))
	}
	s.recorder.LoginAttempted("success")

	raw, claims, err := s.issuer.Issue(req.Username, roles)
	if err != nil {
		return nil, WrapInternal("failed to issue token", err)
	}
	s.recorder.TokenIssued("login")

	s.logger.Info("login succeeded",
		zap.String("sub", claims.Subject),
		zap.Strings("roles", claims.Roles))

	return newIssuedToken(raw, claims), nil
}

// Register creates an account. Missing roles default to USER. Requested
// roles must be self-assignable and must already exist.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	roleNames := uniqueRoles(req.Roles)
	if len(roleNames) == 0 {
		roleNames = []string{policy.RoleUser}
	}
	if denied := s.deniedRoles(roleNames); len(denied) > 0 {
		s.logger.Warn("registration requested restricted roles",
			zap.String("username", req.Username),
			zap.Strings("roles", denied))
		return nil, ErrRoleNotAssignable.WithDetail("roles", denied)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrInvalidInput.WithDetail("password", "password must be at most 72 bytes")
		}
		return nil, WrapInternal("failed to hash password", err)
	}

	user, err := WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.User, error) {
		found, err := s.roles.FindByNames(ctx, roleNames)
		if err != nil {
			return nil, ErrDatabaseError.Wrap(err)
		}
		if missing := missingRoles(roleNames, found); len(missing) > 0 {
			return nil, ErrUnknownRole.WithDetail("roles", missing)
		}

		user := models.NewUser(req.Username, hash, roleNames)
		if err := s.users.Create(ctx, user); err != nil {
			switch {
			case errors.Is(err, repositories.ErrDuplicate):
				return nil, ErrUserExists.WithDetail("username", req.Username)
			case errors.Is(err, repositories.ErrNotFound):
				return nil, ErrUnknownRole.Wrap(err)
			default:
				return nil, ErrDatabaseError.Wrap(err)
			}
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("username", user.Username),
		zap.Strings("roles", user.Roles))
	return user, nil
}

// ListUsers returns every account ordered by username
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, ErrDatabaseError.Wrap(err)
	}
	return users, nil
}

func uniqueRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (s *AuthService) deniedRoles(roles []string) []string {
	var denied []string
	for _, r := range roles {
		if !s.registerRoles[r] {
			denied = append(denied, r)
		}
	}
	return denied
}

func missingRoles(want []string, found []*models.Role) []string {
	have := make(map[string]bool, len(found))
	for _, r := range found {
		have[r.Name] = true
	}
	var missing []string
	for _, name := range want {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
