package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/upb/jwt-auth-gateway/config"
	"github.com/upb/jwt-auth-gateway/handlers"
	"github.com/upb/jwt-auth-gateway/internal/observability"
	"github.com/upb/jwt-auth-gateway/middleware"
	"github.com/upb/jwt-auth-gateway/policy"
	"github.com/upb/jwt-auth-gateway/repositories"
	"github.com/upb/jwt-auth-gateway/repositories/memory"
	"github.com/upb/jwt-auth-gateway/repositories/postgres"
	"github.com/upb/jwt-auth-gateway/services"
	"github.com/upb/jwt-auth-gateway/services/loginlimit"
	"github.com/upb/jwt-auth-gateway/token"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Storage. RepoFactory is nil for the memory store.
	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Tokens and policy
	Keys      *token.Keyring
	Issuer    *token.Issuer
	Validator *token.Validator
	Engine    *policy.Engine
	Bypass    *policy.Matcher

	// Services
	Limiter        loginlimit.Limiter
	AuthService    *services.AuthService
	RefreshService *services.RefreshService

	// HTTP
	AuthHandler      *handlers.AuthHandler
	UserHandler      *handlers.UserHandler
	HealthHandler    *handlers.HealthHandler
	AuthMiddleware   *middleware.AuthMiddleware
	PolicyMiddleware *middleware.PolicyEnforcementMiddleware

	redis  *redis.Client
	checks map[string]handlers.HealthChecker
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		checks: make(map[string]handlers.HealthChecker),
	}

	if cfg.Observability.MetricsEnabled {
		metrics, err := observability.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		deps.Metrics = metrics
	}

	if err := deps.initTokens(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tokens: %w", err)
	}

	if err := deps.initPolicy(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize route policy: %w", err)
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initLimiter(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize login limiter: %w", err)
	}

	if err := deps.initServices(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	deps.initHTTP()

	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.Store.Driver),
		zap.Int("route_rules", len(cfg.Auth.Rules)))
	return deps, nil
}

// initTokens loads the signing key, or generates one when allowed
func (d *Dependencies) initTokens(cfg *config.Config) error {
	var (
		key *token.SecretKey
		err error
	)
	if cfg.Auth.SecretKey != "" {
		key, err = token.ParseSecretKey(cfg.Auth.SecretKey)
	} else if cfg.Auth.GenerateKey {
		key, err = token.GenerateSecretKey()
		if err == nil {
			d.Logger.Warn("no AUTH_SECRET_KEY set, using a generated key; tokens will not survive a restart")
		}
	} else {
		err = errors.New("no signing key configured")
	}
	if err != nil {
		return err
	}

	d.Keys = token.NewKeyring(key)
	d.Issuer = token.NewIssuer(d.Keys, cfg.Auth.AccessTokenTTL)
	d.Validator = token.NewValidator(d.Keys)

	d.Logger.Info("token services initialized",
		zap.Duration("access_ttl", d.Issuer.AccessTTL()),
		zap.Int("key_bytes", key.Size()))
	return nil
}

func (d *Dependencies) initPolicy(cfg *config.Config) error {
	bypass, err := policy.NewMatcher(cfg.Auth.BypassPaths)
	if err != nil {
		return err
	}
	d.Bypass = bypass
	d.Engine = policy.NewEngine(cfg.Auth.Rules)
	return nil
}

// initStore opens the account store selected by STORE_DRIVER
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		d.RepoFactory = factory

		if cfg.Store.InitSchema {
			if err := factory.InitSchema(ctx); err != nil {
				_ = factory.Close()
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
		}

		d.Repos = factory.NewRepositories()
		d.TxManager = factory.GetTransactionManager()
		d.checks["database"] = factory.GetDB()

		d.Logger.Info("database connection established",
			zap.String("connection", cfg.Database.LogString()))
	default:
		store := memory.NewStore()
		d.Repos = store.Repositories()
		d.TxManager = memory.NewTransactionManager()
		d.Logger.Warn("using in-memory account store; accounts are lost on restart")
	}
	return nil
}

func (d *Dependencies) initLimiter(ctx context.Context, cfg *config.Config) error {
	ll := cfg.LoginLimit
	if !ll.Enabled {
		d.Limiter = loginlimit.Noop{}
		d.Logger.Info("login limiter disabled")
		return nil
	}

	switch ll.Backend {
	case config.LimiterRedis:
		client, err := loginlimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		d.redis = client
		d.Limiter = loginlimit.NewRedisLimiter(client, ll.MaxFailures, ll.Window)
		d.checks["redis"] = handlers.CheckFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	default:
		d.Limiter = loginlimit.NewMemoryLimiter(ll.MaxFailures, ll.Window)
	}

	d.Logger.Info("login limiter initialized",
		zap.String("backend", ll.Backend),
		zap.Int("max_failures", ll.MaxFailures),
		zap.Duration("window", ll.Window))
	return nil
}

// initServices builds the auth services and seeds accounts when enabled
func (d *Dependencies) initServices(ctx context.Context, cfg *config.Config) error {
	hasher := services.NewBcryptHasher(cfg.Auth.BcryptCost)

	verifier, err := services.NewStoreVerifier(d.Repos.Users, hasher, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize credential verifier: %w", err)
	}

	var opts []services.AuthOption
	if len(cfg.Auth.RegisterRoles) > 0 {
		opts = append(opts, services.WithRegisterRoles(cfg.Auth.RegisterRoles...))
	}
	d.AuthService = services.NewAuthService(d.Repos, d.TxManager, verifier, hasher, d.Issuer, d.Limiter, d.Metrics, d.Logger, opts...)
	d.RefreshService = services.NewRefreshService(d.Validator, d.Issuer, d.Metrics, d.Logger)

	if cfg.Store.SeedAccounts {
		seeder := services.NewSeeder(d.Repos, d.TxManager, hasher, d.Logger)
		if err := seeder.Seed(ctx, services.DefaultSeedRoles(), services.DefaultSeedAccounts()); err != nil {
			return fmt.Errorf("failed to seed accounts: %w", err)
		}
	}
	return nil
}

func (d *Dependencies) initHTTP() {
	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, d.RefreshService, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.AuthService, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.checks, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Validator, d.Bypass, d.Metrics, d.Logger)
	d.PolicyMiddleware = middleware.NewPolicyEnforcementMiddleware(d.Engine, d.Metrics, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.redis = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
