package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/jwt-auth-gateway/policy"
	"github.com/upb/jwt-auth-gateway/token"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Login limiter backends
const (
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Auth          AuthConfig
	LoginLimit    LoginLimitConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// StoreConfig selects where accounts live
type StoreConfig struct {
	Driver       string // memory or postgres
	InitSchema   bool
	SeedAccounts bool
}

// AuthConfig holds token and route policy configuration
type AuthConfig struct {
	AccessTokenTTL time.Duration
	SecretKey      string // base64, decoded length >= token.MinKeySize
	GenerateKey    bool
	BcryptCost     int
	BypassPaths    []string
	Rules          []policy.Rule
	PolicyFile     string
	// RegisterRoles are the roles /api/register may grant. Empty means USER.
	RegisterRoles  []string
}

// LoginLimitConfig holds the failed-login throttle settings
type LoginLimitConfig struct {
	Enabled     bool
	Backend     string // memory or redis
	MaxFailures int
	Window      time.Duration
}

// RedisConfig holds the Redis connection used by the redis limiter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	environment := getEnv("ENVIRONMENT", "development")
	production := environment == "production" || environment == "prod"

	auth, err := loadAuthConfig(production)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: environment,
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:     getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 15*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: loadDatabaseConfig(),
		Store: StoreConfig{
			Driver:       strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
			InitSchema:   getEnvAsBool("DB_INIT_SCHEMA", true),
			SeedAccounts: getEnvAsBool("SEED_ACCOUNTS", !production),
		},
		Auth: auth,
		LoginLimit: LoginLimitConfig{
			Enabled:     getEnvAsBool("LOGIN_LIMIT_ENABLED", true),
			Backend:     strings.ToLower(getEnv("LOGIN_LIMITER_BACKEND", LimiterMemory)),
			MaxFailures: getEnvAsInt("LOGIN_MAX_FAILURES", 5),
			Window:      getEnvAsDuration("LOGIN_FAILURE_WINDOW", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadAuthConfig reads token settings and the route table. A policy file
// replaces both AUTH_BYPASS_PATHS and AUTH_ROUTE_POLICIES.
func loadAuthConfig(production bool) (AuthConfig, error) {
	ttl := getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", token.DefaultAccessTTL)
	if secs := getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_SECONDS", 0); secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	auth := AuthConfig{
		AccessTokenTTL: ttl,
		SecretKey:      getEnv("AUTH_SECRET_KEY", ""),
		GenerateKey:    getEnvAsBool("AUTH_GENERATE_KEY", !production),
		BcryptCost:     getEnvAsInt("AUTH_BCRYPT_COST", 0),
		BypassPaths:    getEnvAsList("AUTH_BYPASS_PATHS", policy.DefaultBypassPaths()),
		Rules:          policy.DefaultRules(),
		PolicyFile:     getEnv("AUTH_POLICY_FILE", ""),
		RegisterRoles:  getEnvAsList("AUTH_REGISTER_ROLES", []string{policy.RoleUser}),
	}

	if raw := getEnv("AUTH_ROUTE_POLICIES", ""); raw != "" {
		rules, err := policy.ParseRules(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("invalid AUTH_ROUTE_POLICIES: %w", err)
		}
		auth.Rules = rules
	}

	if auth.PolicyFile != "" {
		pf, err := LoadPolicyFile(auth.PolicyFile)
		if err != nil {
			return AuthConfig{}, err
		}
		auth.BypassPaths = pf.Bypass
		auth.Rules = pf.Rules
	}

	return auth, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Auth.SecretKey != "" {
		if _, err := token.ParseSecretKey(c.Auth.SecretKey); err != nil {
			return fmt.Errorf("invalid AUTH_SECRET_KEY: %w", err)
		}
	} else if !c.Auth.GenerateKey {
		return fmt.Errorf("AUTH_SECRET_KEY is required when AUTH_GENERATE_KEY is false")
	}

	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}

	if c.LoginLimit.Enabled {
		switch c.LoginLimit.Backend {
		case LimiterMemory:
		case LimiterRedis:
			if c.Redis.Addr == "" {
				return fmt.Errorf("REDIS_ADDR is required for the redis login limiter")
			}
		default:
			return fmt.Errorf("unknown login limiter backend %q", c.LoginLimit.Backend)
		}
		if c.LoginLimit.MaxFailures <= 0 {
			return fmt.Errorf("LOGIN_MAX_FAILURES must be positive")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return pool
	}
	pool.Host = getEnv("DB_HOST", "localhost")
	pool.Port = getEnvAsInt("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "dev")
	pool.Password = getEnv("DB_PASSWORD", "")
	pool.Database = getEnv("DB_NAME", "auth")
	pool.SSLMode = getEnv("DB_SSLMODE", "disable")
	return pool
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blank entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
