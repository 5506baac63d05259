package middleware

import (
	"net/http"
	"strings"

	"github.com/upb/jwt-auth-gateway/token"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating bearer tokens
type TokenValidator interface {
	Validate(tokenString string) (token.Claims, error)
}

// PathMatcher reports whether a path is on the bypass list
type PathMatcher interface {
	Matches(path string) bool
}

// ValidationRecorder receives one outcome per validated token
type ValidationRecorder interface {
	TokenValidated(result string)
}

// AuthMiddleware resolves the caller's principal from the Authorization
// header. It never rejects a request: the policy stage decides.
type AuthMiddleware struct {
	validator TokenValidator
	bypass    PathMatcher
	recorder  ValidationRecorder
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. bypass and recorder may be nil.
func NewAuthMiddleware(validator TokenValidator, bypass PathMatcher, recorder ValidationRecorder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		bypass:    bypass,
		recorder:  recorder,
		logger:    logger,
	}
}

// Authenticate attaches exactly one principal value to the request context:
// the token's principal when a bearer token validates, anonymous otherwise.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if m.bypass != nil && m.bypass.Matches(r.URL.Path) {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, nil)))
			return
		}

		raw := ExtractBearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, nil)))
			return
		}

		requestID := GetRequestIDFromContext(ctx)
		claims, err := m.validator.Validate(raw)
		m.record(token.Reason(err))
		if err != nil {
			m.logger.Debug("bearer token rejected, continuing as anonymous",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.String("reason", token.Reason(err)),
				zap.Error(err))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, nil)))
			return
		}

		principal := claims.Principal()
		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", principal.Subject),
			zap.Strings("roles", principal.Roles))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

func (m *AuthMiddleware) record(result string) {
	if m.recorder != nil {
		m.recorder.TokenValidated(result)
	}
}

// ExtractBearerToken extracts the Bearer token from the Authorization header
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
