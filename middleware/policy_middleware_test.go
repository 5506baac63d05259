package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/jwt-auth-gateway/policy"
	"github.com/upb/jwt-auth-gateway/token"
	"github.com/upb/jwt-auth-gateway/utils"
	"go.uber.org/zap"
)

// MockPolicyDecider is a mock implementation of PolicyDecider
type MockPolicyDecider struct {
	mock.Mock
}

func (m *MockPolicyDecider) Decide(path string, principal *token.Principal) policy.Decision {
	return m.Called(path, principal).Get(0).(policy.Decision)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestEnforcePolicy(t *testing.T) {
	logger := zap.NewNop()

	t.Run("permit calls the handler", func(t *testing.T) {
		decider := new(MockPolicyDecider)
		decider.On("Decide", "/api/greet", mock.Anything).Return(policy.Permit)
		rec := &resultRecorder{}
		mw := NewPolicyEnforcementMiddleware(decider, rec, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/greet", nil)
		req = req.WithContext(WithPrincipal(req.Context(), &token.Principal{Subject: "u"}))
		w := httptest.NewRecorder()
		mw.EnforcePolicy(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"permit"}, rec.results)
	})

	t.Run("unauthenticated is 401 with a bearer challenge", func(t *testing.T) {
		decider := new(MockPolicyDecider)
		decider.On("Decide", "/api/greet", (*token.Principal)(nil)).Return(policy.Unauthenticated)
		mw := NewPolicyEnforcementMiddleware(decider, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/greet", nil)
		req = req.WithContext(WithPrincipal(req.Context(), nil))
		w := httptest.NewRecorder()
		mw.EnforcePolicy(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `Bearer realm="api"`, w.Header().Get("WWW-Authenticate"))

		var body utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "unauthorized", body.Error)
	})

	t.Run("forbidden is 403", func(t *testing.T) {
		decider := new(MockPolicyDecider)
		decider.On("Decide", "/api/users", mock.Anything).Return(policy.Forbidden)
		mw := NewPolicyEnforcementMiddleware(decider, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req = req.WithContext(WithPrincipal(req.Context(), &token.Principal{Subject: "u", Roles: []string{"USER"}}))
		w := httptest.NewRecorder()
		mw.EnforcePolicy(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("missing authentication stage is treated as anonymous", func(t *testing.T) {
		decider := new(MockPolicyDecider)
		decider.On("Decide", "/api/greet", (*token.Principal)(nil)).Return(policy.Unauthenticated)
		mw := NewPolicyEnforcementMiddleware(decider, nil, logger)

		w := httptest.NewRecorder()
		mw.EnforcePolicy(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/greet", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		decider.AssertExpectations(t)
	})
}

// TestAuthorizationMatrix runs Authenticate and EnforcePolicy together
// against the default route table.
func TestAuthorizationMatrix(t *testing.T) {
	logger := zap.NewNop()
	engine := policy.NewEngine(policy.DefaultRules())

	principals := map[string]token.Claims{
		"user-token":  {Subject: "user", Roles: []string{"USER"}},
		"admin-token": {Subject: "admin", Roles: []string{"ADMIN"}},
	}
	validator := new(MockTokenValidator)
	for raw, claims := range principals {
		validator.On("Validate", raw).Return(claims, nil)
	}
	validator.On("Validate", "expired-token").Return(token.Claims{}, token.ErrExpiredToken)

	auth := NewAuthMiddleware(validator, nil, nil, logger)
	enforce := NewPolicyEnforcementMiddleware(engine, nil, logger)
	chain := auth.Authenticate(enforce.EnforcePolicy(okHandler()))

	tests := []struct {
		path   string
		token  string
		status int
	}{
		{"/api/greet", "", http.StatusUnauthorized},
		{"/api/greet", "expired-token", http.StatusUnauthorized},
		{"/api/greet", "user-token", http.StatusOK},
		{"/api/greet", "admin-token", http.StatusOK},
		{"/api/users", "", http.StatusUnauthorized},
		{"/api/users", "user-token", http.StatusForbidden},
		{"/api/users", "admin-token", http.StatusOK},
		{"/api/login", "", http.StatusOK},
		{"/api/login", "expired-token", http.StatusOK},
		{"/api/unlisted", "", http.StatusUnauthorized},
		{"/api/unlisted", "user-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+tt.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			chain.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
