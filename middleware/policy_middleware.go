package middleware

import (
	"net/http"

	"github.com/upb/jwt-auth-gateway/policy"
	"github.com/upb/jwt-auth-gateway/token"
	"github.com/upb/jwt-auth-gateway/utils"
	"go.uber.org/zap"
)

// PolicyDecider defines the interface for route policy evaluation
type PolicyDecider interface {
	Decide(path string, principal *token.Principal) policy.Decision
}

// DecisionRecorder receives one outcome per evaluated request
type DecisionRecorder interface {
	PolicyDecided(decision string)
}

// PolicyEnforcementMiddleware turns policy decisions into 401 and 403 responses
type PolicyEnforcementMiddleware struct {
	engine   PolicyDecider
	recorder DecisionRecorder
	logger   *zap.Logger
}

// NewPolicyEnforcementMiddleware creates a new PolicyEnforcementMiddleware
func NewPolicyEnforcementMiddleware(engine PolicyDecider, recorder DecisionRecorder, logger *zap.Logger) *PolicyEnforcementMiddleware {
	return &PolicyEnforcementMiddleware{
		engine:   engine,
		recorder: recorder,
		logger:   logger,
	}
}

// EnforcePolicy must run after Authenticate. Requests reaching it without an
// authentication result are treated as anonymous.
func (m *PolicyEnforcementMiddleware) EnforcePolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		if !IsAuthenticationEvaluated(ctx) {
			m.logger.Error("policy evaluated before authentication; treating request as anonymous",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
		}

		principal := GetPrincipalFromContext(ctx)
		decision := m.engine.Decide(r.URL.Path, principal)
		if m.recorder != nil {
			m.recorder.PolicyDecided(decision.String())
		}

		switch decision {
		case policy.Permit:
			next.ServeHTTP(w, r)
		case policy.Forbidden:
			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.String("sub", subjectOf(principal)))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
		default:
			m.logger.Debug("authentication required",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteBearerChallenge(w, "Authentication required")
		}
	})
}

func subjectOf(p *token.Principal) string {
	if p == nil {
		return ""
	}
	return p.Subject
}
