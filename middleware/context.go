package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/jwt-auth-gateway/token"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"
)

// authState is stored once per request by Authenticate. A nil principal
// means the request is anonymous.
type authState struct {
	principal *token.Principal
}

// GetRequestIDFromContext retrieves the request ID from context, falling back
// to the ID assigned by chi's RequestID middleware.
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithPrincipal records the request's principal. Pass nil for anonymous.
func WithPrincipal(ctx context.Context, principal *token.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, &authState{principal: principal})
}

// GetPrincipalFromContext returns the authenticated principal, or nil when
// the request is anonymous or was never authenticated.
func GetPrincipalFromContext(ctx context.Context) *token.Principal {
	if state := getAuthState(ctx); state != nil {
		return state.principal
	}
	return nil
}

// IsAuthenticationEvaluated reports whether Authenticate has run for this request.
func IsAuthenticationEvaluated(ctx context.Context) bool {
	return getAuthState(ctx) != nil
}

func getAuthState(ctx context.Context) *authState {
	if val := ctx.Value(PrincipalKey); val != nil {
		if state, ok := val.(*authState); ok {
			return state
		}
	}
	return nil
}
