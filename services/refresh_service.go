package services

import (
	"context"

	"github.com/upb/jwt-auth-gateway/token"
	"go.uber.org/zap"
)

// TokenValidator validates a presented token
type TokenValidator interface {
	Validate(tokenString string) (token.Claims, error)
}

// RefreshService exchanges a still-valid token for a new one
type RefreshService struct {
	validator TokenValidator
	issuer    TokenIssuer
	recorder  AuthRecorder
	logger    *zap.Logger
}

// NewRefreshService creates a new RefreshService
func NewRefreshService(validator TokenValidator, issuer TokenIssuer, recorder AuthRecorder, logger *zap.Logger) *RefreshService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &RefreshService{
		validator: validator,
		issuer:    issuer,
		recorder:  recorder,
		logger:    logger,
	}
}

// Refresh validates raw in full and issues a token with the same subject and
// roles. Expired tokens are rejected. The presented token stays valid until
// its own expiry.
func (s *RefreshService) Refresh(ctx context.Context, raw string) (*IssuedToken, error) {
	if raw == "" {
		return nil, ErrTokenRefreshRejected.WithDetail("reason", "missing")
	}

	claims, err := s.validator.Validate(raw)
	if err != nil {
		reason := token.Reason(err)
		s.logger.Debug("refresh rejected", zap.String("reason", reason), zap.Error(err))
		return nil, ErrTokenRefreshRejected.WithDetail("reason", reason).Wrap(err)
	}

	fresh, freshClaims, err := s.issuer.Issue(claims.Subject, claims.Roles)
	if err != nil {
		return nil, WrapInternal("failed to issue token", err)
	}
	s.recorder.TokenIssued("refresh")

	s.logger.Info("token refreshed",
		zap.String("sub", freshClaims.Subject),
		zap.String("previous_jti", claims.ID),
		zap.String("jti", freshClaims.ID))

	return newIssuedToken(fresh, freshClaims), nil
}
