package handlers

import (
	"context"
	"net/http"

	"github.com/upb/jwt-auth-gateway/middleware"
	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/services"
	"github.com/upb/jwt-auth-gateway/utils"
	"go.uber.org/zap"
)

// Authenticator exchanges credentials for tokens and creates accounts
type Authenticator interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.IssuedToken, error)
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
}

// Refresher exchanges a valid token for a new one
type Refresher interface {
	Refresh(ctx context.Context, raw string) (*services.IssuedToken, error)
}

// AuthHandler serves the public credential endpoints
type AuthHandler struct {
	auth    Authenticator
	refresh Refresher
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth Authenticator, refresh Refresher, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		refresh: refresh,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	issued, err := h.auth.Login(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, issued)
}

// HandleRegister handles POST /api/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("account registered",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("username", user.Username))

	_ = utils.WriteCreated(w, newUserResponse(user), "User registered successfully")
}

// HandleRefresh handles POST /api/refresh. The current token is read from
// the Authorization header.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	issued, err := h.refresh.Refresh(r.Context(), middleware.ExtractBearerToken(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, issued)
}
