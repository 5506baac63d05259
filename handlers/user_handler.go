package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/jwt-auth-gateway/middleware"
	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/utils"
	"go.uber.org/zap"
)

// UserLister lists accounts
type UserLister interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// UserResponse is the public view of an account
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *models.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}

// PrincipalResponse is the response body for GET /api/me
type PrincipalResponse struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

// UserHandler serves the endpoints that act on the caller's principal
type UserHandler struct {
	users  UserLister
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserLister, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleGreet handles GET /api/greet
func (h *UserHandler) HandleGreet(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	_ = utils.WriteText(w, http.StatusOK, fmt.Sprintf("Hello, %s!", principal.Subject))
}

// HandleMe handles GET /api/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	roles := principal.Roles
	if roles == nil {
		roles = []string{}
	}
	_ = utils.WriteOK(w, PrincipalResponse{Subject: principal.Subject, Roles: roles})
}

// HandleListUsers handles GET /api/users
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	_ = utils.WriteOK(w, out)
}
