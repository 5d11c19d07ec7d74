package handlers

import (
	"encoding/json"
	"net/http"

	stderrors "errors"

	apiContext "mailpanel/internal/api/context"
	"mailpanel/internal/engine/access"
	"mailpanel/internal/pkg/errors"
	"mailpanel/internal/platform/audit"
	"mailpanel/internal/platform/auth"
	"mailpanel/internal/platform/repositories"
)

type AuthHandler struct {
	authenticator *access.Authenticator
	tokenSvc      *auth.TokenService
	userRepo      *repositories.UserRepository
	audit         *audit.Logger
}

func NewAuthHandler(authenticator *access.Authenticator, tokenSvc *auth.TokenService, userRepo *repositories.UserRepository, auditLog *audit.Logger) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		tokenSvc:      tokenSvc,
		userRepo:      userRepo,
		audit:         auditLog,
	}
}

type LoginRequest struct {
	TenantDomain string `json:"tenant_domain"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	cred, err := h.authenticator.Login(req.TenantDomain, req.Username, req.Password)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrTenantNotFound), stderrors.Is(err, errors.ErrInvalidCredentials):
			// Uniform failure, no detail about which check tripped.
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		default:
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cred)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	cred, err := h.tokenSvc.Refresh(req.RefreshToken)
	if err != nil {
		if stderrors.Is(err, errors.ErrAuthenticationFailed) {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid refresh token", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	if claims, err := h.tokenSvc.Verify(cred.AccessToken, auth.KindAccess); err == nil {
		h.audit.Record(claims.TenantID, claims.UserID, audit.ActionTokenRefresh, nil)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cred)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	if err := h.tokenSvc.Revoke(claims.UserID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to revoke tokens", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
