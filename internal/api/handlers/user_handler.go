package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	apiContext "mailpanel/internal/api/context"
	"mailpanel/internal/engine/access"
	"mailpanel/internal/pkg/errors"
	"mailpanel/internal/pkg/validator"
	"mailpanel/internal/platform/audit"
	"mailpanel/internal/platform/auth"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

type UserHandler struct {
	userRepo   *repositories.UserRepository
	tenantRepo *repositories.TenantRepository
	tokenSvc   *auth.TokenService
	resolver   *access.Resolver
	audit      *audit.Logger
}

func NewUserHandler(userRepo *repositories.UserRepository, tenantRepo *repositories.TenantRepository, tokenSvc *auth.TokenService, resolver *access.Resolver, auditLog *audit.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, tenantRepo: tenantRepo, tokenSvc: tokenSvc, resolver: resolver, audit: auditLog}
}

type CreateUserRequest struct {
	TenantID  string `json:"tenant_id,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Hierarchy int    `json:"hierarchy"`
	RoleLabel string `json:"role_label,omitempty"`
}

// Create registers a user inside a tenant. A tenant admin may only create
// users in their own tenant and never above their own level; assigning the
// global level 1 is off limits entirely, that seat is fixed.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Password == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "username and password are required", nil)
		return
	}
	if err := validator.IsValidEmail(req.Email); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid email address", map[string]string{"field": "email"})
		return
	}
	if req.Hierarchy <= models.LevelSuperAdmin {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Hierarchy level reserved", map[string]string{"field": "hierarchy"})
		return
	}
	if req.Hierarchy < claims.Hierarchy {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Cannot create a user above your own level", nil)
		return
	}

	// Tenant admins are pinned to their own tenant; the super admin picks one.
	tenantID := req.TenantID
	if !access.SatisfiesLevel(claims.Hierarchy, models.LevelSuperAdmin) {
		tenantID = claims.TenantID
	}
	if tenantID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "tenant_id is required", map[string]string{"field": "tenant_id"})
		return
	}

	admin, err := h.resolver.IsTenantAdmin(claims.UserID, tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if !admin {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Not an administrator of this tenant", nil)
		return
	}

	tenant, err := h.tenantRepo.GetByID(tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if tenant == nil || !tenant.Active {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Tenant not found", nil)
		return
	}

	existing, err := h.userRepo.GetByEmail(req.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if existing != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Email already registered", map[string]string{"field": "email"})
		return
	}

	duplicate, err := h.userRepo.GetByUsernameAndTenant(req.Username, &tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if duplicate != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Username already taken in tenant", map[string]string{"field": "username"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to hash password", nil)
		return
	}

	now := time.Now().Unix()
	user := &models.User{
		ID:           "usr_" + uuid.NewString(),
		TenantID:     &tenantID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Hierarchy:    req.Hierarchy,
		RoleLabel:    req.RoleLabel,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.userRepo.Create(user); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create user", nil)
		return
	}

	h.audit.Record(tenantID, claims.UserID, audit.ActionUserCreate, map[string]interface{}{"created": user.ID})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if !access.SatisfiesLevel(claims.Hierarchy, models.LevelSuperAdmin) {
		tenantID = claims.TenantID
	}
	if tenantID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "tenant_id is required", nil)
		return
	}

	users, err := h.userRepo.ListByTenant(tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// Deactivate disables a user and revokes their outstanding tokens so no
// unexpired credential keeps authorizing.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	userID := params.ByName("user_id")

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	if user.IsSuperAdmin() {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Cannot deactivate the super admin", nil)
		return
	}

	// The resolver is the authority on tenant-admin scope, so a tenant admin
	// of one tenant can never satisfy a check against another.
	targetTenant := ""
	if user.TenantID != nil {
		targetTenant = *user.TenantID
	}
	admin, err := h.resolver.IsTenantAdmin(claims.UserID, targetTenant)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if !admin {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User belongs to another tenant", nil)
		return
	}

	if err := h.userRepo.SetActive(userID, false); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to deactivate user", nil)
		return
	}
	if err := h.tokenSvc.Revoke(userID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to revoke tokens", nil)
		return
	}

	tenantID := ""
	if user.TenantID != nil {
		tenantID = *user.TenantID
	}
	h.audit.Record(tenantID, claims.UserID, audit.ActionUserDisable, map[string]interface{}{"disabled": userID})

	w.WriteHeader(http.StatusNoContent)
}
