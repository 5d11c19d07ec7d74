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
	"mailpanel/internal/platform/auth"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

type GroupHandler struct {
	groupRepo *repositories.GroupRepository
	permRepo  *repositories.PermissionRepository
	userRepo  *repositories.UserRepository
}

func NewGroupHandler(groupRepo *repositories.GroupRepository, permRepo *repositories.PermissionRepository, userRepo *repositories.UserRepository) *GroupHandler {
	return &GroupHandler{groupRepo: groupRepo, permRepo: permRepo, userRepo: userRepo}
}

type CreateGroupRequest struct {
	TenantID    string `json:"tenant_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", map[string]string{"field": "name"})
		return
	}

	tenantID := req.TenantID
	if !access.SatisfiesLevel(claims.Hierarchy, models.LevelSuperAdmin) {
		tenantID = claims.TenantID
	}
	if tenantID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "tenant_id is required", map[string]string{"field": "tenant_id"})
		return
	}

	group := &models.Group{
		ID:          "grp_" + uuid.NewString(),
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().Unix(),
	}

	if err := h.groupRepo.Create(group); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create group", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if !access.SatisfiesLevel(claims.Hierarchy, models.LevelSuperAdmin) {
		tenantID = claims.TenantID
	}

	groups, err := h.groupRepo.ListByTenant(tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(groups)
}

// group returns the group from the route params, scoped to the caller's
// tenant unless the caller is the super admin.
func (h *GroupHandler) group(w http.ResponseWriter, r *http.Request) (*models.Group, bool) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return nil, false
	}

	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	group, err := h.groupRepo.GetByID(params.ByName("group_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return nil, false
	}
	if group == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Group not found", nil)
		return nil, false
	}
	if !access.SatisfiesLevel(claims.Hierarchy, models.LevelSuperAdmin) && group.TenantID != claims.TenantID {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Group belongs to another tenant", nil)
		return nil, false
	}
	return group, true
}

type MemberRequest struct {
	UserID string `json:"user_id"`
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	group, ok := h.group(w, r)
	if !ok {
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "user_id is required", nil)
		return
	}

	user, err := h.userRepo.GetByID(req.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil || user.TenantID == nil || *user.TenantID != group.TenantID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found in tenant", nil)
		return
	}

	if err := h.groupRepo.AddMember(group.ID, req.UserID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to add member", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	group, ok := h.group(w, r)
	if !ok {
		return
	}

	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	if err := h.groupRepo.RemoveMember(group.ID, params.ByName("user_id")); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to remove member", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type GrantRequest struct {
	Permission string `json:"permission"`
}

func (h *GroupHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	group, ok := h.group(w, r)
	if !ok {
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Permission == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "permission is required", nil)
		return
	}

	perm, err := h.permRepo.GetByName(req.Permission)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if perm == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Unknown permission", nil)
		return
	}

	if err := h.groupRepo.GrantPermission(group.ID, perm.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to grant permission", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	group, ok := h.group(w, r)
	if !ok {
		return
	}

	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	perm, err := h.permRepo.GetByName(params.ByName("permission"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if perm == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Unknown permission", nil)
		return
	}

	if err := h.groupRepo.RevokePermission(group.ID, perm.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to revoke permission", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
