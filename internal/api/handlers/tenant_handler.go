package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	apiContext "mailpanel/internal/api/context"
	"mailpanel/internal/pkg/errors"
	"mailpanel/internal/platform/audit"
	"mailpanel/internal/platform/auth"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

type TenantHandler struct {
	tenantRepo  *repositories.TenantRepository
	userRepo    *repositories.UserRepository
	mailboxRepo *repositories.MailboxRepository
	audit       *audit.Logger
}

func NewTenantHandler(tenantRepo *repositories.TenantRepository, userRepo *repositories.UserRepository, mailboxRepo *repositories.MailboxRepository, auditLog *audit.Logger) *TenantHandler {
	return &TenantHandler{tenantRepo: tenantRepo, userRepo: userRepo, mailboxRepo: mailboxRepo, audit: auditLog}
}

type CreateTenantRequest struct {
	CompanyName string            `json:"company_name"`
	Domain      string            `json:"domain"`
	Config      map[string]string `json:"config,omitempty"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if req.CompanyName == "" || req.Domain == "" || !strings.Contains(req.Domain, ".") {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "company_name and a valid domain are required", nil)
		return
	}

	existing, err := h.tenantRepo.GetByDomain(req.Domain)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if existing != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Domain already registered", map[string]string{"field": "domain"})
		return
	}

	now := time.Now().Unix()
	tenant := &models.Tenant{
		ID:          "tnt_" + uuid.NewString(),
		CompanyName: req.CompanyName,
		Domain:      req.Domain,
		Active:      true,
		Config:      req.Config,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.tenantRepo.Create(tenant); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create tenant", nil)
		return
	}

	if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
		h.audit.Record(tenant.ID, claims.UserID, audit.ActionTenantCreate, map[string]interface{}{"domain": tenant.Domain})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tenant)
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenantRepo.List()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenants)
}

// Deactivate soft-disables a tenant. The row stays so delivered mail and
// audit history keep their owner; logins and inbound mail stop immediately.
func (h *TenantHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	tenantID := params.ByName("tenant_id")

	tenant, err := h.tenantRepo.GetByID(tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if tenant == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Tenant not found", nil)
		return
	}

	if err := h.tenantRepo.Deactivate(tenantID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to deactivate tenant", nil)
		return
	}

	if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
		h.audit.Record(tenantID, claims.UserID, audit.ActionTenantDisable, nil)
	}

	w.WriteHeader(http.StatusNoContent)
}

type UpdateTenantRequest struct {
	CompanyName string `json:"company_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// Update renames a tenant. The domain is the routing key for login and mail
// delivery, so it freezes as soon as any message has been delivered against
// it; renaming it afterwards would orphan stored mail.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	tenantID := params.ByName("tenant_id")

	var req UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	tenant, err := h.tenantRepo.GetByID(tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if tenant == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Tenant not found", nil)
		return
	}

	if req.CompanyName = strings.TrimSpace(req.CompanyName); req.CompanyName != "" {
		tenant.CompanyName = req.CompanyName
	}

	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	if req.Domain != "" && req.Domain != tenant.Domain {
		if !strings.Contains(req.Domain, ".") {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid domain", map[string]string{"field": "domain"})
			return
		}

		delivered, err := h.mailboxRepo.CountForTenant(tenantID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
			return
		}
		if delivered > 0 {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Domain is frozen once mail has been delivered", map[string]string{"field": "domain"})
			return
		}

		existing, err := h.tenantRepo.GetByDomain(req.Domain)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
			return
		}
		if existing != nil {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Domain already registered", map[string]string{"field": "domain"})
			return
		}
		tenant.Domain = req.Domain
	}

	if err := h.tenantRepo.Rename(tenantID, tenant.CompanyName, tenant.Domain); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update tenant", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

type UpdateTenantConfigRequest struct {
	Config map[string]string `json:"config"`
}

func (h *TenantHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	tenantID := params.ByName("tenant_id")

	var req UpdateTenantConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	tenant, err := h.tenantRepo.GetByID(tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if tenant == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Tenant not found", nil)
		return
	}

	if err := h.tenantRepo.UpdateConfig(tenantID, req.Config); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update config", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
