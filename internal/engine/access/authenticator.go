package access

import (
	"time"

	"github.com/rs/zerolog/log"

	pkgerrors "mailpanel/internal/pkg/errors"
	"mailpanel/internal/platform/audit"
	"mailpanel/internal/platform/auth"
	"mailpanel/internal/platform/repositories"
)

// Authenticator verifies submitted credentials scoped by tenant domain and
// issues a token pair on success.
type Authenticator struct {
	tenantRepo *repositories.TenantRepository
	userRepo   *repositories.UserRepository
	tokenSvc   *auth.TokenService
	audit      *audit.Logger
}

func NewAuthenticator(tenantRepo *repositories.TenantRepository, userRepo *repositories.UserRepository, tokenSvc *auth.TokenService, auditLog *audit.Logger) *Authenticator {
	return &Authenticator{
		tenantRepo: tenantRepo,
		userRepo:   userRepo,
		tokenSvc:   tokenSvc,
		audit:      auditLog,
	}
}

// Login resolves the tenant scope first: an unknown domain fails before any
// password work, so domain scoping itself acts as an access boundary. An
// empty domain selects the global super-admin scope. Unknown user, wrong
// password and inactive user all collapse into one uniform failure.
func (a *Authenticator) Login(tenantDomain, username, password string) (*auth.Credential, error) {
	var tenantID *string
	var auditTenant string

	if tenantDomain != "" {
		tenant, err := a.tenantRepo.GetByDomain(tenantDomain)
		if err != nil {
			return nil, err
		}
		if tenant == nil || !tenant.Active {
			return nil, pkgerrors.ErrTenantNotFound
		}
		tenantID = &tenant.ID
		auditTenant = tenant.ID
	}

	user, err := a.userRepo.GetByUsernameAndTenant(username, tenantID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		a.audit.Record(auditTenant, "", audit.ActionLoginFailed, map[string]interface{}{"username": username})
		return nil, pkgerrors.ErrInvalidCredentials
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		a.audit.Record(auditTenant, user.ID, audit.ActionLoginFailed, map[string]interface{}{"username": username})
		return nil, pkgerrors.ErrInvalidCredentials
	}

	cred, err := a.tokenSvc.Issue(user)
	if err != nil {
		return nil, err
	}

	if err := a.userRepo.UpdateLastLogin(user.ID, time.Now().Unix()); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	}

	a.audit.Record(auditTenant, user.ID, audit.ActionLogin, nil)
	return cred, nil
}
