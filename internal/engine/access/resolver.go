package access

import (
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

// Resolver answers authorization questions. A denied check is a false
// return, never an error; callers translate denial into their own protocol.
type Resolver struct {
	userRepo *repositories.UserRepository
	permRepo *repositories.PermissionRepository
}

func NewResolver(userRepo *repositories.UserRepository, permRepo *repositories.PermissionRepository) *Resolver {
	return &Resolver{userRepo: userRepo, permRepo: permRepo}
}

// HasPermission reports whether the permission appears in the user's direct
// grants or in any of their groups' grants. State is re-read on every call,
// so a revocation takes effect on the next check.
func (r *Resolver) HasPermission(userID, permissionName string) (bool, error) {
	names, err := r.permRepo.GetPermissionNamesForUser(userID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == permissionName {
			return true, nil
		}
	}
	return false, nil
}

// SatisfiesLevel implements the hierarchy gate: a lower value is more
// privileged, and level 1 passes everything.
func SatisfiesLevel(userHierarchy, requiredLevel int) bool {
	if userHierarchy == models.LevelSuperAdmin {
		return true
	}
	return userHierarchy <= requiredLevel
}

// IsTenantAdmin reports whether the user administers the given tenant. The
// super admin administers every tenant; a tenant admin only their own.
// tenantID == "" asks only whether the user is an admin of any scope.
func (r *Resolver) IsTenantAdmin(userID, tenantID string) (bool, error) {
	user, err := r.userRepo.GetByID(userID)
	if err != nil {
		return false, err
	}
	if user == nil || !user.Active {
		return false, nil
	}

	if user.IsSuperAdmin() {
		return true, nil
	}

	if user.Hierarchy > models.LevelTenantAdmin {
		return false, nil
	}

	if tenantID == "" {
		return true, nil
	}
	return user.TenantID != nil && *user.TenantID == tenantID, nil
}
