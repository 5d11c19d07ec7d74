package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"mailpanel/internal/platform/models"
)

type TenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(tenant *models.Tenant) error {
	cfg, err := json.Marshal(tenant.Config)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO tenants (id, company_name, domain, active, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tenant.ID, tenant.CompanyName, tenant.Domain, tenant.Active, string(cfg), tenant.CreatedAt, tenant.UpdatedAt)
	return err
}

func (r *TenantRepository) GetByID(id string) (*models.Tenant, error) {
	return r.scanOne(`
		SELECT id, company_name, domain, active, config, created_at, updated_at
		FROM tenants WHERE id = ?
	`, id)
}

func (r *TenantRepository) GetByDomain(domain string) (*models.Tenant, error) {
	return r.scanOne(`
		SELECT id, company_name, domain, active, config, created_at, updated_at
		FROM tenants WHERE domain = ?
	`, domain)
}

func (r *TenantRepository) scanOne(query string, arg interface{}) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	var cfg string
	err := r.db.QueryRow(query, arg).Scan(&tenant.ID, &tenant.CompanyName, &tenant.Domain, &tenant.Active, &cfg, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &tenant.Config); err != nil {
			return nil, err
		}
	}
	return tenant, nil
}

func (r *TenantRepository) List() ([]*models.Tenant, error) {
	rows, err := r.db.Query(`
		SELECT id, company_name, domain, active, config, created_at, updated_at
		FROM tenants ORDER BY company_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		var cfg string
		if err := rows.Scan(&tenant.ID, &tenant.CompanyName, &tenant.Domain, &tenant.Active, &cfg, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		if cfg != "" {
			if err := json.Unmarshal([]byte(cfg), &tenant.Config); err != nil {
				return nil, err
			}
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// Deactivate flips the active flag. Tenants are never deleted so mail and
// audit history keep a valid owner.
func (r *TenantRepository) Deactivate(id string) error {
	_, err := r.db.Exec(`UPDATE tenants SET active = 0, updated_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

// Rename updates the display name and domain. The delivered-mail guard
// lives in the caller; the repository only persists.
func (r *TenantRepository) Rename(id, companyName, domain string) error {
	_, err := r.db.Exec(`UPDATE tenants SET company_name = ?, domain = ?, updated_at = ? WHERE id = ?`, companyName, domain, time.Now().Unix(), id)
	return err
}

func (r *TenantRepository) UpdateConfig(id string, config map[string]string) error {
	cfg, err := json.Marshal(config)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`UPDATE tenants SET config = ?, updated_at = ? WHERE id = ?`, string(cfg), time.Now().Unix(), id)
	return err
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, tenant_id, username, email, password_hash, hierarchy, role_label, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.TenantID, user.Username, user.Email, user.PasswordHash, user.Hierarchy, user.RoleLabel, user.Active, user.CreatedAt, user.UpdatedAt)
	return err
}

const userColumns = `id, tenant_id, username, email, password_hash, hierarchy, role_label, active, last_login_at, created_at, updated_at`

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.TenantID, &user.Username, &user.Email, &user.PasswordHash, &user.Hierarchy, &user.RoleLabel, &user.Active, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// GetByUsernameAndTenant resolves a user within one tenant scope. A nil
// tenantID selects the global scope, which only the super admin occupies.
func (r *UserRepository) GetByUsernameAndTenant(username string, tenantID *string) (*models.User, error) {
	if tenantID == nil {
		return r.scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ? AND tenant_id IS NULL`, username))
	}
	return r.scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ? AND tenant_id = ?`, username, *tenantID))
}

func (r *UserRepository) ListByTenant(tenantID string) ([]*models.User, error) {
	rows, err := r.db.Query(`SELECT `+userColumns+` FROM users WHERE tenant_id = ? ORDER BY hierarchy, username`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.TenantID, &user.Username, &user.Email, &user.PasswordHash, &user.Hierarchy, &user.RoleLabel, &user.Active, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateLastLogin(userID string, timestamp int64) error {
	_, err := r.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, timestamp, userID)
	return err
}

func (r *UserRepository) SetActive(userID string, active bool) error {
	_, err := r.db.Exec(`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now().Unix(), userID)
	return err
}

func (r *UserRepository) UpdateHierarchy(userID string, hierarchy int, roleLabel string) error {
	_, err := r.db.Exec(`UPDATE users SET hierarchy = ?, role_label = ?, updated_at = ? WHERE id = ?`, hierarchy, roleLabel, time.Now().Unix(), userID)
	return err
}
