package repositories

import (
	"database/sql"

	"mailpanel/internal/platform/models"
)

type PermissionRepository struct {
	db *sql.DB
}

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Ensure(perms []models.Permission) error {
	for _, p := range perms {
		if _, err := r.db.Exec(`INSERT OR IGNORE INTO permissions (id, name, description) VALUES (?, ?, ?)`, p.ID, p.Name, p.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *PermissionRepository) List() ([]*models.Permission, error) {
	rows, err := r.db.Query(`SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*models.Permission
	for rows.Next() {
		p := &models.Permission{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *PermissionRepository) GetByName(name string) (*models.Permission, error) {
	p := &models.Permission{}
	err := r.db.QueryRow(`SELECT id, name, description FROM permissions WHERE name = ?`, name).Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// GetPermissionNamesForUser returns the effective permission set: direct
// grants unioned with grants reachable through group membership. Groups do
// not nest, so one union is the whole resolution.
func (r *PermissionRepository) GetPermissionNamesForUser(userID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT p.name FROM user_permissions up
		JOIN permissions p ON up.permission_id = p.id
		WHERE up.user_id = ?
		UNION
		SELECT p.name FROM user_groups ug
		JOIN group_permissions gp ON ug.group_id = gp.group_id
		JOIN permissions p ON gp.permission_id = p.id
		WHERE ug.user_id = ?
	`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PermissionRepository) GrantToUser(userID, permissionID string) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO user_permissions (user_id, permission_id) VALUES (?, ?)`, userID, permissionID)
	return err
}

func (r *PermissionRepository) RevokeFromUser(userID, permissionID string) error {
	_, err := r.db.Exec(`DELETE FROM user_permissions WHERE user_id = ? AND permission_id = ?`, userID, permissionID)
	return err
}

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(group *models.Group) error {
	_, err := r.db.Exec(`
		INSERT INTO groups (id, tenant_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, group.ID, group.TenantID, group.Name, group.Description, group.CreatedAt)
	return err
}

func (r *GroupRepository) GetByID(id string) (*models.Group, error) {
	group := &models.Group{}
	err := r.db.QueryRow(`
		SELECT id, tenant_id, name, description, created_at FROM groups WHERE id = ?
	`, id).Scan(&group.ID, &group.TenantID, &group.Name, &group.Description, &group.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return group, nil
}

func (r *GroupRepository) ListByTenant(tenantID string) ([]*models.Group, error) {
	rows, err := r.db.Query(`SELECT id, tenant_id, name, description, created_at FROM groups WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.TenantID, &group.Name, &group.Description, &group.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (r *GroupRepository) AddMember(groupID, userID string) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO user_groups (user_id, group_id) VALUES (?, ?)`, userID, groupID)
	return err
}

func (r *GroupRepository) RemoveMember(groupID, userID string) error {
	_, err := r.db.Exec(`DELETE FROM user_groups WHERE user_id = ? AND group_id = ?`, userID, groupID)
	return err
}

func (r *GroupRepository) GrantPermission(groupID, permissionID string) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO group_permissions (group_id, permission_id) VALUES (?, ?)`, groupID, permissionID)
	return err
}

func (r *GroupRepository) RevokePermission(groupID, permissionID string) error {
	_, err := r.db.Exec(`DELETE FROM group_permissions WHERE group_id = ? AND permission_id = ?`, groupID, permissionID)
	return err
}
