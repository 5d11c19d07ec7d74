package access

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}

	statements := []string{
		`CREATE TABLE tenants (
			id TEXT PRIMARY KEY,
			company_name TEXT NOT NULL,
			domain TEXT NOT NULL UNIQUE,
			active INTEGER NOT NULL DEFAULT 1,
			config TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			tenant_id TEXT,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			hierarchy INTEGER NOT NULL,
			role_label TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			last_login_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE groups (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE permissions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE user_groups (user_id TEXT, group_id TEXT, PRIMARY KEY (user_id, group_id))`,
		`CREATE TABLE group_permissions (group_id TEXT, permission_id TEXT, PRIMARY KEY (group_id, permission_id))`,
		`CREATE TABLE user_permissions (user_id TEXT, permission_id TEXT, PRIMARY KEY (user_id, permission_id))`,
		`CREATE TABLE token_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			refresh_hash TEXT NOT NULL UNIQUE,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to create schema: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *sql.DB, id string, tenantID *string, username, email string, hierarchy int, active bool) {
	now := time.Now().Unix()
	repo := repositories.NewUserRepository(db)
	err := repo.Create(&models.User{
		ID:           id,
		TenantID:     tenantID,
		Username:     username,
		Email:        email,
		PasswordHash: "x",
		Hierarchy:    hierarchy,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
}

func TestResolver_HasPermission(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tenantID := "tnt_1"
	seedUser(t, db, "usr_1", &tenantID, "alice", "alice@acme.test", models.LevelMember, true)

	if _, err := db.Exec(`INSERT INTO permissions (id, name) VALUES ('perm_1', 'view_emails'), ('perm_2', 'manage_users')`); err != nil {
		t.Fatalf("Failed to seed permissions: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO groups (id, tenant_id, name, created_at) VALUES ('grp_1', 'tnt_1', 'ops', 0)`); err != nil {
		t.Fatalf("Failed to seed group: %v", err)
	}

	resolver := NewResolver(repositories.NewUserRepository(db), repositories.NewPermissionRepository(db))

	// No grants at all
	ok, err := resolver.HasPermission("usr_1", "view_emails")
	if err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}
	if ok {
		t.Error("Expected no permission before any grant")
	}

	// Direct grant
	if _, err := db.Exec(`INSERT INTO user_permissions (user_id, permission_id) VALUES ('usr_1', 'perm_1')`); err != nil {
		t.Fatalf("Failed to grant: %v", err)
	}
	ok, _ = resolver.HasPermission("usr_1", "view_emails")
	if !ok {
		t.Error("Expected direct grant to resolve")
	}

	// Group grant on top of the direct one must not remove anything
	if _, err := db.Exec(`INSERT INTO user_groups (user_id, group_id) VALUES ('usr_1', 'grp_1')`); err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO group_permissions (group_id, permission_id) VALUES ('grp_1', 'perm_2')`); err != nil {
		t.Fatalf("Failed to grant group permission: %v", err)
	}
	ok, _ = resolver.HasPermission("usr_1", "view_emails")
	if !ok {
		t.Error("Direct grant lost after adding group grant")
	}
	ok, _ = resolver.HasPermission("usr_1", "manage_users")
	if !ok {
		t.Error("Expected group grant to resolve")
	}

	// Revoking the last qualifying grant flips the result on the next call
	if _, err := db.Exec(`DELETE FROM user_permissions WHERE user_id = 'usr_1'`); err != nil {
		t.Fatalf("Failed to revoke: %v", err)
	}
	ok, _ = resolver.HasPermission("usr_1", "view_emails")
	if ok {
		t.Error("Expected revocation to take effect on the next check")
	}
}

func TestSatisfiesLevel(t *testing.T) {
	tests := []struct {
		name     string
		user     int
		required int
		expected bool
	}{
		{"Super admin passes everything", 1, 7, true},
		{"Super admin passes level 1", 1, 1, true},
		{"Equal levels", 3, 3, true},
		{"More privileged", 2, 5, true},
		{"Less privileged", 5, 2, false},
		{"Member fails admin gate", 7, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SatisfiesLevel(tt.user, tt.required); got != tt.expected {
				t.Errorf("SatisfiesLevel(%d, %d) = %v, want %v", tt.user, tt.required, got, tt.expected)
			}
		})
	}
}

func TestResolver_IsTenantAdmin(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tenantA := "tnt_a"
	tenantB := "tnt_b"
	seedUser(t, db, "usr_root", nil, "superadmin", "root@system.local", models.LevelSuperAdmin, true)
	seedUser(t, db, "usr_admin_a", &tenantA, "admin", "admin@a.test", models.LevelTenantAdmin, true)
	seedUser(t, db, "usr_member_a", &tenantA, "bob", "bob@a.test", models.LevelMember, true)
	seedUser(t, db, "usr_inactive", &tenantA, "gone", "gone@a.test", models.LevelTenantAdmin, false)

	resolver := NewResolver(repositories.NewUserRepository(db), repositories.NewPermissionRepository(db))

	tests := []struct {
		name     string
		userID   string
		tenantID string
		expected bool
	}{
		{"Super admin any tenant", "usr_root", tenantB, true},
		{"Tenant admin own tenant", "usr_admin_a", tenantA, true},
		{"Tenant admin cross tenant", "usr_admin_a", tenantB, false},
		{"Tenant admin unscoped", "usr_admin_a", "", true},
		{"Member", "usr_member_a", tenantA, false},
		{"Inactive admin", "usr_inactive", tenantA, false},
		{"Unknown user", "usr_missing", tenantA, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.IsTenantAdmin(tt.userID, tt.tenantID)
			if err != nil {
				t.Fatalf("IsTenantAdmin failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("IsTenantAdmin(%s, %s) = %v, want %v", tt.userID, tt.tenantID, got, tt.expected)
			}
		})
	}
}
