package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"mailpanel/internal/platform/auth"
	"mailpanel/internal/platform/config"
	"mailpanel/internal/platform/database"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		company_name TEXT NOT NULL,
		domain TEXT NOT NULL UNIQUE,
		active INTEGER NOT NULL DEFAULT 1,
		config TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		tenant_id TEXT REFERENCES tenants(id),
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		hierarchy INTEGER NOT NULL,
		role_label TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		last_login_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(tenant_id, username)
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_groups (
		user_id TEXT NOT NULL REFERENCES users(id),
		group_id TEXT NOT NULL REFERENCES groups(id),
		PRIMARY KEY (user_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_permissions (
		group_id TEXT NOT NULL REFERENCES groups(id),
		permission_id TEXT NOT NULL REFERENCES permissions(id),
		PRIMARY KEY (group_id, permission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_permissions (
		user_id TEXT NOT NULL REFERENCES users(id),
		permission_id TEXT NOT NULL REFERENCES permissions(id),
		PRIMARY KEY (user_id, permission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS token_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		refresh_hash TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mailbox_messages (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		read INTEGER NOT NULL DEFAULT 0,
		received_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mailbox_recipient ON mailbox_messages(recipient, received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_token_records_user ON token_records(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_users_tenant ON users(tenant_id)`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS audit_logs`,
	`DROP TABLE IF EXISTS mailbox_messages`,
	`DROP TABLE IF EXISTS token_records`,
	`DROP TABLE IF EXISTS user_permissions`,
	`DROP TABLE IF EXISTS group_permissions`,
	`DROP TABLE IF EXISTS user_groups`,
	`DROP TABLE IF EXISTS permissions`,
	`DROP TABLE IF EXISTS groups`,
	`DROP TABLE IF EXISTS users`,
	`DROP TABLE IF EXISTS tenants`,
}

var defaultPermissions = []models.Permission{
	{Name: "manage_domain", Description: "Manage tenant domain settings"},
	{Name: "manage_users", Description: "Manage tenant users"},
	{Name: "manage_groups", Description: "Manage tenant groups"},
	{Name: "view_emails", Description: "View tenant mailboxes"},
	{Name: "send_emails", Description: "Send mail through the tenant domain"},
	{Name: "manage_permissions", Description: "Manage grants"},
}

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch *direction {
	case "up":
		if err := migrateUp(db); err != nil {
			log.Fatal(err)
		}
		log.Println("Migration complete")
	case "down":
		for _, stmt := range dropStatements {
			if _, err := db.Exec(stmt); err != nil {
				log.Fatal(err)
			}
		}
		log.Println("Schema dropped")
	default:
		log.Fatalf("Unknown direction: %s", *direction)
	}
}

func migrateUp(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	permRepo := repositories.NewPermissionRepository(db)
	perms := make([]models.Permission, 0, len(defaultPermissions))
	for _, p := range defaultPermissions {
		p.ID = "perm_" + uuid.NewString()
		perms = append(perms, p)
	}
	if err := permRepo.Ensure(perms); err != nil {
		return err
	}

	return bootstrapSuperAdmin(db)
}

// bootstrapSuperAdmin creates the single global level-1 account when no user
// holds that level yet. The initial password comes from the environment and
// must be changed after first login.
func bootstrapSuperAdmin(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE hierarchy = 1`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := os.Getenv("MAILPANEL_ADMIN_PASSWORD")
	if password == "" {
		password = "change-me"
		log.Println("MAILPANEL_ADMIN_PASSWORD not set, using default bootstrap password")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	userRepo := repositories.NewUserRepository(db)
	return userRepo.Create(&models.User{
		ID:           "usr_" + uuid.NewString(),
		TenantID:     nil,
		Username:     "superadmin",
		Email:        "admin@system.local",
		PasswordHash: hash,
		Hierarchy:    models.LevelSuperAdmin,
		RoleLabel:    "Super Administrator",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
