package auth

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mailpanel/internal/platform/config"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
	pkgerrors "mailpanel/internal/pkg/errors"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}

	statements := []string{
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
		`CREATE TABLE token_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			refresh_hash TEXT NOT NULL UNIQUE,
			expires_at INTEGER NOT NULL,
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

func newTestService(db *sql.DB) *TokenService {
	cfg := config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
	return NewTokenService(cfg, repositories.NewTokenRepository(db), repositories.NewUserRepository(db))
}

func seedUser(t *testing.T, db *sql.DB, id string, tenantID *string, hierarchy int, active bool) *models.User {
	now := time.Now().Unix()
	user := &models.User{
		ID:           id,
		TenantID:     tenantID,
		Username:     id,
		Email:        id + "@test.local",
		PasswordHash: "x",
		Hierarchy:    hierarchy,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tenantID := "tnt_1"
	user := seedUser(t, db, "usr_1", &tenantID, models.LevelTenantAdmin, true)
	svc := newTestService(db)

	cred, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := svc.Verify(cred.AccessToken, KindAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "usr_1" {
		t.Errorf("Expected user usr_1, got %s", claims.UserID)
	}
	if claims.TenantID != "tnt_1" {
		t.Errorf("Expected tenant tnt_1, got %s", claims.TenantID)
	}
	if claims.Hierarchy != models.LevelTenantAdmin {
		t.Errorf("Expected hierarchy %d, got %d", models.LevelTenantAdmin, claims.Hierarchy)
	}

	// One record per issuance
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM token_records WHERE user_id = 'usr_1'`).Scan(&count); err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 token record, got %d", count)
	}
}

func TestTokenService_Verify_KindMismatch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	user := seedUser(t, db, "usr_1", nil, models.LevelSuperAdmin, true)
	svc := newTestService(db)

	cred, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := svc.Verify(cred.RefreshToken, KindAccess); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for refresh-as-access, got %v", err)
	}
	if _, err := svc.Verify(cred.AccessToken, KindRefresh); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for access-as-refresh, got %v", err)
	}
	if _, err := svc.Verify("not-a-token", KindAccess); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for garbage input, got %v", err)
	}
}

func TestTokenService_Verify_ExpiryBoundary(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	user := seedUser(t, db, "usr_1", nil, models.LevelSuperAdmin, true)
	svc := newTestService(db)

	issuedAt := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return issuedAt }

	cred, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// One second before expiry it still verifies.
	svc.now = func() time.Time { return issuedAt.Add(30*time.Minute - time.Second) }
	if _, err := svc.Verify(cred.AccessToken, KindAccess); err != nil {
		t.Errorf("Expected token to verify before expiry, got %v", err)
	}

	// At exactly the expiry instant it does not.
	svc.now = func() time.Time { return issuedAt.Add(30 * time.Minute) }
	if _, err := svc.Verify(cred.AccessToken, KindAccess); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed at the expiry instant, got %v", err)
	}
}

func TestTokenService_Verify_DeactivatedUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	user := seedUser(t, db, "usr_1", nil, models.LevelSuperAdmin, true)
	svc := newTestService(db)

	cred, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := repositories.NewUserRepository(db).SetActive("usr_1", false); err != nil {
		t.Fatalf("Failed to deactivate user: %v", err)
	}

	if _, err := svc.Verify(cred.AccessToken, KindAccess); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for deactivated user, got %v", err)
	}
	if _, err := svc.Refresh(cred.RefreshToken); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected refresh to fail for deactivated user, got %v", err)
	}
}

func TestTokenService_Refresh_Rotation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	user := seedUser(t, db, "usr_1", nil, models.LevelSuperAdmin, true)
	svc := newTestService(db)

	cred, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	rotated, err := svc.Refresh(cred.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rotated.RefreshToken == cred.RefreshToken {
		t.Error("Expected rotation to mint a new refresh token")
	}

	// The old refresh value is dead after rotation.
	if _, err := svc.Refresh(cred.RefreshToken); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected second redemption to fail, got %v", err)
	}

	// The rotated one works.
	if _, err := svc.Refresh(rotated.RefreshToken); err != nil {
		t.Errorf("Expected rotated token to redeem, got %v", err)
	}

	// Rotation never leaves extra records behind.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM token_records WHERE user_id = 'usr_1'`).Scan(&count); err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 live token record after rotation, got %d", count)
	}
}

func TestTokenService_Revoke(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	user := seedUser(t, db, "usr_1", nil, models.LevelSuperAdmin, true)
	svc := newTestService(db)

	cred, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := svc.Revoke("usr_1"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if _, err := svc.Refresh(cred.RefreshToken); !errors.Is(err, pkgerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected refresh to fail after revoke, got %v", err)
	}
}
