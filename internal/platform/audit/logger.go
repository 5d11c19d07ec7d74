package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ActionLogin         = "auth.login"
	ActionLoginFailed   = "auth.login_failed"
	ActionTokenRefresh  = "auth.token_refresh"
	ActionTenantCreate  = "tenant.create"
	ActionTenantDisable = "tenant.disable"
	ActionUserCreate    = "user.create"
	ActionUserDisable   = "user.disable"
)

type Entry struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Action    string                 `json:"action"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt int64                  `json:"created_at"`
}

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Record writes an audit row off the request path. Audit failures are logged
// and dropped; they never fail the operation being audited.
func (l *Logger) Record(tenantID, userID, action string, metadata map[string]interface{}) {
	entry := &Entry{
		ID:        "audit_" + uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: time.Now().Unix(),
	}

	go func() {
		metaJSON, _ := json.Marshal(entry.Metadata)
		_, err := l.db.Exec(`
			INSERT INTO audit_logs (id, tenant_id, user_id, action, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.TenantID, entry.UserID, entry.Action, string(metaJSON), entry.CreatedAt)
		if err != nil {
			log.Error().Err(err).Str("action", entry.Action).Msg("audit write failed")
		}
	}()
}
