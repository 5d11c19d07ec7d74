package models

// Hierarchy levels. Lower value means more privilege; level 1 is the single
// global super admin and is never tenant-scoped.
const (
	LevelSuperAdmin  = 1
	LevelTenantAdmin = 2
	LevelMember      = 7
)

type Tenant struct {
	ID          string            `json:"id"`
	CompanyName string            `json:"company_name"`
	Domain      string            `json:"domain"`
	Active      bool              `json:"active"`
	Config      map[string]string `json:"config"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
}

type User struct {
	ID           string  `json:"id"`
	TenantID     *string `json:"tenant_id,omitempty"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	Hierarchy    int     `json:"hierarchy"`
	RoleLabel    string  `json:"role_label,omitempty"`
	Active       bool    `json:"active"`
	LastLoginAt  *int64  `json:"last_login_at,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`

	Tenant *Tenant `json:"tenant,omitempty"`
}

// IsSuperAdmin reports whether the user holds the global scope. Level 1 users
// have no tenant by invariant.
func (u *User) IsSuperAdmin() bool {
	return u.Hierarchy == LevelSuperAdmin
}

type Group struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TokenRecord is the server-side row backing an issued credential pair. The
// refresh value is stored hashed; redeeming it replaces the row.
type TokenRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	RefreshHash string `json:"-"`
	ExpiresAt   int64  `json:"expires_at"`
	CreatedAt   int64  `json:"created_at"`
}

type MailboxMessage struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Read       bool   `json:"read"`
	ReceivedAt int64  `json:"received_at"`
}
