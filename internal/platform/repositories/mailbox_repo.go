package repositories

import (
	"database/sql"

	"mailpanel/internal/platform/models"
)

type MailboxRepository struct {
	db *sql.DB
}

func NewMailboxRepository(db *sql.DB) *MailboxRepository {
	return &MailboxRepository{db: db}
}

func (r *MailboxRepository) Insert(msg *models.MailboxMessage) error {
	_, err := r.db.Exec(`
		INSERT INTO mailbox_messages (id, tenant_id, sender, recipient, subject, body, read, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.TenantID, msg.Sender, msg.Recipient, msg.Subject, msg.Body, msg.Read, msg.ReceivedAt)
	return err
}

func (r *MailboxRepository) GetByID(id string) (*models.MailboxMessage, error) {
	msg := &models.MailboxMessage{}
	err := r.db.QueryRow(`
		SELECT id, tenant_id, sender, recipient, subject, body, read, received_at
		FROM mailbox_messages WHERE id = ?
	`, id).Scan(&msg.ID, &msg.TenantID, &msg.Sender, &msg.Recipient, &msg.Subject, &msg.Body, &msg.Read, &msg.ReceivedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

func (r *MailboxRepository) ListForRecipient(recipient string, limit int) ([]*models.MailboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, tenant_id, sender, recipient, subject, body, read, received_at
		FROM mailbox_messages WHERE recipient = ?
		ORDER BY received_at DESC LIMIT ?
	`, recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.MailboxMessage
	for rows.Next() {
		msg := &models.MailboxMessage{}
		if err := rows.Scan(&msg.ID, &msg.TenantID, &msg.Sender, &msg.Recipient, &msg.Subject, &msg.Body, &msg.Read, &msg.ReceivedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// ListForSender backs the sent view: everything the address dispatched,
// whether it was delivered locally or archived after relaying.
func (r *MailboxRepository) ListForSender(sender string, limit int) ([]*models.MailboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, tenant_id, sender, recipient, subject, body, read, received_at
		FROM mailbox_messages WHERE sender = ?
		ORDER BY received_at DESC LIMIT ?
	`, sender, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.MailboxMessage
	for rows.Next() {
		msg := &models.MailboxMessage{}
		if err := rows.Scan(&msg.ID, &msg.TenantID, &msg.Sender, &msg.Recipient, &msg.Subject, &msg.Body, &msg.Read, &msg.ReceivedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *MailboxRepository) MarkRead(id string) error {
	_, err := r.db.Exec(`UPDATE mailbox_messages SET read = 1 WHERE id = ?`, id)
	return err
}

// CountForTenant backs the domain-rename guard: once mail has been delivered
// against a tenant its domain name stays immutable.
func (r *MailboxRepository) CountForTenant(tenantID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM mailbox_messages WHERE tenant_id = ?`, tenantID).Scan(&n)
	return n, err
}
