package repositories

import (
	"database/sql"

	"mailpanel/internal/platform/models"
)

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Insert(record *models.TokenRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO token_records (id, user_id, refresh_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.UserID, record.RefreshHash, record.ExpiresAt, record.CreatedAt)
	return err
}

func (r *TokenRepository) GetByRefreshHash(hash string) (*models.TokenRecord, error) {
	record := &models.TokenRecord{}
	err := r.db.QueryRow(`
		SELECT id, user_id, refresh_hash, expires_at, created_at
		FROM token_records WHERE refresh_hash = ?
	`, hash).Scan(&record.ID, &record.UserID, &record.RefreshHash, &record.ExpiresAt, &record.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// Replace swaps the old record for the new one in a single transaction.
// Two concurrent rotations of the same refresh token race on the delete;
// the loser sees zero rows affected and reports sql.ErrNoRows so the caller
// can fail the redemption instead of double-issuing.
func (r *TokenRepository) Replace(oldID string, record *models.TokenRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM token_records WHERE id = ?`, oldID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	_, err = tx.Exec(`
		INSERT INTO token_records (id, user_id, refresh_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.UserID, record.RefreshHash, record.ExpiresAt, record.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *TokenRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM token_records WHERE id = ?`, id)
	return err
}

func (r *TokenRepository) DeleteByUser(userID string) error {
	_, err := r.db.Exec(`DELETE FROM token_records WHERE user_id = ?`, userID)
	return err
}

func (r *TokenRepository) DeleteExpired(now int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM token_records WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
