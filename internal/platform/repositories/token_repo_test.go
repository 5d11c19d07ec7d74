package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"mailpanel/internal/platform/models"
)

func TestTokenRepository_Replace(t *testing.T) {
	record := &models.TokenRecord{
		ID:          "tok_new",
		UserID:      "usr_1",
		RefreshHash: "hash_new",
		ExpiresAt:   2000,
		CreatedAt:   1000,
	}

	t.Run("Swaps records in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
		}
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM token_records WHERE id = ?").
			WithArgs("tok_old").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO token_records").
			WithArgs("tok_new", "usr_1", "hash_new", int64(2000), int64(1000)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewTokenRepository(db)
		if err := repo.Replace("tok_old", record); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
	})

	t.Run("Losing a rotation race reports ErrNoRows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
		}
		defer db.Close()

		// The winner already deleted the row, so the loser's delete hits nothing
		// and no insert may happen.
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM token_records WHERE id = ?").
			WithArgs("tok_old").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		repo := NewTokenRepository(db)
		if err := repo.Replace("tok_old", record); !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("Expected sql.ErrNoRows, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
	})
}

func TestTokenRepository_GetByRefreshHash_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM token_records WHERE refresh_hash = ?").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewTokenRepository(db)
	record, err := repo.GetByRefreshHash("missing")
	if err != nil {
		t.Fatalf("Expected nil error for missing record, got %v", err)
	}
	if record != nil {
		t.Errorf("Expected nil record, got %+v", record)
	}
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM token_records WHERE expires_at <= ?").
		WithArgs(int64(5000)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewTokenRepository(db)
	purged, err := repo.DeleteExpired(5000)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if purged != 3 {
		t.Errorf("Expected 3 purged records, got %d", purged)
	}
}
