package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"mailpanel/internal/platform/config"
)

// Open connects to the panel database. All components share this single
// store; every logical operation runs as its own short-lived transaction.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
