package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"

	"bp-tracker/internal/client/session/migrations"
	"bp-tracker/internal/dbmigrate"
)

// SQLite keeps the session as rows of a key/value settings table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the session database at path, creating it and its
// directory when missing.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := dbmigrate.Up(ctx, db, migrations.Migrations, dbmigrate.DialectSQLite, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}
	if path != ":memory:" {
		// The file holds the access code.
		_ = os.Chmod(path, 0o600)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (Session, error) {
	m, err := list(ctx, s.db)
	if err != nil {
		return Session{}, err
	}
	return fromMap(m), nil
}

func (s *SQLite) Update(ctx context.Context, fn func(*Session)) (Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("failed to begin session update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := list(ctx, tx)
	if err != nil {
		return Session{}, err
	}
	before := fromMap(m)
	after := before
	fn(&after)

	old := before.toMap()
	for key, value := range after.toMap() {
		if old[key] == value {
			continue
		}
		if value == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
				return Session{}, fmt.Errorf("failed to delete setting[%s]: %w", key, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return Session{}, fmt.Errorf("failed to set setting[%s]: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("failed to commit session update: %w", err)
	}
	return after, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func list(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate setting rows: %w", err)
	}
	return result, nil
}
