package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/glebarez/go-sqlite"

	"bp-tracker/internal/dbmigrate"
	"bp-tracker/internal/store/migrations"
)

// OpenSQLite opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLStore, error) {
	opts = opts.withDefaults()
	if path == "" {
		path = filepath.Join("data", "health.db")
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := upgradeLegacySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to upgrade schema: %w", err)
	}
	if err := dbmigrate.Up(ctx, db, migrations.SQLite, dbmigrate.DialectSQLite, "sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	s := newSQLStore(db, sqliteDialect, opts)
	s.log.Info(ctx, "record store ready", "path", path)
	return s, nil
}

// upgradeLegacySchema adds the name column to records tables created before
// readings carried a name.
func upgradeLegacySchema(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info(records)")
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	exists, hasName := false, false
	for rows.Next() {
		exists = true
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		// table_info columns: cid, name, type, notnull, dflt_value, pk
		var col string
		switch v := vals[1].(type) {
		case string:
			col = v
		case []byte:
			col = string(v)
		}
		if strings.EqualFold(col, "name") {
			hasName = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	if !exists || hasName {
		return nil
	}
	_, err = db.ExecContext(ctx, "ALTER TABLE records ADD COLUMN name TEXT")
	return err
}
