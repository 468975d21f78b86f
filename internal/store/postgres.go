package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bp-tracker/internal/dbmigrate"
	"bp-tracker/internal/store/migrations"
)

// NewPostgres wraps an already-migrated PostgreSQL connection.
func NewPostgres(db *sql.DB, opts Options) *SQLStore {
	return newSQLStore(db, postgresDialect, opts)
}

// OpenPostgres connects through pgx and applies the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string, opts Options) (*SQLStore, error) {
	opts = opts.withDefaults()
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := dbmigrate.Up(ctx, db, migrations.Postgres, dbmigrate.DialectPostgres, "postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	s := NewPostgres(db, opts)
	s.log.Info(ctx, "record store ready")
	return s, nil
}
