// Package dbmigrate runs embedded goose migrations. goose keeps its base FS
// and dialect in package globals, so every caller in the process goes
// through Up.
package dbmigrate

import (
	"context"
	"database/sql"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

var mu sync.Mutex

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies the migrations found under dir in fsys.
func Up(ctx context.Context, db *sql.DB, fsys fs.FS, dialect, dir string) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, dir)
}
