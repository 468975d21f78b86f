// Package store persists blood-pressure records. Every backend assigns ids
// in insert order, stamps the insert time as the record date, and answers
// filtered, paginated listings ordered newest first.
//
// A listing runs its count and its page fetch as two independent statements,
// so under concurrent writes the total and the returned page may briefly
// disagree. Each create and delete is atomic on its own.
package store

import (
	"context"
	"fmt"
	"time"

	"bp-tracker/internal/logging"
	"bp-tracker/internal/model"
	"bp-tracker/internal/query"
)

// Store is the record persistence contract.
type Store interface {
	// List returns the requested page of records matching the filter,
	// newest first, plus the number of records matching the filter.
	List(ctx context.Context, q query.List) ([]model.Record, int64, error)

	// Create validates the input and inserts a record dated now. Any date
	// carried by the input is ignored.
	Create(ctx context.Context, in model.RecordInput) (model.Record, error)

	// Delete removes a record, returning common.ErrNotFound when the id
	// does not exist.
	Delete(ctx context.Context, id int64) error

	// Names returns the distinct non-empty names present in the records.
	Names(ctx context.Context) ([]string, error)

	Close() error
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Options struct {
	Driver    string
	Path      string
	DSN       string
	StateFile string

	Logger logging.Logger
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Open builds the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	opts = opts.withDefaults()
	switch opts.Driver {
	case "", DriverSQLite:
		return OpenSQLite(ctx, opts.Path, opts)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DSN, opts)
	case DriverMemory:
		return NewMemory(opts), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}
