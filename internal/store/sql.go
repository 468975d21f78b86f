package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bp-tracker/internal/common"
	"bp-tracker/internal/logging"
	"bp-tracker/internal/model"
	"bp-tracker/internal/query"
)

type dialect struct {
	name        string
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name:        DriverSQLite,
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:        DriverPostgres,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// SQLStore is the database/sql backend shared by SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
	log     logging.Logger
}

func newSQLStore(db *sql.DB, d dialect, opts Options) *SQLStore {
	opts = opts.withDefaults()
	return &SQLStore{db: db, dialect: d, now: opts.Now, log: opts.Logger.With("store", d.name)}
}

// where renders the filter predicate. Date bounds compare as strings, which
// holds because stored dates and bounds share model.DateLayout.
func (s *SQLStore) where(f query.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, s.dialect.placeholder(len(args))))
	}
	if f.Start != "" {
		add("date >= %s", f.Start)
	}
	if f.End != "" {
		add("date <= %s", f.End)
	}
	if f.Name != "" {
		add("name = %s", f.Name)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *SQLStore) List(ctx context.Context, q query.List) ([]model.Record, int64, error) {
	where, args := s.where(q.Filter)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	n := len(args)
	stmt := "SELECT id, date, systolic, diastolic, pulse, name FROM records" + where +
		fmt.Sprintf(" ORDER BY date DESC, id DESC LIMIT %s OFFSET %s", s.dialect.placeholder(n+1), s.dialect.placeholder(n+2))
	rows, err := s.db.QueryContext(ctx, stmt, append(args, q.Page.Size, q.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	result := make([]model.Record, 0, q.Page.Size)
	for rows.Next() {
		var (
			r     model.Record
			pulse sql.NullInt64
			name  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Date, &r.Systolic, &r.Diastolic, &pulse, &name); err != nil {
			return nil, 0, fmt.Errorf("failed to scan record row: %w", err)
		}
		if pulse.Valid {
			p := int(pulse.Int64)
			r.Pulse = &p
		}
		r.Name = name.String
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate record rows: %w", err)
	}
	return result, total, nil
}

func (s *SQLStore) Create(ctx context.Context, in model.RecordInput) (model.Record, error) {
	if err := in.Validate(); err != nil {
		return model.Record{}, err
	}
	r := model.Record{
		Date:      model.FormatDate(s.now()),
		Systolic:  *in.Systolic,
		Diastolic: *in.Diastolic,
		Name:      *in.Name,
	}
	var pulse any
	if in.Pulse != nil {
		p := *in.Pulse
		r.Pulse = &p
		pulse = p
	}

	ph := s.dialect.placeholder
	stmt := fmt.Sprintf("INSERT INTO records (date, systolic, diastolic, pulse, name) VALUES (%s, %s, %s, %s, %s) RETURNING id",
		ph(1), ph(2), ph(3), ph(4), ph(5))
	if err := s.db.QueryRowContext(ctx, stmt, r.Date, r.Systolic, r.Diastolic, pulse, r.Name).Scan(&r.ID); err != nil {
		return model.Record{}, fmt.Errorf("failed to insert record: %w", err)
	}
	return r, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = "+s.dialect.placeholder(1), id)
	if err != nil {
		return fmt.Errorf("failed to delete record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT name FROM records WHERE name IS NOT NULL AND name <> '' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to select names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate name rows: %w", err)
	}
	return names, nil
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}
