package store

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bp-tracker/internal/common"
	"bp-tracker/internal/query"
)

func newMockPostgres(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	now := time.Date(2024, 5, 6, 7, 8, 9, 10_000_000, time.UTC)
	return NewPostgres(db, Options{Now: func() time.Time { return now }}), mock
}

func TestPostgres_ListUsesNumberedPlaceholders(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM records WHERE date >= $1 AND name = $2")).
		WithArgs("2024-01-01T00:00:00.000Z", "Alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, date, systolic, diastolic, pulse, name FROM records WHERE date >= $1 AND name = $2 ORDER BY date DESC, id DESC LIMIT $3 OFFSET $4")).
		WithArgs("2024-01-01T00:00:00.000Z", "Alice", 20, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "date", "systolic", "diastolic", "pulse", "name"}).
			AddRow(3, "2024-01-02T00:00:00.000Z", 120, 80, nil, "Alice"))

	records, total, err := s.List(context.Background(), query.List{
		Filter: query.Filter{Start: "2024-01-01T00:00:00.000Z", Name: "Alice"},
		Page:   query.NewPage(2, 20),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 21, total)
	require.Len(t, records, 1)
	assert.EqualValues(t, 3, records[0].ID)
	assert.Nil(t, records[0].Pulse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListHugePageSendsSaturatedOffset(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM records")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, date, systolic, diastolic, pulse, name FROM records ORDER BY date DESC, id DESC LIMIT $1 OFFSET $2")).
		WithArgs(query.MaxPageSize, math.MaxInt).
		WillReturnRows(sqlmock.NewRows([]string{"id", "date", "systolic", "diastolic", "pulse", "name"}))

	records, total, err := s.List(context.Background(), query.List{Page: query.NewPage(math.MaxInt, query.MaxPageSize)})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListCountError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM records")).
		WillReturnError(errors.New("connection reset"))

	_, _, err := s.List(context.Background(), query.List{Page: query.NewPage(1, 20)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateStampsDate(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO records (date, systolic, diastolic, pulse, name) VALUES ($1, $2, $3, $4, $5) RETURNING id")).
		WithArgs("2024-05-06T07:08:09.010Z", 120, 80, 66, "Bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	r, err := s.Create(context.Background(), input(120, 80, intPtr(66), "Bob"))
	require.NoError(t, err)
	assert.EqualValues(t, 42, r.ID)
	assert.Equal(t, "2024-05-06T07:08:09.010Z", r.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateInvalidSkipsDatabase(t *testing.T) {
	s, mock := newMockPostgres(t)
	_, err := s.Create(context.Background(), input(120, 0, nil, "Bob"))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteMissing(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM records WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM records WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.ErrorIs(t, s.Delete(context.Background(), 7), common.ErrNotFound)
	assert.NoError(t, s.Delete(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Names(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT name FROM records")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice").AddRow("Bob"))

	names, err := s.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}
