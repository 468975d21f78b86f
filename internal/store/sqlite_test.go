package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bp-tracker/internal/query"
)

func TestOpenSQLite_UpgradesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		systolic INTEGER NOT NULL,
		diastolic INTEGER NOT NULL,
		pulse INTEGER
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO records (date, systolic, diastolic, pulse) VALUES ('2023-12-01T10:00:00.000Z', 118, 76, 60)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	clock := newFakeClock("2024-01-15T08:00:00Z")
	s, err := OpenSQLite(context.Background(), path, Options{Now: clock.Now})
	require.NoError(t, err)
	defer s.Close()

	records, total, err := s.List(context.Background(), query.List{Page: query.NewPage(1, 20)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].Name)
	assert.Equal(t, 118, records[0].Systolic)

	created, err := s.Create(context.Background(), input(120, 80, nil, "Alice"))
	require.NoError(t, err)
	assert.Greater(t, created.ID, records[0].ID)
}

func TestOpenSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.db")
	clock := newFakeClock("2024-01-15T08:00:00Z")

	s1, err := OpenSQLite(context.Background(), path, Options{Now: clock.Now})
	require.NoError(t, err)
	r, err := s1.Create(context.Background(), input(120, 80, nil, "Alice"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(context.Background(), path, Options{Now: clock.Now})
	require.NoError(t, err)
	defer s2.Close()
	records, _, err := s2.List(context.Background(), query.List{Page: query.NewPage(1, 20)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, r, records[0])
}
