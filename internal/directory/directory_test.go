package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	names []string
	err   error
	calls int
}

func (f *fakeSource) Names(context.Context) ([]string, error) {
	f.calls++
	return f.names, f.err
}

func TestUsers_StaticListWins(t *testing.T) {
	src := &fakeSource{names: []string{"Zed"}}
	d := New([]string{" Bob", "Alice", "", "Bob"}, src)

	got, err := d.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Alice"}, got)
	assert.Zero(t, src.calls)

	got[0] = "mutated"
	again, _ := d.Users(context.Background())
	assert.Equal(t, "Bob", again[0])
}

func TestUsers_FallsBackToStore(t *testing.T) {
	src := &fakeSource{names: []string{"Carol", "Alice", "Carol"}}
	got, err := New(nil, src).Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, got)
}

func TestUsers_StoreError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	_, err := New(nil, src).Users(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestUsers_NoSource(t *testing.T) {
	got, err := New(nil, nil).Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
