package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bp-tracker/internal/auth"
	"bp-tracker/internal/client"
	"bp-tracker/internal/client/session"
	"bp-tracker/internal/common"
	"bp-tracker/internal/server"
	"bp-tracker/internal/store"
)

type testApp struct {
	*App
	out *bytes.Buffer
	srv *httptest.Server
}

func newTestApp(t *testing.T, stdin string) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verifier, err := auth.NewCodeVerifier("1234", "")
	require.NoError(t, err)
	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Store:       store.NewMemory(store.Options{}),
		TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
		Verifier:    verifier,
	}))
	t.Cleanup(srv.Close)

	out := &bytes.Buffer{}
	return &testApp{
		App: &App{
			Client: client.New(session.NewMemory(session.Session{})),
			In:     bufio.NewReader(strings.NewReader(stdin)),
			Out:    out,
			Err:    &bytes.Buffer{},
			// The server stamps UTC, so the default window is taken in UTC too.
			Now:    func() time.Time { return time.Now().UTC() },
		},
		out: out,
		srv: srv,
	}
}

func (a *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	a.out.Reset()
	return a.Run(context.Background(), args)
}

func TestRun_RequiresSetupFirst(t *testing.T) {
	a := newTestApp(t, "")

	err := a.run(t, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bp setup")

	assert.Error(t, a.run(t))
}

func TestRun_SetupFromPrompt(t *testing.T) {
	a := newTestApp(t, "")
	a.In = bufio.NewReader(strings.NewReader(a.srv.URL + "/\n"))

	require.NoError(t, a.run(t, "setup"))
	assert.Contains(t, a.out.String(), a.srv.URL)

	sess, err := a.Client.Sessions().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a.srv.URL, sess.BaseURL)
}

func TestRun_FullSession(t *testing.T) {
	a := newTestApp(t, "")
	require.NoError(t, a.run(t, "setup", a.srv.URL))

	err := a.run(t, "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bp login")

	require.Error(t, a.run(t, "login", "-code", "nope"))
	require.NoError(t, a.run(t, "login", "-code", "1234"))

	require.NoError(t, a.run(t, "add", "-sys", "120", "-dia", "80", "-pulse", "70", "-name", "Alice"))
	assert.Contains(t, a.out.String(), "saved record 1")
	require.NoError(t, a.run(t, "add", "-sys", "130", "-dia", "85", "-name", "Bob"))

	require.NoError(t, a.run(t, "users"))
	assert.Equal(t, "Alice\nBob\n", a.out.String())

	// Default listing narrows to the first known name.
	require.NoError(t, a.run(t, "list"))
	assert.Contains(t, a.out.String(), "120/80")
	assert.NotContains(t, a.out.String(), "130/85")
	assert.Contains(t, a.out.String(), "showing 1 of 1")

	require.NoError(t, a.run(t, "list", "-name", "Bob"))
	assert.Contains(t, a.out.String(), "130/85")

	require.NoError(t, a.run(t, "delete", "1"))
	err = a.run(t, "delete", "1")
	require.Error(t, err)
	assert.Equal(t, "record not found", err.Error())

	require.NoError(t, a.run(t, "logout"))
	require.NoError(t, a.run(t, "status"))
	assert.Contains(t, a.out.String(), "logged in: false")
}

func TestRun_ListAllPages(t *testing.T) {
	a := newTestApp(t, "")
	require.NoError(t, a.run(t, "setup", a.srv.URL))
	require.NoError(t, a.run(t, "login", "-code", "1234"))
	for i := 0; i < 5; i++ {
		require.NoError(t, a.run(t, "add", "-sys", "120", "-dia", "80", "-name", "Alice"))
	}

	require.NoError(t, a.run(t, "list", "-size", "2"))
	assert.Contains(t, a.out.String(), "showing 2 of 5 (page 1/3)")

	require.NoError(t, a.run(t, "list", "-size", "2", "-all"))
	assert.Contains(t, a.out.String(), "showing 5 of 5 (page 3/3)")
}

func TestRun_AddValidatesLocally(t *testing.T) {
	a := newTestApp(t, "")
	require.NoError(t, a.run(t, "setup", a.srv.URL))
	require.NoError(t, a.run(t, "login", "-code", "1234"))

	err := a.run(t, "add", "-sys", "120", "-name", "Alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")

	assert.Error(t, a.run(t, "delete", "abc"))
	assert.Error(t, a.run(t, "bogus"))
}

func TestRun_LoginPromptsWithoutEcho(t *testing.T) {
	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("1234\n"), nil }

	a := newTestApp(t, "")
	require.NoError(t, a.run(t, "setup", a.srv.URL))
	require.NoError(t, a.run(t, "login"))
	assert.Contains(t, a.out.String(), "Access code: ")
	assert.Contains(t, a.out.String(), "logged in")
}

func TestRun_LoginPromptFallsBackToLine(t *testing.T) {
	origTerm := isTerminal
	t.Cleanup(func() { isTerminal = origTerm })
	isTerminal = func(int) bool { return false }

	a := newTestApp(t, "1234\n")
	require.NoError(t, a.run(t, "setup", a.srv.URL))
	require.NoError(t, a.run(t, "login"))
}

func TestDescribe(t *testing.T) {
	assert.NoError(t, describe(nil))
	assert.Equal(t, "record not found", describe(common.ErrNotFound).Error())
	assert.Contains(t, describe(common.ErrRateLimited).Error(), "too many")
	assert.Contains(t, describe(common.NewValidationError("name", "is required")).Error(), "name: is required")
	assert.Contains(t, describe(common.ErrServer).Error(), "server failed")

	other := errors.New("boom")
	assert.Equal(t, other, describe(other))
}
