// Package session persists what the client remembers between runs: the
// server base URL, the shared access code and the current bearer token.
package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	KeyBaseURL   = "base_url"
	KeyAuthCode  = "auth_code"
	KeyAuthToken = "auth_token"
)

type Session struct {
	BaseURL   string
	AuthCode  string
	AuthToken string
}

// FirstRun reports whether the client has never been pointed at a server.
func (s Session) FirstRun() bool {
	return s.BaseURL == ""
}

func (s Session) Authenticated() bool {
	return s.AuthToken != ""
}

// Store holds one Session. Update applies fn atomically so the request
// pipeline and the CLI never interleave partial writes.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Update(ctx context.Context, fn func(*Session)) (Session, error)
	Close() error
}

// ClearToken forgets the token but keeps the code for the next refresh.
func ClearToken(s *Session) {
	s.AuthToken = ""
}

// ClearCredentials forgets both code and token; the user has to log in
// again.
func ClearCredentials(s *Session) {
	s.AuthCode = ""
	s.AuthToken = ""
}

// NormalizeBaseURL validates raw as an http(s) URL and strips trailing
// slashes so paths can be appended directly.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("base URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL has no host")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

func (s Session) toMap() map[string]string {
	return map[string]string{
		KeyBaseURL:   s.BaseURL,
		KeyAuthCode:  s.AuthCode,
		KeyAuthToken: s.AuthToken,
	}
}

func fromMap(m map[string]string) Session {
	return Session{
		BaseURL:   m[KeyBaseURL],
		AuthCode:  m[KeyAuthCode],
		AuthToken: m[KeyAuthToken],
	}
}
