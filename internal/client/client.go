// Package client is the API client for the records service. Every record
// and user call goes through an explicit middleware chain: the stored
// bearer token is attached, and a 401 triggers one re-login with the stored
// access code followed by exactly one retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"bp-tracker/internal/client/session"
	"bp-tracker/internal/common"
	"bp-tracker/internal/logging"
	"bp-tracker/internal/model"
	"bp-tracker/internal/query"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	sessions session.Store
	http     Doer
	api      Doer
	log      logging.Logger
	dialer   wsDialer
}

type Option func(*Client)

// WithHTTPDoer replaces the transport under the middleware chain.
func WithHTTPDoer(d Doer) Option {
	return func(c *Client) { c.http = d }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(sessions session.Store, opts ...Option) *Client {
	c := &Client{
		sessions: sessions,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      logging.Nop(),
		dialer:   defaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = Chain(c.http,
		WithReauth(sessions, AuthenticatorFunc(c.authenticate), c.log),
		WithBearer(sessions),
	)
	return c
}

// Sessions exposes the backing session store.
func (c *Client) Sessions() session.Store {
	return c.sessions
}

// SetBaseURL normalizes and stores the server address.
func (c *Client) SetBaseURL(ctx context.Context, raw string) (string, error) {
	u, err := session.NormalizeBaseURL(raw)
	if err != nil {
		return "", common.NewValidationError("baseURL", err.Error())
	}
	_, err = c.sessions.Update(ctx, func(s *session.Session) {
		if s.BaseURL != u {
			// Credentials belong to a server.
			session.ClearCredentials(s)
		}
		s.BaseURL = u
	})
	return u, err
}

// Login exchanges code for a token and stores both. Nothing is stored when
// the server rejects the code.
func (c *Client) Login(ctx context.Context, code string) error {
	if code == "" {
		return common.NewValidationError("code", "is required")
	}
	token, err := c.authenticate(ctx, code)
	if err != nil {
		return err
	}
	_, err = c.sessions.Update(ctx, func(s *session.Session) {
		s.AuthCode = code
		s.AuthToken = token
	})
	return err
}

// Logout forgets the stored code and token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.sessions.Update(ctx, session.ClearCredentials)
	return err
}

func (c *Client) ListRecords(ctx context.Context, q query.List) (model.RecordPage, error) {
	var page model.RecordPage
	err := c.call(ctx, http.MethodGet, "/api/records?"+q.Values().Encode(), nil, &page)
	if page.Data == nil {
		page.Data = []model.Record{}
	}
	return page, err
}

func (c *Client) CreateRecord(ctx context.Context, rec model.NewRecord) (model.Record, error) {
	if err := rec.Input().Validate(); err != nil {
		return model.Record{}, err
	}
	var out model.Record
	err := c.call(ctx, http.MethodPost, "/api/records", rec, &out)
	return out, err
}

func (c *Client) DeleteRecord(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, "/api/records/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) Users(ctx context.Context) ([]string, error) {
	var users []string
	if err := c.call(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []string{}
	}
	return users, nil
}

func (c *Client) baseURL(ctx context.Context) (string, error) {
	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return "", err
	}
	if sess.FirstRun() {
		return "", common.NewValidationError("baseURL", "server address is not configured")
	}
	return sess.BaseURL, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	base, err := c.baseURL(ctx)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// call runs one request through the authenticated pipeline and decodes a
// 2xx body into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.api.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// authenticate posts the code to the login endpoint on the bare transport.
func (c *Client) authenticate(ctx context.Context, code string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/login", map[string]string{"code": code})
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	var body struct {
		Token string `json:"token"`
	}
	if err := decodeResponse(resp, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", &HTTPError{Status: resp.StatusCode, Message: "login response carried no token"}
	}
	return body.Token, nil
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classify keeps taxonomy errors and context errors as they are and marks
// everything else as a transport failure.
func classify(err error) error {
	switch {
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrNetwork),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrRateLimited),
		errors.Is(err, common.ErrServer),
		errors.Is(err, context.Canceled):
		return err
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		return err
	}
	return networkError(err)
}
