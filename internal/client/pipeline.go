package client

import (
	"context"
	"errors"
	"io"
	"net/http"

	"golang.org/x/sync/singleflight"

	"bp-tracker/internal/client/session"
	"bp-tracker/internal/common"
	"bp-tracker/internal/logging"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Middleware decorates a Doer.
type Middleware func(Doer) Doer

// Chain wraps base so that the first middleware is outermost.
func Chain(base Doer, mws ...Middleware) Doer {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// WithBearer sets the Authorization header from the stored token on every
// request. The caller's request is not modified.
func WithBearer(sessions session.Store) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			sess, err := sessions.Load(req.Context())
			if err != nil {
				return nil, err
			}
			out := req.Clone(req.Context())
			if sess.AuthToken != "" {
				out.Header.Set("Authorization", "Bearer "+sess.AuthToken)
			} else {
				out.Header.Del("Authorization")
			}
			return next.Do(out)
		})
	}
}

// Authenticator exchanges the access code for a token without going
// through the reauth middleware.
type Authenticator interface {
	Authenticate(ctx context.Context, code string) (string, error)
}

type AuthenticatorFunc func(ctx context.Context, code string) (string, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, code string) (string, error) {
	return f(ctx, code)
}

// WithReauth retries a request once after a 401 by logging in again with
// the stored access code. It must wrap WithBearer so the retry picks up the
// new token.
//
// Outcomes of a 401:
//   - no stored code: the token is cleared and the 401 is returned.
//   - re-login rejected: code and token are cleared, ErrUnauthorized.
//   - re-login transport failure: the session is left alone, ErrNetwork.
//   - retry answered 401 again: code and token are cleared and that 401 is
//     returned. There is never a second retry.
//
// Concurrent 401s share a single re-login.
func WithReauth(sessions session.Store, authn Authenticator, log logging.Logger) Middleware {
	if log == nil {
		log = logging.Nop()
	}
	r := &reauth{sessions: sessions, authn: authn, log: log}
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			return r.do(next, req)
		})
	}
}

type reauth struct {
	sessions session.Store
	authn    Authenticator
	log      logging.Logger
	group    singleflight.Group
}

func (r *reauth) do(next Doer, req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	before, err := r.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := next.Do(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if before.AuthCode == "" {
		r.log.Info(ctx, "token rejected and no access code stored")
		if _, err := r.sessions.Update(ctx, session.ClearToken); err != nil {
			r.log.Warn(ctx, "clear token failed", "err", err)
		}
		return resp, nil
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// The body is gone; the caller has to resend.
		return resp, nil
	}
	drain(resp)

	if err := r.refresh(ctx, before.AuthToken); err != nil {
		return nil, err
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	resp, err = next.Do(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		r.log.Warn(ctx, "retry after re-login still unauthorized, clearing session")
		if _, err := r.sessions.Update(ctx, session.ClearCredentials); err != nil {
			r.log.Warn(ctx, "clear session failed", "err", err)
		}
	}
	return resp, nil
}

// refresh logs in again unless another request already replaced the token
// that was rejected.
func (r *reauth) refresh(ctx context.Context, rejected string) error {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		sess, err := r.sessions.Load(ctx)
		if err != nil {
			return nil, err
		}
		if sess.AuthToken != "" && sess.AuthToken != rejected {
			return nil, nil
		}
		if sess.AuthCode == "" {
			return nil, common.ErrUnauthorized
		}

		r.log.Info(ctx, "token rejected, logging in again")
		token, err := r.authn.Authenticate(ctx, sess.AuthCode)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrUnauthorized):
			r.log.Warn(ctx, "stored access code rejected, clearing session")
			if _, uerr := r.sessions.Update(ctx, session.ClearCredentials); uerr != nil {
				r.log.Warn(ctx, "clear session failed", "err", uerr)
			}
			return nil, err
		default:
			r.log.Warn(ctx, "re-login failed", "err", err)
			return nil, err
		}

		_, err = r.sessions.Update(ctx, func(s *session.Session) { s.AuthToken = token })
		return nil, err
	})
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
