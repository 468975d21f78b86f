package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"bp-tracker/internal/client/session"
	"bp-tracker/internal/common"
	"bp-tracker/internal/model"
)

type wsDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

var defaultDialer wsDialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 15 * time.Second,
}

// Subscribe streams record-change events to fn until ctx is cancelled or
// the connection drops. A rejected handshake gets the same single re-login
// as any other call.
func (c *Client) Subscribe(ctx context.Context, fn func(model.Event)) error {
	conn, err := c.dialUpdates(ctx, true)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var ev model.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return networkError(err)
		}
		if ev.Type == "update" {
			fn(ev)
		}
	}
}

func (c *Client) dialUpdates(ctx context.Context, allowReauth bool) (*websocket.Conn, error) {
	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess.FirstRun() {
		return nil, common.NewValidationError("baseURL", "server address is not configured")
	}

	header := http.Header{}
	if sess.AuthToken != "" {
		header.Set("Authorization", "Bearer "+sess.AuthToken)
	}
	conn, resp, err := c.dialer.DialContext(ctx, websocketURL(sess.BaseURL)+"/api/updates", header)
	if err == nil {
		return conn, nil
	}
	if resp == nil || !errors.Is(err, websocket.ErrBadHandshake) {
		return nil, networkError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		return nil, responseError(resp)
	}

	if !allowReauth || sess.AuthCode == "" {
		reset := session.ClearToken
		if !allowReauth {
			reset = session.ClearCredentials
		}
		if _, uerr := c.sessions.Update(ctx, reset); uerr != nil {
			c.log.Warn(ctx, "clear session failed", "err", uerr)
		}
		return nil, responseError(resp)
	}

	token, err := c.authenticate(ctx, sess.AuthCode)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			if _, uerr := c.sessions.Update(ctx, session.ClearCredentials); uerr != nil {
				c.log.Warn(ctx, "clear session failed", "err", uerr)
			}
		}
		return nil, err
	}
	if _, err := c.sessions.Update(ctx, func(s *session.Session) { s.AuthToken = token }); err != nil {
		return nil, err
	}
	return c.dialUpdates(ctx, false)
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
