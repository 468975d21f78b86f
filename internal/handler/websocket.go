package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bp-tracker/internal/hub"
	"bp-tracker/internal/logging"
	"bp-tracker/internal/middleware"
	"bp-tracker/internal/model"
)

// UpdatesHandler streams record-change events. Authentication happens in
// middleware before the upgrade.
type UpdatesHandler struct {
	Hub *hub.Hub
	Log logging.Logger
}

type clientMessage struct {
	Type string `json:"type"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pongWait  = 60 * time.Second
	writeWait = 10 * time.Second
)

// wsWriter serializes writes; gorilla allows one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *UpdatesHandler) Serve(c *gin.Context) {
	sessionID, ok := middleware.SessionIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn(c.Request.Context(), "websocket upgrade failed", "err", err)
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{Writer: writer}
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()
	h.Log.Debug(c.Request.Context(), "update subscriber connected", "session_id", sessionID)

	if out, err := json.Marshal(model.Event{Type: "connected"}); err == nil {
		_ = writer.Write(out)
	}

	ws.SetReadLimit(64 * 1024)
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == "ping" {
			out, _ := json.Marshal(model.Event{Type: "pong"})
			_ = writer.Write(out)
		}
	}
}
