package hub

import (
	"encoding/json"
	"sync"
	"testing"

	"bp-tracker/internal/model"
)

type testWriter struct {
	mu     sync.Mutex
	writes [][]byte
	fail   bool
	closed bool
}

func (w *testWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, message)
	if w.fail {
		return errTest
	}
	return nil
}

func (w *testWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *testWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "test" }

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New()
	w1, w2 := &testWriter{}, &testWriter{}
	c1 := &Connection{Writer: w1}
	c2 := &Connection{Writer: w2}

	h.Register(c1)
	h.Register(c2)
	h.BroadcastAll([]byte("x"))
	if w1.count() != 1 || w2.count() != 1 {
		t.Fatalf("expected 1 write each, got %d and %d", w1.count(), w2.count())
	}

	h.Unregister(c1)
	h.BroadcastAll([]byte("x"))
	if w1.count() != 1 {
		t.Fatalf("expected no more writes to unregistered connection, got %d", w1.count())
	}
	if w2.count() != 2 {
		t.Fatalf("expected 2 writes to remaining connection, got %d", w2.count())
	}
	if h.Count() != 1 {
		t.Fatalf("expected 1 connection, got %d", h.Count())
	}

	h.Unregister(c1)
	h.Unregister(c2)
	if h.Count() != 0 {
		t.Fatalf("expected empty hub, got %d", h.Count())
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New()
	bad, good := &testWriter{fail: true}, &testWriter{}
	h.Register(&Connection{Writer: bad})
	h.Register(&Connection{Writer: good})

	h.BroadcastAll([]byte("x"))
	h.BroadcastAll([]byte("x"))
	if bad.count() != 1 {
		t.Fatalf("expected only 1 write before removal, got %d", bad.count())
	}
	if !bad.closed {
		t.Fatalf("expected failed writer closed")
	}
	if good.count() != 2 || good.closed {
		t.Fatalf("expected healthy writer untouched, got %d writes closed=%v", good.count(), good.closed)
	}
	if h.Count() != 1 {
		t.Fatalf("expected 1 connection left, got %d", h.Count())
	}
}

func TestHub_PublishReachesEverySession(t *testing.T) {
	h := New()
	a, b := &testWriter{}, &testWriter{}
	h.Register(&Connection{Writer: a})
	h.Register(&Connection{Writer: b})
	if h.Count() != 2 {
		t.Fatalf("expected 2 connections, got %d", h.Count())
	}

	if err := h.Publish(model.Event{Event: model.EventRecordDeleted, ID: 7}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for _, w := range []*testWriter{a, b} {
		if w.count() != 1 {
			t.Fatalf("expected 1 write, got %d", w.count())
		}
		var ev model.Event
		if err := json.Unmarshal(w.writes[0], &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != "update" || ev.Event != model.EventRecordDeleted || ev.ID != 7 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
}
