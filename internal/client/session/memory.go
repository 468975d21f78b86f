package session

import (
	"context"
	"sync"
)

type Memory struct {
	mu   sync.Mutex
	sess Session
}

func NewMemory(initial Session) *Memory {
	return &Memory{sess: initial}
}

func (m *Memory) Load(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *Memory) Update(_ context.Context, fn func(*Session)) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.sess)
	return m.sess, nil
}

func (m *Memory) Close() error { return nil }
