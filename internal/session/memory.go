package session

import (
	"context"
	"sync"
	"time"

	"aura-bot/internal/apperrors"
)

type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{sessions: make(map[string]Session), ttl: ttl, now: time.Now}
}

func (m *Memory) Create(_ context.Context, username string) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	now := m.now()
	s := Session{Token: token, Username: username, CreatedAt: now, ExpiresAt: now.Add(m.ttl)}

	m.mu.Lock()
	m.sessions[token] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Memory) Validate(_ context.Context, token string) (Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok || !m.now().Before(s.ExpiresAt) {
		return Session{}, apperrors.ErrInvalidSession
	}
	return s, nil
}

func (m *Memory) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Sweep(context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}
