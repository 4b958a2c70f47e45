package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

type Memory struct {
	mu sync.RWMutex

	sessions  map[string]models.Session
	messages  map[string][]models.ChatMessage
	operators map[string]models.Operator

	nextMessageID  uint
	nextOperatorID uint

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]models.Session),
		messages:  make(map[string][]models.ChatMessage),
		operators: make(map[string]models.Operator),
		now:       time.Now,
	}
}

func (m *Memory) Session(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || (!s.ExpiresAt.IsZero() && s.ExpiresAt.Before(m.now())) {
		return nil, ErrNotFound
	}
	s.LastResults = slices.Clone(s.LastResults)
	return &s, nil
}

func (m *Memory) SaveSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	cp := *s
	cp.LastResults = slices.Clone(s.LastResults)
	m.sessions[s.ID] = cp
	return nil
}

func (m *Memory) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			delete(m.messages, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) AppendMessages(_ context.Context, sessionID string, msgs ...models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		m.nextMessageID++
		msg.ID = m.nextMessageID
		msg.SessionID = sessionID
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = m.now()
		}
		m.messages[sessionID] = append(m.messages[sessionID], msg)
	}
	return nil
}

func (m *Memory) Messages(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.messages[sessionID]), nil
}

func (m *Memory) Operator(_ context.Context, email string) (*models.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, ok := m.operators[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &op, nil
}

func (m *Memory) SaveOperator(_ context.Context, op *models.Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if op.ID == 0 {
		m.nextOperatorID++
		op.ID = m.nextOperatorID
		op.CreatedAt = m.now()
	}
	op.UpdatedAt = m.now()
	m.operators[strings.ToLower(op.Email)] = *op
	return nil
}

func (m *Memory) CountOperators(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.operators)), nil
}
