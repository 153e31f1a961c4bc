package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"subtrack-bot/internal/domain"
)

// Manager owns the live sessions. Sessions are addressable by ID and, for
// channels with a stable sender identity, by (channel, user).
type Manager struct {
	responder Responder
	source    SnapshotSource
	opts      Options

	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]string
}

func NewManager(responder Responder, source SnapshotSource, opts Options) *Manager {
	return &Manager{
		responder: responder,
		source:    source,
		opts:      opts.withDefaults(),
		sessions:  make(map[string]*Session),
		byUser:    make(map[string]string),
	}
}

// Create starts a new session for userID on channel.
func (m *Manager) Create(channel, userID string) *Session {
	s := newSession(uuid.NewString(), channel, userID, m.responder, m.source, m.opts)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.byUser[userKey(channel, userID)] = s.id
	m.mu.Unlock()
	m.opts.Logger.Debug("session created", "component", "chat", "session_id", s.id, "channel", channel, "user_id", userID)
	return s
}

// Resolve returns the live session for (channel, userID), creating one if needed.
func (m *Manager) Resolve(channel, userID string) *Session {
	m.mu.RLock()
	id, ok := m.byUser[userKey(channel, userID)]
	s := m.sessions[id]
	m.mu.RUnlock()
	if ok && s != nil && !s.Closed() {
		return s
	}
	return m.Create(channel, userID)
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Transcript returns the live transcript, or the persisted one when the
// session is no longer in memory.
func (m *Manager) Transcript(ctx context.Context, id string) ([]domain.Message, error) {
	if s, err := m.Get(id); err == nil {
		return s.Transcript(), nil
	}
	if m.opts.Store == nil {
		return nil, ErrSessionNotFound
	}
	msgs, err := m.opts.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrSessionNotFound
	}
	return msgs, nil
}

// Close cancels any pending reply and forgets the session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		key := userKey(s.channel, s.userID)
		if m.byUser[key] == id {
			delete(m.byUser, key)
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// CloseAll is used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.byUser = make(map[string]string)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func userKey(channel, userID string) string {
	return channel + "\x00" + userID
}
