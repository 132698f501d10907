// Package session keeps the server-side state behind the back-office session
// cookie: one-shot flash messages and a few string values such as the URL a
// login should return to.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	FlashSuccess = "success"
	FlashError   = "error"

	// KeyIntendedURL is where a successful login redirects to.
	KeyIntendedURL = "url.intended"
)

// Data is the persisted part of a session.
type Data struct {
	Flash  map[string][]string `json:"flash,omitempty"`
	Values map[string]string   `json:"values,omitempty"`
}

type Store interface {
	Get(ctx context.Context, id string) (*Data, bool, error)
	Set(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session is a loaded session. Flashes stored by the previous request are
// readable through Flashes; flashes added now are kept for the next request.
type Session struct {
	ID       string
	values   map[string]string
	incoming map[string][]string
	outgoing map[string][]string
	dirty    bool
}

func (s *Session) Flash(kind string, message string) {
	if s.outgoing == nil {
		s.outgoing = make(map[string][]string)
	}
	s.outgoing[kind] = append(s.outgoing[kind], message)
	s.dirty = true
}

// Flashes returns the messages handed over by the previous request.
func (s *Session) Flashes(kind string) []string {
	return s.incoming[kind]
}

func (s *Session) Get(key string) string {
	return s.values[key]
}

func (s *Session) Put(key string, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Pull returns the value and removes it.
func (s *Session) Pull(key string) string {
	value, ok := s.values[key]
	if ok {
		delete(s.values, key)
		s.dirty = true
	}
	return value
}

type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{store: store, ttl: ttl}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Load returns the session stored under id, or a fresh one with a new ID
// when id is empty or unknown. Consumed flashes are dropped on the next Save.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		data, ok, err := m.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Session{
				ID:       id,
				values:   data.Values,
				incoming: data.Flash,
				dirty:    len(data.Flash) > 0,
			}, nil
		}
	}
	return &Session{ID: uuid.NewString(), dirty: true}, nil
}

// Save persists the session when anything changed since Load.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("session is nil")
	}
	if !s.dirty {
		return nil
	}
	data := &Data{Flash: s.outgoing, Values: s.values}
	if err := m.store.Set(ctx, s.ID, data, m.ttl); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.store.Delete(ctx, id)
}
