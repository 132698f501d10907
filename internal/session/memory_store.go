package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      Data
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Sessions are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Data, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return nil, false, nil
	}
	data := cloneData(e.data)
	return &data, true, nil
}

func (m *MemoryStore) Set(_ context.Context, id string, data *Data, ttl time.Duration) error {
	if data == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = entry{data: cloneData(*data), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func cloneData(src Data) Data {
	dst := Data{}
	if len(src.Flash) > 0 {
		dst.Flash = make(map[string][]string, len(src.Flash))
		for k, v := range src.Flash {
			dst.Flash[k] = append([]string(nil), v...)
		}
	}
	if len(src.Values) > 0 {
		dst.Values = make(map[string]string, len(src.Values))
		for k, v := range src.Values {
			dst.Values[k] = v
		}
	}
	return dst
}
