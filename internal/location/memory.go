package location

import (
	"context"
	"sync"
)

// MemoryStore keeps the encoded location in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (m *MemoryStore) Save(_ context.Context, loc UserLocation) error {
	data, err := Encode(loc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[StorageKey] = data
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (UserLocation, bool) {
	m.mu.Lock()
	data, ok := m.data[StorageKey]
	m.mu.Unlock()
	if !ok {
		return UserLocation{}, false
	}
	return Decode(data)
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, StorageKey)
	return nil
}

// MemoryProvider returns a Provider handing out one MemoryStore per session.
func MemoryProvider() Provider {
	var mu sync.Mutex
	stores := map[string]*MemoryStore{}
	return func(session string) Store {
		mu.Lock()
		defer mu.Unlock()
		s, ok := stores[session]
		if !ok {
			s = NewMemoryStore()
			stores[session] = s
		}
		return s
	}
}
