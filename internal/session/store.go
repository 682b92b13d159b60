package session

import (
	"context"
	"strings"
	"sync"
)

// Store persists the identifier of the shopper's remote cart session. The
// identifier's liveness is never checked here; only a successful remote cart
// load establishes that.
type Store interface {
	// Load returns the persisted id. ok is false when nothing is persisted.
	Load(ctx context.Context) (id string, ok bool, err error)
	// Save persists id. An empty id clears the stored value.
	Save(ctx context.Context, id string) error
}

// Backend hands out a Store scoped to one shopper.
type Backend interface {
	For(shopperID string) Store
}

// MemoryStore keeps the id in process memory. Used for tests and the
// ephemeral "memory" backend.
type MemoryStore struct {
	mu sync.Mutex
	id string
}

func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{id: strings.TrimSpace(initial)}
}

func (m *MemoryStore) Load(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, m.id != "", nil
}

func (m *MemoryStore) Save(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = strings.TrimSpace(id)
	return nil
}

// MemoryBackend keeps one MemoryStore per shopper.
type MemoryBackend struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: map[string]*MemoryStore{}}
}

func (b *MemoryBackend) For(shopperID string) Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	store, ok := b.stores[shopperID]
	if !ok {
		store = NewMemoryStore("")
		b.stores[shopperID] = store
	}
	return store
}
