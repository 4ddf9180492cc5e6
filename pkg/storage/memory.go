package storage

import (
	"context"
	"sync"

	"storefront-client/pkg/cache"
)

// memoryHub is the backing data shared by sibling memory stores.
type memoryHub struct {
	cache cache.CacheService

	mu       sync.Mutex
	watchers map[*MemoryStore][]chan Change
}

// MemoryStore keeps values in a CacheService. Stores created with Sibling share
// the same data and see each other's writes through Watch, the way two browser
// tabs share one origin's storage.
type MemoryStore struct {
	hub *memoryHub
}

func NewMemoryStore(c cache.CacheService) *MemoryStore {
	return &MemoryStore{hub: &memoryHub{
		cache:    c,
		watchers: make(map[*MemoryStore][]chan Change),
	}}
}

// Sibling returns another store over the same data.
func (m *MemoryStore) Sibling() *MemoryStore {
	return &MemoryStore{hub: m.hub}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	v, ok := m.hub.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data := make([]byte, len(value))
	copy(data, value)
	m.hub.cache.Set(key, data, cache.NoExpiration)
	m.hub.notify(m, Change{Key: key})
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.hub.cache.Delete(key)
	m.hub.notify(m, Change{Key: key, Removed: true})
	return nil
}

func (m *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)
	m.hub.mu.Lock()
	m.hub.watchers[m] = append(m.hub.watchers[m], ch)
	m.hub.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.hub.mu.Lock()
		defer m.hub.mu.Unlock()
		chans := m.hub.watchers[m]
		for i, c := range chans {
			if c == ch {
				chans = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(chans) == 0 {
			delete(m.hub.watchers, m)
		} else {
			m.hub.watchers[m] = chans
		}
		close(ch)
	}()
	return ch, nil
}

func (m *MemoryStore) Close() error { return nil }

// notify fans a change out to every watcher except the writer's own.
// Slow watchers drop changes rather than block writers.
func (h *memoryHub) notify(origin *MemoryStore, change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for store, chans := range h.watchers {
		if store == origin {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- change:
			default:
			}
		}
	}
}
