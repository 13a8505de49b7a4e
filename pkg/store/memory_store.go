// verdict/pkg/store/memory_store.go

package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps list members in process memory. It is the backend
// of choice for tests and for small static lists loaded at startup.
type MemoryBackend struct {
	mu    sync.RWMutex
	lists map[string]map[string]bool
}

// NewMemoryBackend returns a backend pre-seeded with the given lists.
func NewMemoryBackend(seed map[string][]string) *MemoryBackend {
	b := &MemoryBackend{lists: make(map[string]map[string]bool, len(seed))}
	for id, values := range seed {
		members := make(map[string]bool, len(values))
		for _, v := range values {
			members[v] = true
		}
		b.lists[id] = members
	}
	return b
}

func (b *MemoryBackend) Contains(_ context.Context, listID, value string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lists[listID][value], nil
}

func (b *MemoryBackend) Add(_ context.Context, listID string, values ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.lists[listID]
	if !ok {
		members = make(map[string]bool, len(values))
		b.lists[listID] = members
	}
	for _, v := range values {
		members[v] = true
	}
	return nil
}

func (b *MemoryBackend) Remove(_ context.Context, listID string, values ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.lists[listID]
	for _, v := range values {
		delete(members, v)
	}
	return nil
}

func (b *MemoryBackend) Members(_ context.Context, listID string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.lists[listID]))
	for v := range b.lists[listID] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (b *MemoryBackend) Close() error { return nil }
