// Package recent remembers the counterparties each viewer picked lately,
// so the client can offer them before any search.
package recent

import (
	"context"
	"sync"
	"time"

	"tabs/internal/cache"
	"tabs/internal/core"
)

// MaxPerViewer bounds how many counterparties are remembered per viewer.
const MaxPerViewer = 10

// Tracker is the presentation-layer store of recent counterparties.
type Tracker interface {
	// Touch marks ids as just used by viewer. The first id ends up most
	// recent.
	Touch(ctx context.Context, viewer core.UserID, ids ...core.UserID) error
	// List returns the viewer's recent counterparties, most recent first.
	List(ctx context.Context, viewer core.UserID) ([]core.UserID, error)
}

// Memory keeps recent lists in process. Idle viewers are dropped after
// ttl; at most maxViewers lists are retained.
type Memory struct {
	// mu serialises get-or-create of a viewer's list.
	mu      sync.Mutex
	viewers *cache.LRUCache[*cache.LRUCache[struct{}]]
}

func NewMemory(maxViewers int, ttl time.Duration) *Memory {
	return &Memory{viewers: cache.NewLRUCache[*cache.LRUCache[struct{}]](maxViewers, ttl)}
}

// Cache exposes the viewer table so a cache.Manager can sweep it.
func (m *Memory) Cache() cache.Cleaner { return m.viewers }

func (m *Memory) Touch(_ context.Context, viewer core.UserID, ids ...core.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.viewers.Get(string(viewer))
	if !ok {
		list = cache.NewLRUCache[struct{}](MaxPerViewer, 0)
	}
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == "" || ids[i] == viewer {
			continue
		}
		list.Set(string(ids[i]), struct{}{})
	}
	// Set also refreshes the viewer's idle deadline.
	m.viewers.Set(string(viewer), list)
	return nil
}

func (m *Memory) List(_ context.Context, viewer core.UserID) ([]core.UserID, error) {
	list, ok := m.viewers.Get(string(viewer))
	if !ok {
		return []core.UserID{}, nil
	}
	keys := list.Keys()
	out := make([]core.UserID, len(keys))
	for i, k := range keys {
		out[i] = core.UserID(k)
	}
	return out, nil
}
