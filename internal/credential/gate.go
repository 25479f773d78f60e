package credential

import (
	"context"
	"strings"
	"sync"
)

// Gate tracks whether a usable provider key is available. One Gate is owned
// by the process and passed to every flow that reads or resets it.
type Gate struct {
	mu        sync.RWMutex
	key       string
	available bool
}

// NewGate creates a gate seeded with the configured key (may be empty).
func NewGate(key string) *Gate {
	key = strings.TrimSpace(key)
	return &Gate{
		key:       key,
		available: key != "",
	}
}

// CheckAvailability re-queries the key store. Called once when a view mounts.
func (g *Gate) CheckAvailability(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = g.key != ""
	return g.available
}

// RequestSelection stores a user-selected key and optimistically marks the
// gate available without re-querying.
func (g *Gate) RequestSelection(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if k := strings.TrimSpace(key); k != "" {
		g.key = k
	}
	g.available = true
	return true
}

// Reset marks the gate unavailable so the UI re-prompts for a key.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = false
}

func (g *Gate) Available() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.available
}

// APIKey returns the current key. It is read on every provider call.
func (g *Gate) APIKey() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.key
}
