package store

import (
	"context"
	"sync"

	"mercator-hq/warden/pkg/policy"
)

// MemoryBackend keeps policies in process memory. Nothing survives a restart.
type MemoryBackend struct {
	mu       sync.RWMutex
	policies map[policy.ID]ActivePolicy
}

// NewMemoryBackend returns an empty memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{policies: make(map[policy.ID]ActivePolicy)}
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return "memory" }

// Load implements Backend.
func (m *MemoryBackend) Load(ctx context.Context) ([]ActivePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ActivePolicy, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, p.clone())
	}
	return out, nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(ctx context.Context, p ActivePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p.clone()
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(ctx context.Context, id policy.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, id)
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }
