// Package store tracks active policies.
//
// The Store keeps three in-memory indexes (policy id, driver id, node id) and
// writes every change through to a Backend so policies survive a restart.
// Reads never wait on the backend.
//
// Node ids belong to one run of the filesystem index, so only the subject's
// display path is durable. Policies loaded from the backend start detached
// and are bound again by Rebind once their subject is materialized.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/policy"
)

// ActivePolicy is one applied intent together with the rules derived from it
// and the driver ids they were sent under.
type ActivePolicy struct {
	ID     policy.ID     `json:"id"`
	Intent policy.Intent `json:"intent"`

	// SubjectPath is the display path of the intent's node at apply time.
	SubjectPath string `json:"subject_path"`

	// NodeID is the node the policy is bound to in the running index, or
	// zero while its subject is not materialized. It is never persisted.
	NodeID uint64 `json:"-"`

	Rules     []kernel.Rule     `json:"rules"`
	DriverIDs []policy.DriverID `json:"driver_ids"`
	Active    bool              `json:"active"`
	Simulated bool              `json:"simulated"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (p ActivePolicy) clone() ActivePolicy {
	c := p
	c.Rules = append([]kernel.Rule(nil), p.Rules...)
	c.DriverIDs = append([]policy.DriverID(nil), p.DriverIDs...)
	return c
}

// Backend persists active policies.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Load returns every persisted policy.
	Load(ctx context.Context) ([]ActivePolicy, error)

	// Save inserts or replaces a policy.
	Save(ctx context.Context, p ActivePolicy) error

	// Delete removes a policy. Deleting a missing id is not an error.
	Delete(ctx context.Context, id policy.ID) error

	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by backends that can report their own liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stats summarizes the store.
type Stats struct {
	Total          int `json:"total_policies"`
	Active         int `json:"active_policies"`
	Simulated      int `json:"simulated_policies"`
	ProtectedNodes int `json:"protected_nodes"`
}

// Store is the active policy table.
type Store struct {
	backend Backend
	logger  *slog.Logger

	// writeMu serializes mutations so the backend and the indexes apply them
	// in the same order.
	writeMu sync.Mutex

	mu       sync.RWMutex
	byID     map[policy.ID]ActivePolicy
	byDriver map[policy.DriverID]policy.ID
	byNode   map[uint64][]policy.ID
	lastID   policy.ID
}

// New returns a store over backend, loaded with whatever it holds.
func New(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend:  backend,
		logger:   logger.With("component", "policy.store"),
		byID:     make(map[policy.ID]ActivePolicy),
		byDriver: make(map[policy.DriverID]policy.ID),
		byNode:   make(map[uint64][]policy.ID),
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		p.NodeID = 0
		s.indexLocked(p)
	}

	s.logger.Info("policy store initialized",
		"backend", backend.Name(),
		"loaded", len(loaded),
		"last_id", s.lastID,
	)
	return s, nil
}

// NextID reserves a fresh policy id.
func (s *Store) NextID() policy.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

// Insert records a new policy.
func (s *Store) Insert(ctx context.Context, p ActivePolicy) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	_, exists := s.byID[p.ID]
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("policy %s already exists", p.ID)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.NodeID == 0 {
		p.NodeID = p.Intent.NodeID
	}
	p = p.clone()

	if err := s.backend.Save(ctx, p); err != nil {
		return err
	}

	s.mu.Lock()
	s.indexLocked(p)
	s.mu.Unlock()
	return nil
}

// Update replaces an existing policy.
func (s *Store) Update(ctx context.Context, p ActivePolicy) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	old, exists := s.byID[p.ID]
	s.mu.RUnlock()
	if !exists {
		return policy.NotFound("update", "policy %s not found", p.ID)
	}

	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	p.NodeID = old.NodeID
	if p.SubjectPath == "" {
		p.SubjectPath = old.SubjectPath
	}
	p = p.clone()

	if err := s.backend.Save(ctx, p); err != nil {
		return err
	}

	s.mu.Lock()
	s.unindexLocked(old)
	s.indexLocked(p)
	s.mu.Unlock()
	return nil
}

// SetActive flips the active flag of a policy.
func (s *Store) SetActive(ctx context.Context, id policy.ID, active bool) error {
	p, ok := s.Get(id)
	if !ok {
		return policy.NotFound("update", "policy %s not found", id)
	}
	p.Active = active
	return s.Update(ctx, p)
}

// Remove deletes a policy and returns it.
func (s *Store) Remove(ctx context.Context, id policy.ID) (ActivePolicy, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	p, exists := s.byID[id]
	s.mu.RUnlock()
	if !exists {
		return ActivePolicy{}, policy.NotFound("remove", "policy %s not found", id)
	}

	if err := s.backend.Delete(ctx, id); err != nil {
		return ActivePolicy{}, err
	}

	s.mu.Lock()
	s.unindexLocked(p)
	s.mu.Unlock()
	return p, nil
}

// Rebind points every policy at the node now materialized for its subject
// path. A policy whose bound node is still live keeps it; one whose subject is
// not materialized becomes detached. It returns the number of policies whose
// binding changed.
func (s *Store) Rebind(live func(nodeID uint64) bool, lookup func(displayPath string) (uint64, bool)) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, p := range s.byID {
		if p.NodeID != 0 && live(p.NodeID) {
			continue
		}
		var node uint64
		if p.SubjectPath != "" {
			if n, ok := lookup(p.SubjectPath); ok {
				node = n
			}
		}
		if node == p.NodeID {
			continue
		}
		s.unbindLocked(p)
		p.NodeID = node
		s.bindLocked(p)
		s.byID[id] = p
		changed++
	}
	return changed
}

// Detached returns the number of policies not bound to a materialized node.
func (s *Store) Detached() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.byID {
		if p.NodeID == 0 {
			n++
		}
	}
	return n
}

// Get returns a policy by id.
func (s *Store) Get(id policy.ID) (ActivePolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return ActivePolicy{}, false
	}
	return p.clone(), true
}

// LookupDriverID returns the policy a driver id belongs to.
func (s *Store) LookupDriverID(id policy.DriverID) (ActivePolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.byDriver[id]
	if !ok {
		return ActivePolicy{}, false
	}
	return s.byID[pid].clone(), true
}

// ForNode returns the policies bound to a node, ordered by id.
func (s *Store) ForNode(nodeID uint64) []ActivePolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byNode[nodeID]
	out := make([]ActivePolicy, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List returns every policy ordered by id.
func (s *Store) List() []ActivePolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ActivePolicy, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of policies.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Total: len(s.byID), ProtectedNodes: len(s.byNode)}
	for _, p := range s.byID {
		if p.Active {
			st.Active++
		}
		if p.Simulated {
			st.Simulated++
		}
	}
	return st
}

// MaxDriverID returns the highest driver id in use within the real or the
// simulated range, or zero if the range is unused.
func (s *Store) MaxDriverID(simulated bool) policy.DriverID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var highest policy.DriverID
	for id := range s.byDriver {
		if id.Simulated() == simulated && id > highest {
			highest = id
		}
	}
	return highest
}

// Ping checks the backend. Backends without a Ping method are always
// reachable.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return NewStorageError(s.backend.Name(), "ping", err)
		}
	}
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) indexLocked(p ActivePolicy) {
	s.byID[p.ID] = p
	for _, did := range p.DriverIDs {
		s.byDriver[did] = p.ID
	}
	s.bindLocked(p)
	if p.ID > s.lastID {
		s.lastID = p.ID
	}
}

func (s *Store) unindexLocked(p ActivePolicy) {
	delete(s.byID, p.ID)
	for _, did := range p.DriverIDs {
		if s.byDriver[did] == p.ID {
			delete(s.byDriver, did)
		}
	}
	s.unbindLocked(p)
}

func (s *Store) bindLocked(p ActivePolicy) {
	if p.NodeID == 0 {
		return
	}
	s.byNode[p.NodeID] = append(s.byNode[p.NodeID], p.ID)
}

func (s *Store) unbindLocked(p ActivePolicy) {
	if p.NodeID == 0 {
		return
	}
	ids := s.byNode[p.NodeID]
	for i, id := range ids {
		if id == p.ID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byNode, p.NodeID)
	} else {
		s.byNode[p.NodeID] = ids
	}
}
