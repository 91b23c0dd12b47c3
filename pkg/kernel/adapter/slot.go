package adapter

import (
	"sync"

	"mercator-hq/warden/pkg/events"
)

// Slot holds the current adapter, or none. Holders load it per call and never
// keep it across calls, so it can be replaced at any time.
type Slot struct {
	mu      sync.RWMutex
	adapter *Adapter
	sink    events.Sink
}

// NewSlot returns a slot holding a, which may be nil.
func NewSlot(a *Adapter) *Slot {
	return &Slot{adapter: a}
}

// Load returns the current adapter or nil.
func (s *Slot) Load() *Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adapter
}

// Connected reports whether an adapter is present.
func (s *Slot) Connected() bool {
	return s.Load() != nil
}

// Swap installs a and returns the previous adapter. The slot's event sink is
// carried over to a.
func (s *Slot) Swap(a *Adapter) *Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.adapter
	s.adapter = a
	if a != nil && s.sink != nil {
		a.SetEventSink(s.sink)
	}
	return prev
}

// AttachEventSink sets the sink for the current and any future adapter.
func (s *Slot) AttachEventSink(sink events.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
	if s.adapter != nil {
		s.adapter.SetEventSink(sink)
	}
}
