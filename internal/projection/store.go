// Package projection keeps a client-side view of orders that shows the
// probable result of a write before the server confirms it.
//
// Contract: ApplyOptimistic layers a tentative patch over the last
// authoritative snapshot. Reconcile installs an authoritative snapshot and
// drops the named patch. Rollback drops only the named patch. An
// authoritative snapshot older than the one held is ignored, so a late
// reply can never hide a newer remote write.
package projection

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/rentflow/rentflow/internal/rental"
)

// MutationID names one tentative write. Zero means "no local write".
type MutationID uint64

// ErrNotCached is returned when a patch targets an order with no snapshot.
var ErrNotCached = errors.New("projection: order not cached")

// Patch computes the probable effect of a write on an order.
type Patch interface {
	Apply(o rental.Order) (rental.Order, error)
}

// Store is the projection cache.
type Store interface {
	ApplyOptimistic(id uuid.UUID, patch Patch) (MutationID, error)
	Reconcile(authoritative rental.Order, mutation MutationID)
	Rollback(id uuid.UUID, mutation MutationID)
	Get(id uuid.UUID) (rental.Order, bool)
	Invalidate(id uuid.UUID)
}

type overlay struct {
	id    MutationID
	patch Patch
}

type entry struct {
	base     rental.Order
	hasBase  bool
	overlays []overlay
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	next    MutationID
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID]*entry)}
}

// ApplyOptimistic checks the patch against the current view and, when it
// applies cleanly, records it as pending. A rejected patch leaves no trace.
func (s *MemoryStore) ApplyOptimistic(id uuid.UUID, patch Patch) (MutationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !e.hasBase {
		return 0, ErrNotCached
	}
	if _, err := patch.Apply(e.view()); err != nil {
		return 0, err
	}
	s.next++
	e.overlays = append(e.overlays, overlay{id: s.next, patch: patch})
	return s.next, nil
}

// Reconcile installs an authoritative snapshot unless a newer one is held,
// then drops the named overlay.
func (s *MemoryStore) Reconcile(authoritative rental.Order, mutation MutationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[authoritative.ID]
	if !ok {
		e = &entry{}
		s.entries[authoritative.ID] = e
	}
	if !e.hasBase || authoritative.Version >= e.base.Version {
		e.base = authoritative.Clone()
		e.hasBase = true
	}
	e.drop(mutation)
}

// Rollback discards one tentative write.
func (s *MemoryStore) Rollback(id uuid.UUID, mutation MutationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.drop(mutation)
	}
}

// Get returns the projected view: base plus pending overlays in order.
func (s *MemoryStore) Get(id uuid.UUID) (rental.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || !e.hasBase {
		return rental.Order{}, false
	}
	return e.view(), true
}

// Invalidate forgets the snapshot so the next read refetches. Pending
// overlays survive and reapply once a snapshot arrives.
func (s *MemoryStore) Invalidate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if len(e.overlays) == 0 {
		delete(s.entries, id)
		return
	}
	e.base, e.hasBase = rental.Order{}, false
}

// Pending reports how many tentative writes are outstanding for an order.
func (s *MemoryStore) Pending(id uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return len(e.overlays)
	}
	return 0
}

func (e *entry) view() rental.Order {
	v := e.base.Clone()
	for _, o := range e.overlays {
		// an overlay that no longer fits the newer base is hidden until its
		// own reply arrives
		if next, err := o.patch.Apply(v); err == nil {
			v = next
		}
	}
	return v
}

func (e *entry) drop(mutation MutationID) {
	if mutation == 0 {
		return
	}
	for i, o := range e.overlays {
		if o.id == mutation {
			e.overlays = append(e.overlays[:i:i], e.overlays[i+1:]...)
			return
		}
	}
}
