// Package snapshot holds the latest poll results and publishes them: an
// atomically swapped fleet snapshot, the pull-style dashboard view built from
// it, and the push publisher that forwards changed views to subscribers.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// Store is the handoff point between the poll loop and readers. The poll
// loop replaces the whole snapshot; readers always see a complete one, never
// a partial update.
type Store struct {
	current atomic.Pointer[models.FleetSnapshot]
}

// NewStore returns a Store holding an empty snapshot, so readers before the
// first poll cycle see placeholders rather than nil.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(models.NewFleetSnapshot(time.Time{}))
	return s
}

// Replace publishes a new snapshot.
func (s *Store) Replace(snapshot *models.FleetSnapshot) {
	if snapshot == nil {
		return
	}
	s.current.Store(snapshot)
}

// Current returns the latest snapshot. Callers must treat it as read-only.
func (s *Store) Current() *models.FleetSnapshot {
	return s.current.Load()
}
