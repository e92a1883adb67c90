package web

import (
	"sync"

	"github.com/cjeanneret/TurretGo/internal/logic/turret"
)

// SnapshotStore keeps the latest controller snapshot for the HTTP handlers.
// It implements turret.Publisher.
type SnapshotStore struct {
	mu   sync.RWMutex
	snap turret.Snapshot
	ok   bool
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Publish replaces the stored snapshot.
func (s *SnapshotStore) Publish(snap turret.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.ok = true
	s.mu.Unlock()
}

// Latest returns the stored snapshot and whether one was published yet.
func (s *SnapshotStore) Latest() (turret.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.ok
}
