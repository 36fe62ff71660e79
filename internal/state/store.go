package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/courier/internal/instance"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Instance    instance.State
	HasState    bool
	Notice      instance.Notice
	HasNotice   bool
	LastUpdated time.Time
	Version     uint64 // increases on every Publish or Notify
}

// IsOffline returns true when the gateway has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.Instance.IsOffline()
}

// Store coordinates concurrent updates to the snapshot. It implements
// instance.Publisher and instance.Notifier; only the newest notice is kept.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

var (
	_ instance.Publisher = (*Store)(nil)
	_ instance.Notifier  = (*Store)(nil)
)

// Publish replaces the stored instance state.
func (s *Store) Publish(st instance.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Artifact = cloneArtifact(st.Artifact)
	s.snapshot.Instance = st
	s.snapshot.HasState = true
	s.snapshot.LastUpdated = s.clock()
	s.snapshot.Version++
}

// Notify records n as the current notice, replacing any earlier one.
func (s *Store) Notify(n instance.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Notice = n
	s.snapshot.HasNotice = true
	s.snapshot.Version++
}

// Dismiss clears the current notice.
func (s *Store) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.snapshot.HasNotice {
		return
	}
	s.snapshot.Notice = instance.Notice{}
	s.snapshot.HasNotice = false
	s.snapshot.Version++
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Instance.Artifact = cloneArtifact(s.snapshot.Instance.Artifact)
	if s.snapshot.Instance.LastPollError != nil {
		snap.Instance.LastPollError = fmt.Errorf("%w", s.snapshot.Instance.LastPollError)
	}
	return snap
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func cloneArtifact(a *instance.Artifact) *instance.Artifact {
	if a == nil {
		return nil
	}
	dup := *a
	dup.Image = append([]byte(nil), a.Image...)
	return &dup
}
