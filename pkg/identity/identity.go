// Package identity supplies the stable anonymous user identifier and the
// opt-out preference consumed by the telemetry client. The client takes a
// Store interface so tests can swap the real file-backed store for an
// in-memory fake.
package identity

import (
	"sync"

	"github.com/google/uuid"
)

// Identity is the stable anonymous user identifier embedded as a resource
// attribute on every outbound batch.
type Identity struct {
	UserID string
}

// Store abstracts identity persistence and the opt-out preference.
type Store interface {
	// Load returns the persisted identity, creating one if absent.
	Load() (Identity, error)
	// Save persists the identity.
	Save(Identity) error
	// OptedOut reports whether the user has opted out of telemetry.
	OptedOut() bool
	// SetOptOut records or clears the opt-out preference.
	SetOptOut(optOut bool) error
}

// NewSessionID returns a fresh per-process session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// MemoryStore is an in-memory Store for tests and embedded use.
type MemoryStore struct {
	mu       sync.Mutex
	identity Identity
	optedOut bool
}

// NewMemoryStore creates a MemoryStore with a fresh random identity.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{identity: Identity{UserID: uuid.NewString()}}
}

// Load returns the stored identity.
func (s *MemoryStore) Load() (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity.UserID == "" {
		s.identity = Identity{UserID: uuid.NewString()}
	}
	return s.identity, nil
}

// Save replaces the stored identity.
func (s *MemoryStore) Save(id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	return nil
}

// OptedOut reports the in-memory opt-out flag.
func (s *MemoryStore) OptedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optedOut
}

// SetOptOut flips the in-memory opt-out flag.
func (s *MemoryStore) SetOptOut(optOut bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optedOut = optOut
	return nil
}
