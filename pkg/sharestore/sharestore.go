// Package sharestore implements the thread-safe share-store interface
// (component I) that the MPC core consumes: has/get/release/share_info.
// Persistence and the store/remove write paths are external collaborators
// out of scope for the MPC core; this package implements only the
// read/release surface the core actually touches, as an in-memory store
// suitable for tests and the "simulate" CLI path.
package sharestore

import (
	"strings"
	"sync"

	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// Entry is one signal's share-store record, mutated only outside the
// MPC core (store/remove); the core treats these as read-only.
type Entry struct {
	SignalID        string
	GeniusAddress   string
	ShareX          int
	Share           []byte
	EncryptedKeyBlob []byte
	ReleasedTo      map[string]bool
}

// Store is a thread-safe, in-memory ShareStore. Reads (Has, Get, Release,
// ShareInfo) are safe for concurrent use; Put/Remove (the write surface
// the core does not call, included here only so tests can populate the
// store) are serialised under the same lock.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New builds an empty in-memory share store.
func New() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Put inserts a signal's entry. Duplicate inserts of the same
// signal_id are ignored if an entry already exists, matching the
// duplicate-store-is-a-no-op behavior of the original store.
func (s *Store) Put(signalID, geniusAddress string, shareX int, share, encryptedKeyBlob []byte) error {
	if strings.TrimSpace(signalID) == "" {
		return mpcerr.New(mpcerr.InvalidInput, "signal_id must not be empty")
	}
	if strings.TrimSpace(geniusAddress) == "" {
		return mpcerr.New(mpcerr.InvalidInput, "genius_address must not be empty")
	}
	if len(encryptedKeyBlob) == 0 {
		return mpcerr.New(mpcerr.InvalidInput, "encrypted_key_share must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[signalID]; exists {
		return nil
	}
	s.entries[signalID] = &Entry{
		SignalID:         signalID,
		GeniusAddress:    geniusAddress,
		ShareX:           shareX,
		Share:            share,
		EncryptedKeyBlob: encryptedKeyBlob,
		ReleasedTo:       make(map[string]bool),
	}
	return nil
}

// Has reports whether a signal has a stored share.
func (s *Store) Has(signalID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[signalID]
	return ok
}

// Get returns a signal's entry, or nil if absent.
func (s *Store) Get(signalID string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[signalID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// Release returns the encrypted key blob for (signalID, buyerAddress),
// idempotently: repeated calls with the same buyer return identical
// bytes, never fewer. An empty signal_id or buyer returns (nil, nil)
// rather than an error, matching the lenient release-path validation of
// the original store (only store's input validation is strict).
func (s *Store) Release(signalID, buyerAddress string) ([]byte, error) {
	if strings.TrimSpace(signalID) == "" || strings.TrimSpace(buyerAddress) == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[signalID]
	if !ok {
		return nil, nil
	}
	e.ReleasedTo[buyerAddress] = true
	out := make([]byte, len(e.EncryptedKeyBlob))
	copy(out, e.EncryptedKeyBlob)
	return out, nil
}

// ShareInfo reports a signal's Shamir x-coordinate (and, for test
// fixtures only, its y value is omitted — production callers must never
// expose share_y for confidentiality).
type ShareInfo struct {
	X int
}

// ShareInfo returns which x-coordinate this validator holds for signalID.
func (s *Store) ShareInfo(signalID string) (ShareInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[signalID]
	if !ok {
		return ShareInfo{}, mpcerr.New(mpcerr.SessionExpired, "signal not found")
	}
	return ShareInfo{X: e.ShareX}, nil
}

// Remove deletes a signal's entry entirely, cascading away its
// released-to record. Remove is a write operation outside the MPC core's
// own interface but is included so tests can exercise removal semantics.
func (s *Store) Remove(signalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, signalID)
}

// Count reports the number of signals currently stored.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ActiveSignals returns every stored signal_id.
func (s *Store) ActiveSignals() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}
