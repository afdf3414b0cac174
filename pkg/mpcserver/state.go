// Package mpcserver implements the server side of component H's wire
// protocol: the HTTP handlers a validator runs so a coordinator can drive
// it through /mpc/init, /mpc/compute_gate, /mpc/result, and /mpc/abort,
// plus the read-only /mpc/{session_id}/status and /signal/{id}/share_info
// lookups. pkg/coordinator is the client side of this same protocol; this
// package is the callee.
package mpcserver

import (
	"sync"
	"time"

	"github.com/signaloracle/mpccore/pkg/beaver"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
	"github.com/signaloracle/mpccore/pkg/session"
	"github.com/signaloracle/mpccore/pkg/spdz"
	"github.com/signaloracle/mpccore/pkg/wire"
)

// peerSession is this validator's local view of one in-flight session,
// the server-side analogue of pkg/session.Session: where that type holds
// the coordinator's reconstruct-everything bookkeeping across every
// participant, this type holds exactly one participant's share-level
// state and never reconstructs anything itself.
type peerSession struct {
	SignalID      string
	Mode          session.Mode
	SemiHonest    *beaver.ParticipantState
	Auth          *spdz.ParticipantState
	TotalGates    int
	TotalPeers    int
	State         wire.Status
	AbortReason   string
	Available     *bool
	CreatedAt     time.Time
}

// Store is the thread-safe session_id -> peerSession map a Server
// consults on every request. Mirrors pkg/session.Registry's locking
// discipline: one mutex guarding map access only, never held across I/O.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*peerSession
}

// NewStore builds an empty peer-session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*peerSession)}
}

func (s *Store) create(id string, ps *peerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; exists {
		return mpcerr.New(mpcerr.InvalidInput, "session_id already in use")
	}
	s.sessions[id] = ps
	return nil
}

func (s *Store) get(id string) *peerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Store) mutate(id string, fn func(*peerSession)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.sessions[id]
	if !ok {
		return mpcerr.Wrap(mpcerr.SessionExpired, "session not found", mpcerr.ErrSessionNotFound)
	}
	fn(ps)
	return nil
}

func (s *Store) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// ReapExpired discards every session older than ttl, mirroring
// pkg/coordinator's cleanup loop on the peer side so a crashed or
// never-finished session doesn't pin ParticipantState memory forever.
func (s *Store) ReapExpired(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ps := range s.sessions {
		if time.Since(ps.CreatedAt) > ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Count reports the number of sessions this store currently tracks.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
