// Package session implements the mutable MPC session record (component
// F/G's per-session state, data-modeled in spec.md §3) and the
// mutex-guarded in-memory registry that the coordinator (pkg/coordinator)
// creates, looks up, and reaps sessions from. It deliberately holds no
// network code: the registry is the "arena + session IDs" referred to by
// the design notes, while pkg/coordinator drives the HTTP side.
package session

import (
	"sync"
	"time"

	"github.com/signaloracle/mpccore/pkg/beaver"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
	"github.com/signaloracle/mpccore/pkg/spdz"
	"github.com/signaloracle/mpccore/pkg/triple"
	"github.com/signaloracle/mpccore/pkg/wire"
)

// Mode is the tagged enum distinguishing the two MPC protocol variants,
// per the design notes' "dynamic dispatch -> tagged variants" guidance.
type Mode int

const (
	ModeSemiHonest Mode = iota
	ModeAuthenticated
)

// GateSubmission is one participant's contribution to one gate, pending
// reconstruction once every expected participant has submitted.
type GateSubmission struct {
	D    field.Element
	E    field.Element
	DMac *field.Element
	EMac *field.Element
}

// OpenedGate is a completed gate's publicly reconstructed (d, e).
type OpenedGate struct {
	D field.Element
	E field.Element
}

// Session is the mutable per-session record described by spec.md §3. All
// mutation goes through Registry's lock; Session itself holds no mutex so
// that callers who already hold the registry lock can snapshot and
// release it before doing network I/O, per the locking discipline in
// spec.md §5.
type Session struct {
	ID               string
	SignalID         string
	Available        []int
	CoordinatorX     int
	ParticipantXs    []int
	Threshold        int
	Mode             Mode
	PlainTriples     []triple.Triple
	AuthTriples      []spdz.AuthTriple
	CreatedAt        time.Time

	State            wire.Status
	CurrentGate      int
	Submissions      map[int]map[int]GateSubmission // gate -> participant x -> submission
	Opened           []OpenedGate
	Result           *beaver.Result
	AbortReason      string
	AbortGateIdx     int
}

// NewSession builds a fresh session in the pending state.
func NewSession(id, signalID string, available []int, coordinatorX int, participantXs []int, threshold int, mode Mode) *Session {
	return &Session{
		ID:            id,
		SignalID:      signalID,
		Available:     append([]int(nil), available...),
		CoordinatorX:  coordinatorX,
		ParticipantXs: append([]int(nil), participantXs...),
		Threshold:     threshold,
		Mode:          mode,
		CreatedAt:     time.Now(),
		State:         wire.StatusPending,
		Submissions:   make(map[int]map[int]GateSubmission),
	}
}

// TotalGates returns the number of multiplication gates this session's
// available set requires.
func (s *Session) TotalGates() int {
	return beaver.NumGates(uint8Slice(s.Available))
}

func uint8Slice(xs []int) []uint8 {
	out := make([]uint8, len(xs))
	for i, x := range xs {
		out[i] = uint8(x)
	}
	return out
}

// RecordSubmission stores one participant's gate submission. It rejects a
// submission for any gate other than s.CurrentGate, enforcing the strict
// gate-ordering invariant at the coordinator side.
func (s *Session) RecordSubmission(gateIdx, participantX int, sub GateSubmission) error {
	if s.State == wire.StatusAborted || s.State == wire.StatusExpired {
		return mpcerr.New(mpcerr.SessionExpired, "session is no longer accepting submissions")
	}
	if gateIdx != s.CurrentGate {
		return mpcerr.Wrap(mpcerr.InvalidInput, "submission for unexpected gate", mpcerr.ErrOutOfOrderGate)
	}
	if s.Submissions[gateIdx] == nil {
		s.Submissions[gateIdx] = make(map[int]GateSubmission)
	}
	s.Submissions[gateIdx][participantX] = sub
	return nil
}

// SubmissionCount reports how many participants have submitted for the
// current gate.
func (s *Session) SubmissionCount(gateIdx int) int {
	return len(s.Submissions[gateIdx])
}

// AdvanceGate records gate gateIdx's reconstructed opening and moves the
// session to the next gate.
func (s *Session) AdvanceGate(gateIdx int, opened OpenedGate) {
	s.Opened = append(s.Opened, opened)
	s.CurrentGate = gateIdx + 1
	if s.CurrentGate >= s.TotalGates() {
		s.State = wire.StatusComplete
	} else {
		s.State = wire.StatusRound1Collecting
	}
}

// Abort transitions the session to aborted, recording why, discarding any
// partially submitted values for the in-flight gate.
func (s *Session) Abort(reason string, gateIdx int) {
	s.State = wire.StatusAborted
	s.AbortReason = reason
	s.AbortGateIdx = gateIdx
	delete(s.Submissions, gateIdx)
}

// SetResult records the session's final, user-visible result and marks it
// complete.
func (s *Session) SetResult(result beaver.Result) {
	s.Result = &result
	s.State = wire.StatusComplete
}

// Expired reports whether the session has outlived ttl since creation.
func (s *Session) Expired(ttl time.Duration) bool {
	return time.Since(s.CreatedAt) > ttl
}

// Registry is the thread-safe session_id -> Session map. Per spec.md §5,
// it is the only piece of state guarded by a single mutex; entries, once
// created, are mutated by exactly one coordinator (the one that created
// them), so the registry lock only needs to protect map access itself,
// not cross-session ordering.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create inserts a new session, failing if the ID is already in use.
func (r *Registry) Create(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return mpcerr.New(mpcerr.InvalidInput, "session_id already in use")
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns the session for id, or nil if absent. Callers must not
// hold the registry lock across network I/O; Get returns the pointer so
// callers can snapshot fields, release, and mutate later via Mutate.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Mutate runs fn with the registry lock held, for callers that need to
// read-then-write a session atomically without an intervening network
// call. fn must not perform I/O.
func (r *Registry) Mutate(id string, fn func(s *Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return mpcerr.New(mpcerr.SessionExpired, "session not found")
	}
	fn(s)
	return nil
}

// Delete removes a session from the registry.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// ReapExpired removes every session older than ttl from the registry, returning how many were reaped. Intended to be
// called periodically by a background cleanup loop (pkg/coordinator).
func (r *Registry) ReapExpired(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.Expired(ttl) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
