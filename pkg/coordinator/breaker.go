package coordinator

import (
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// BreakerState is one of the three circuit-breaker states.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// breaker is a single peer's circuit breaker state.
type breaker struct {
	state            BreakerState
	consecutiveFails int
	halfOpenSuccesses int
	openedAt         time.Time
}

// BreakerSet manages one circuit breaker per peer, keyed by a blake3
// digest of the peer's base URL string exactly as given; URLs differing
// only in capitalisation or a trailing slash get separate breakers.
type BreakerSet struct {
	mu                sync.Mutex
	breakers          map[string]*breaker
	failureThreshold  int
	recoveryTimeout   time.Duration
	halfOpenMax       int
}

// NewBreakerSet builds a breaker set with the given thresholds.
func NewBreakerSet(failureThreshold int, recoveryTimeout time.Duration, halfOpenMax int) *BreakerSet {
	return &BreakerSet{
		breakers:         make(map[string]*breaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenMax:      halfOpenMax,
	}
}

// PeerKey derives the stable breaker key for a peer base URL.
func PeerKey(peerBaseURL string) string {
	sum := blake3.Sum256([]byte(peerBaseURL))
	return string(sum[:])
}

func (b *BreakerSet) get(key string) *breaker {
	br, ok := b.breakers[key]
	if !ok {
		br = &breaker{state: BreakerClosed}
		b.breakers[key] = br
	}
	return br
}

// Allow reports whether a request to the peer identified by key may
// proceed. A breaker in the open state transitions itself to half-open
// once recoveryTimeout has elapsed; a half-open breaker lets every call
// through until halfOpenMax successes close it or a failure reopens it.
func (b *BreakerSet) Allow(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	br := b.get(key)

	switch br.state {
	case BreakerClosed, BreakerHalfOpen:
		return nil
	case BreakerOpen:
		if time.Since(br.openedAt) >= b.recoveryTimeout {
			br.state = BreakerHalfOpen
			br.halfOpenSuccesses = 0
			return nil
		}
		return mpcerr.Wrap(mpcerr.PeerTransient, "circuit open for peer", mpcerr.ErrCircuitOpen)
	}
	return nil
}

// RecordSuccess records a successful call, closing a half-open breaker
// once halfOpenMax consecutive successes have been observed.
func (b *BreakerSet) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	br := b.get(key)
	switch br.state {
	case BreakerHalfOpen:
		br.halfOpenSuccesses++
		if br.halfOpenSuccesses >= b.halfOpenMax {
			br.state = BreakerClosed
			br.consecutiveFails = 0
		}
	case BreakerClosed:
		br.consecutiveFails = 0
	}
}

// RecordFailure records a failed call, tripping the breaker open once
// failureThreshold consecutive failures accumulate (or immediately, if a
// half-open probe fails).
func (b *BreakerSet) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	br := b.get(key)
	switch br.state {
	case BreakerHalfOpen:
		br.state = BreakerOpen
		br.openedAt = time.Now()
	case BreakerClosed:
		br.consecutiveFails++
		if br.consecutiveFails >= b.failureThreshold {
			br.state = BreakerOpen
			br.openedAt = time.Now()
		}
	}
}

// State reports a peer's current breaker state, for status reporting.
func (b *BreakerSet) State(key string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(key).state
}
