// Package coordinator implements the distributed session coordinator
// (component H): peer discovery, session creation, the gate-by-gate HTTP
// drive across peers with retry and circuit-breaking, and the dev-only
// single-validator fallback. It owns no cryptography of its own; it
// drives pkg/beaver session state and pkg/session's registry.
package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signaloracle/mpccore/pkg/beaver"
	"github.com/signaloracle/mpccore/pkg/config"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
	"github.com/signaloracle/mpccore/pkg/session"
	"github.com/signaloracle/mpccore/pkg/shamir"
	"github.com/signaloracle/mpccore/pkg/sharestore"
	"github.com/signaloracle/mpccore/pkg/triple"
	"github.com/signaloracle/mpccore/pkg/wire"
)

// Coordinator drives MPC sessions across a set of discovered peers. The
// coordinator is itself a validator and holds a Shamir share of the
// secret, so it contributes its own (d_i, e_i) to every gate locally
// (spec.md §4.H step 4) rather than calling itself over HTTP.
type Coordinator struct {
	Registry        *session.Registry
	Client          PeerClient
	Breakers        *BreakerSet
	Config          config.Config
	Log             *zap.Logger
	SelfX           int
	SelfParticipant *beaver.ParticipantState
}

// New builds a Coordinator from its dependencies.
func New(selfX int, client PeerClient, cfg config.Config, log *zap.Logger) *Coordinator {
	return &Coordinator{
		Registry: session.NewRegistry(),
		Client:   client,
		Breakers: NewBreakerSet(cfg.CircuitFailureThreshold, cfg.CircuitRecoveryTimeout, cfg.CircuitHalfOpenMax),
		Config:   cfg,
		Log:      log,
		SelfX:    selfX,
	}
}

// NewSessionID generates a session ID: 128 bits of randomness run
// through blake3 and hex-encoded, matching the session_id wire grammar.
func NewSessionID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", mpcerr.Wrap(mpcerr.FieldError, "generating session id randomness", err)
	}
	digest := blake3.Sum256(raw[:])
	return hex.EncodeToString(digest[:16]), nil
}

// CreateAndRun is the coordinator-local, single-process path: it plays
// both coordinator and every participant in one call, using pkg/beaver's
// Session directly rather than driving peers over HTTP. It exists for
// the "simulate" CLI path and tests; Config.AllowSimulationMode gates
// whether callers may use it against real validator traffic (this
// function does not check the switch itself).
func CreateAndRun(cfg config.Config, secret field.Element, n, threshold int, available []uint8) (beaver.Result, error) {
	shares, err := shamir.Split(secret, n, threshold)
	if err != nil {
		return beaver.Result{}, err
	}
	xs := make([]uint8, len(shares))
	for i, sh := range shares {
		xs[i] = sh.X
	}
	nGates := beaver.NumGates(available)
	if nGates == 0 {
		nGates = 1
	}
	triples, err := generateTriples(cfg, nGates, xs, threshold)
	if err != nil {
		return beaver.Result{}, err
	}
	sess := beaver.NewSession(available, shares, triples, threshold)
	return sess.Run()
}

// CreateSession performs spec.md §4.H's "create session" step: discover
// reachable peers from the metagraph, generate a fresh session ID,
// provision this round's random mask and Beaver triples (via
// generateTriples, itself gated by cfg.UseNetworkOT/AllowDealerFallback),
// and build the per-peer wire.InitRequest values RunDistributedSession
// broadcasts. It also looks up the coordinator's own secret share from
// shares and builds c.SelfParticipant, so the returned session is ready
// to hand straight to RunDistributedSession. Semi-honest InitRequests
// never carry a secret share on the wire — every peer looks its own up
// the same way, from its own shares store, before /mpc/init arrives.
func (c *Coordinator) CreateSession(shares *sharestore.Store, signalID string, available []int, metagraph []Peer, threshold int) (*session.Session, []Peer, map[int]wire.InitRequest, error) {
	peers, err := DiscoverPeers(metagraph, c.SelfX)
	if err != nil {
		return nil, nil, nil, err
	}

	participantXs := make([]uint8, 0, len(peers)+1)
	participantXInts := make([]int, 0, len(peers)+1)
	participantXs = append(participantXs, uint8(c.SelfX))
	participantXInts = append(participantXInts, c.SelfX)
	for _, p := range peers {
		participantXs = append(participantXs, uint8(p.X))
		participantXInts = append(participantXInts, p.X)
	}

	id, err := NewSessionID()
	if err != nil {
		return nil, nil, nil, err
	}

	availU8 := make([]uint8, len(available))
	for i, a := range available {
		availU8[i] = uint8(a)
	}
	nGates := beaver.NumGates(availU8)
	if nGates == 0 {
		nGates = 1
	}

	triples, err := generateTriples(c.Config, nGates, participantXs, threshold)
	if err != nil {
		return nil, nil, nil, err
	}

	r, err := field.RandomNonzero()
	if err != nil {
		return nil, nil, nil, err
	}
	rShares, err := shamir.SplitAtPoints(r, participantXs, threshold)
	if err != nil {
		return nil, nil, nil, err
	}
	rByX := make(map[uint8]field.Element, len(rShares))
	for _, s := range rShares {
		rByX[s.X] = s.Y
	}

	initReqs := make(map[int]wire.InitRequest, len(peers))
	for _, p := range peers {
		px := uint8(p.X)
		initReqs[p.X] = wire.InitRequest{
			SessionID:        id,
			SignalID:         signalID,
			AvailableIndices: available,
			CoordinatorX:     c.SelfX,
			ParticipantXs:    participantXInts,
			Threshold:        threshold,
			TripleShares:     tripleSharesFor(triples, px),
			RShareY:          wire.Encode(rByX[px]),
		}
	}

	entry := shares.Get(signalID)
	if entry == nil {
		return nil, nil, nil, mpcerr.New(mpcerr.SessionExpired, "no local share for signal_id")
	}
	selfA, selfB, selfC := tripleComponentsFor(triples, uint8(c.SelfX))
	c.SelfParticipant = beaver.NewParticipantState(uint8(c.SelfX), field.FromBytes(entry.Share), rByX[uint8(c.SelfX)], availU8, selfA, selfB, selfC)

	sess := session.NewSession(id, signalID, available, c.SelfX, participantXInts, threshold, session.ModeSemiHonest)
	sess.PlainTriples = triples
	if err := c.Registry.Create(sess); err != nil {
		return nil, nil, nil, err
	}

	return sess, peers, initReqs, nil
}

// tripleSharesFor extracts one participant's wire-encoded Beaver-triple
// shares, one TripleShareSet per gate, from a freshly generated batch.
func tripleSharesFor(triples []triple.Triple, x uint8) []wire.TripleShareSet {
	a, b, c := tripleComponentsFor(triples, x)
	out := make([]wire.TripleShareSet, len(triples))
	for i := range triples {
		out[i] = wire.TripleShareSet{A: wire.Encode(a[i]), B: wire.Encode(b[i]), C: wire.Encode(c[i])}
	}
	return out
}

// tripleComponentsFor extracts one participant's plain A/B/C shares
// across every gate in triples, in gate order, for building a
// beaver.ParticipantState.
func tripleComponentsFor(triples []triple.Triple, x uint8) (a, b, c []field.Element) {
	a = make([]field.Element, len(triples))
	b = make([]field.Element, len(triples))
	c = make([]field.Element, len(triples))
	for g, t := range triples {
		for _, s := range t.A {
			if s.X == x {
				a[g] = s.Y
			}
		}
		for _, s := range t.B {
			if s.X == x {
				b[g] = s.Y
			}
		}
		for _, s := range t.C {
			if s.X == x {
				c[g] = s.Y
			}
		}
	}
	return
}

// RunDistributedSession drives a real multi-peer session over HTTP: it
// broadcasts init, then drives every gate in strict order, bounding each
// round at GatherTimeout so a single stuck peer cannot stall the
// protocol (testable scenario S6). Peers that fail to respond within the
// round are dropped for the rest of this session; if fewer than
// threshold participants remain, the session resolves to
// unavailable/participating<threshold rather than erroring.
func (c *Coordinator) RunDistributedSession(ctx context.Context, sess *session.Session, peers []Peer, initReqs map[int]wire.InitRequest) error {
	live := c.broadcastInit(ctx, peers, initReqs)
	if c.participantCount(live) < sess.Threshold {
		c.Registry.Mutate(sess.ID, func(s *session.Session) {
			s.SetResult(beaver.Result{Available: false, ParticipatingValidators: c.participantCount(live)})
		})
		return nil
	}

	var prevD, prevE *field.Element
	totalGates := sess.TotalGates()
	for gate := 0; gate < totalGates; gate++ {
		responses, gateErr := c.driveGate(ctx, live, sess.ID, gate, prevD, prevE)
		if gateErr != nil {
			c.abortSession(ctx, sess, peers, gateErr.Error(), gate)
			return gateErr
		}
		responded := make(map[int]bool, len(responses))
		for _, r := range responses {
			responded[r.PeerX] = true
		}
		stillLive := live[:0:0]
		for _, p := range live {
			if responded[p.X] {
				stillLive = append(stillLive, p)
			}
		}
		live = stillLive
		if self, err := c.selfGateResponse(gate, prevD, prevE); err != nil {
			return err
		} else if self != nil {
			responses = append(responses, *self)
		}
		if len(responses) < sess.Threshold {
			c.Registry.Mutate(sess.ID, func(s *session.Session) {
				s.SetResult(beaver.Result{Available: false, ParticipatingValidators: len(responses)})
			})
			return nil
		}
		d, e, err := reconstructGate(responses)
		if err != nil {
			return err
		}
		prevD, prevE = &d, &e
		c.Registry.Mutate(sess.ID, func(s *session.Session) {
			s.AdvanceGate(gate, session.OpenedGate{D: d, E: e})
		})
	}

	outputResponses, err := c.driveGate(ctx, live, sess.ID, wire.FinalGateIdx, prevD, prevE)
	if err != nil {
		return err
	}
	if c.SelfParticipant != nil {
		selfShare := c.SelfParticipant.ComputeOutputShare(*prevD, *prevE)
		outputResponses = append(outputResponses, gateResponse{PeerX: c.SelfX, D: selfShare})
	}
	if len(outputResponses) < sess.Threshold {
		c.Registry.Mutate(sess.ID, func(s *session.Session) {
			s.SetResult(beaver.Result{Available: false, ParticipatingValidators: len(outputResponses)})
		})
		return nil
	}

	outputShares := make([]shamir.Share, len(outputResponses))
	for i, r := range outputResponses {
		outputShares[i] = shamir.Share{X: uint8(r.PeerX), Y: r.D}
	}
	finalValue, err := shamir.Reconstruct(outputShares, len(outputShares))
	if err != nil {
		return err
	}
	result := beaver.Result{Available: finalValue.IsZero(), ParticipatingValidators: len(outputResponses)}
	c.Registry.Mutate(sess.ID, func(s *session.Session) {
		s.SetResult(result)
	})
	c.broadcastResult(ctx, sess.ID, sess.SignalID, result, peers)
	return nil
}

// participantCount is how many validators (self plus the given live
// peers) would take part if a round succeeded right now.
func (c *Coordinator) participantCount(live []Peer) int {
	n := len(live)
	if c.SelfParticipant != nil {
		n++
	}
	return n
}

// selfGateResponse computes the coordinator's own (d_i, e_i) for gate
// locally, since the coordinator is itself a validator.
func (c *Coordinator) selfGateResponse(gate int, prevD, prevE *field.Element) (*gateResponse, error) {
	if c.SelfParticipant == nil {
		return nil, nil
	}
	d, e, err := c.SelfParticipant.ComputeGate(gate, prevD, prevE)
	if err != nil {
		return nil, err
	}
	return &gateResponse{PeerX: c.SelfX, D: d, E: e}, nil
}

// broadcastResult sends /mpc/result to every peer so they can clear their
// per-session state, per spec.md §4.H step 6.
func (c *Coordinator) broadcastResult(ctx context.Context, sessionID, signalID string, result beaver.Result, peers []Peer) {
	req := wire.ResultRequest{
		SessionID:               sessionID,
		SignalID:                signalID,
		Available:               result.Available,
		ParticipatingValidators: result.ParticipatingValidators,
	}
	gctx, cancel := context.WithTimeout(ctx, c.Config.GatherTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(gctx)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			_ = c.Client.Result(gctx, p.BaseURL, req)
			return nil
		})
	}
	_ = g.Wait()
}

// generateTriples produces the Beaver triples a session needs, selecting
// between network-OT and the trusted dealer per cfg via triple.Select —
// the same selection CreateSession uses for real distributed sessions and
// CreateAndRun uses for the single-process simulation path.
func generateTriples(cfg config.Config, count int, xs []uint8, threshold int) ([]triple.Triple, error) {
	return triple.Select(cfg, count, xs, threshold)
}

type gateResponse struct {
	PeerX int
	D     field.Element
	E     field.Element
}

// broadcastInit sends /mpc/init to every peer concurrently, bounded by
// GatherTimeout, and returns the peers who accepted.
func (c *Coordinator) broadcastInit(ctx context.Context, peers []Peer, reqs map[int]wire.InitRequest) []Peer {
	gctx, cancel := context.WithTimeout(ctx, c.Config.GatherTimeout)
	defer cancel()

	type result struct {
		peer     Peer
		accepted bool
	}
	results := make([]result, len(peers))
	g, gctx := errgroup.WithContext(gctx)
	for i, p := range peers {
		i, p := i, p
		g.Go(func() error {
			key := PeerKey(p.BaseURL)
			if err := c.Breakers.Allow(key); err != nil {
				return nil
			}
			resp, err := c.Client.Init(gctx, p.BaseURL, reqs[p.X])
			if err != nil {
				c.Breakers.RecordFailure(key)
				return nil
			}
			c.Breakers.RecordSuccess(key)
			results[i] = result{peer: p, accepted: resp.Accepted}
			return nil
		})
	}
	_ = g.Wait()

	live := make([]Peer, 0, len(peers))
	for _, r := range results {
		if r.accepted {
			live = append(live, r.peer)
		}
	}
	return live
}

// driveGate sends /mpc/compute_gate to every live peer concurrently,
// bounded by GatherTimeout, and returns the responses of peers that
// answered in time.
func (c *Coordinator) driveGate(ctx context.Context, peers []Peer, sessionID string, gate int, prevD, prevE *field.Element) ([]gateResponse, error) {
	gctx, cancel := context.WithTimeout(ctx, c.Config.GatherTimeout)
	defer cancel()

	var prevDHex, prevEHex *wire.HexElement
	if prevD != nil {
		h := wire.Encode(*prevD)
		prevDHex = &h
	}
	if prevE != nil {
		h := wire.Encode(*prevE)
		prevEHex = &h
	}

	req := wire.ComputeGateRequest{SessionID: sessionID, GateIdx: gate, PrevOpenedD: prevDHex, PrevOpenedE: prevEHex}

	results := make([]*gateResponse, len(peers))
	g, gctx := errgroup.WithContext(gctx)
	for i, p := range peers {
		i, p := i, p
		g.Go(func() error {
			key := PeerKey(p.BaseURL)
			if err := c.Breakers.Allow(key); err != nil {
				return nil
			}
			resp, err := c.Client.ComputeGate(gctx, p.BaseURL, req)
			if err != nil {
				c.Breakers.RecordFailure(key)
				return nil
			}
			c.Breakers.RecordSuccess(key)
			d, derr := resp.DValue.Decode()
			e, eerr := resp.EValue.Decode()
			if derr != nil || eerr != nil {
				return nil
			}
			results[i] = &gateResponse{PeerX: p.X, D: d, E: e}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]gateResponse, 0, len(peers))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func reconstructGate(responses []gateResponse) (d, e field.Element, err error) {
	dShares := make([]shamir.Share, len(responses))
	eShares := make([]shamir.Share, len(responses))
	for i, r := range responses {
		dShares[i] = shamir.Share{X: uint8(r.PeerX), Y: r.D}
		eShares[i] = shamir.Share{X: uint8(r.PeerX), Y: r.E}
	}
	d, err = shamir.Reconstruct(dShares, len(dShares))
	if err != nil {
		return field.Element{}, field.Element{}, err
	}
	e, err = shamir.Reconstruct(eShares, len(eShares))
	if err != nil {
		return field.Element{}, field.Element{}, err
	}
	return d, e, nil
}

func (c *Coordinator) abortSession(ctx context.Context, sess *session.Session, peers []Peer, reason string, gate int) {
	c.Registry.Mutate(sess.ID, func(s *session.Session) {
		s.Abort(reason, gate)
	})
	abortReq := wire.AbortRequest{SessionID: sess.ID, Reason: reason, GateIdx: gate}
	gctx, cancel := context.WithTimeout(ctx, c.Config.GatherTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(gctx)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			_ = c.Client.Abort(gctx, p.BaseURL, abortReq)
			return nil
		})
	}
	_ = g.Wait()
	if c.Log != nil {
		c.Log.Warn("session aborted", zap.String("session_id", sess.ID), zap.String("reason", reason), zap.Int("gate", gate))
	}
}

// StartCleanupLoop runs ReapExpired on Registry every CleanupInterval
// until ctx is cancelled.
func (c *Coordinator) StartCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(c.Config.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := c.Registry.ReapExpired(c.Config.SessionTTL)
				if n > 0 && c.Log != nil {
					c.Log.Info("reaped expired sessions", zap.Int("count", n))
				}
			}
		}
	}()
}

// DebugSnapshot is a CBOR-marshalable view of a session for diagnostics.
type DebugSnapshot struct {
	ID          string
	SignalID    string
	State       string
	CurrentGate int
	TotalGates  int
}

// Snapshot serializes a session's debug-visible state as CBOR.
func Snapshot(s *session.Session) ([]byte, error) {
	snap := DebugSnapshot{
		ID:          s.ID,
		SignalID:    s.SignalID,
		State:       string(s.State),
		CurrentGate: s.CurrentGate,
		TotalGates:  s.TotalGates(),
	}
	out, err := cbor.Marshal(snap)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.FieldError, "marshaling session snapshot", err)
	}
	return out, nil
}
