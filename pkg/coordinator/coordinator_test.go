package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/beaver"
	"github.com/signaloracle/mpccore/pkg/config"
	"github.com/signaloracle/mpccore/pkg/coordinator"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/session"
	"github.com/signaloracle/mpccore/pkg/shamir"
	"github.com/signaloracle/mpccore/pkg/triple"
	"github.com/signaloracle/mpccore/pkg/wire"
)

// fakePeerClient simulates a peer fleet in-process: each peer's
// beaver.ParticipantState lives in the map below, standing in for a real
// HTTP-driven validator. delayedPeers never respond, modeling scenario
// S6's stuck peer.
type fakePeerClient struct {
	participants map[int]*beaver.ParticipantState
	delayed      map[int]bool
}

func (f *fakePeerClient) Init(ctx context.Context, baseURL string, req wire.InitRequest) (wire.InitResponse, error) {
	return wire.InitResponse{SessionID: req.SessionID, Accepted: true}, nil
}

func (f *fakePeerClient) ComputeGate(ctx context.Context, baseURL string, req wire.ComputeGateRequest) (wire.ComputeGateResponse, error) {
	x := peerXFromURL(baseURL)
	if f.delayed[x] {
		<-ctx.Done()
		return wire.ComputeGateResponse{}, ctx.Err()
	}
	p := f.participants[x]

	if req.GateIdx == wire.FinalGateIdx {
		lastD, lastE := decodeHexPtr(req.PrevOpenedD), decodeHexPtr(req.PrevOpenedE)
		share := p.ComputeOutputShare(lastD, lastE)
		return wire.ComputeGateResponse{SessionID: req.SessionID, GateIdx: req.GateIdx, DValue: wire.Encode(share)}, nil
	}

	var prevD, prevE *field.Element
	if req.PrevOpenedD != nil {
		d := decodeHexPtr(req.PrevOpenedD)
		prevD = &d
	}
	if req.PrevOpenedE != nil {
		e := decodeHexPtr(req.PrevOpenedE)
		prevE = &e
	}
	d, e, err := p.ComputeGate(req.GateIdx, prevD, prevE)
	if err != nil {
		return wire.ComputeGateResponse{}, err
	}
	return wire.ComputeGateResponse{SessionID: req.SessionID, GateIdx: req.GateIdx, DValue: wire.Encode(d), EValue: wire.Encode(e)}, nil
}

func (f *fakePeerClient) Result(ctx context.Context, baseURL string, req wire.ResultRequest) error { return nil }
func (f *fakePeerClient) Abort(ctx context.Context, baseURL string, req wire.AbortRequest) error   { return nil }

func decodeHexPtr(h *wire.HexElement) field.Element {
	e, _ := h.Decode()
	return e
}

func peerXFromURL(baseURL string) int {
	switch baseURL {
	case "https://peer-2":
		return 2
	case "https://peer-3":
		return 3
	}
	return 0
}

// buildFleet splits secret across 3 validators (x=1 self, x=2, x=3) and
// produces fresh Beaver triples, returning the coordinator's own
// ParticipantState plus a fakePeerClient holding the other two.
func buildFleet(t *testing.T, secret field.Element, available []uint8, threshold int) (*beaver.ParticipantState, *fakePeerClient) {
	t.Helper()
	shares, err := shamir.SplitAtPoints(secret, []uint8{1, 2, 3}, threshold)
	require.NoError(t, err)
	shareByX := make(map[uint8]shamir.Share, len(shares))
	for _, s := range shares {
		shareByX[s.X] = s
	}

	nGates := beaver.NumGates(available)
	if nGates == 0 {
		nGates = 1
	}
	triples, err := triple.GenerateDealer(nGates, []uint8{1, 2, 3}, threshold)
	require.NoError(t, err)

	r, err := field.RandomNonzero()
	require.NoError(t, err)
	rShares, err := shamir.SplitAtPoints(r, []uint8{1, 2, 3}, threshold)
	require.NoError(t, err)
	rShareByX := make(map[uint8]field.Element, len(rShares))
	for _, s := range rShares {
		rShareByX[s.X] = s.Y
	}

	buildParticipant := func(x uint8) *beaver.ParticipantState {
		tripleA := make([]field.Element, nGates)
		tripleB := make([]field.Element, nGates)
		tripleC := make([]field.Element, nGates)
		for g, tr := range triples {
			for _, s := range tr.A {
				if s.X == x {
					tripleA[g] = s.Y
				}
			}
			for _, s := range tr.B {
				if s.X == x {
					tripleB[g] = s.Y
				}
			}
			for _, s := range tr.C {
				if s.X == x {
					tripleC[g] = s.Y
				}
			}
		}
		return beaver.NewParticipantState(x, shareByX[x].Y, rShareByX[x], available, tripleA, tripleB, tripleC)
	}

	self := buildParticipant(1)
	fake := &fakePeerClient{
		participants: map[int]*beaver.ParticipantState{
			2: buildParticipant(2),
			3: buildParticipant(3),
		},
		delayed: map[int]bool{},
	}
	return self, fake
}

func testConfig() config.Config {
	return config.Config{
		GatherTimeout:           200 * time.Millisecond,
		CircuitFailureThreshold: 3,
		CircuitRecoveryTimeout:  time.Second,
		CircuitHalfOpenMax:      1,
	}
}

func TestRunDistributedSessionScenarioS1Available(t *testing.T) {
	available := []uint8{3, 5, 7}
	self, fake := buildFleet(t, field.FromUint64(5), available, 2)

	coord := coordinator.New(1, fake, testConfig(), nil)
	coord.SelfParticipant = self

	sess := session.NewSession("sess-s1", "signal-1", []int{3, 5, 7}, 1, []int{1, 2, 3}, 2, session.ModeSemiHonest)
	require.NoError(t, coord.Registry.Create(sess))
	peers := []coordinator.Peer{{X: 2, BaseURL: "https://peer-2"}, {X: 3, BaseURL: "https://peer-3"}}

	err := coord.RunDistributedSession(context.Background(), sess, peers, map[int]wire.InitRequest{2: {}, 3: {}})
	require.NoError(t, err)

	got := coord.Registry.Get(sess.ID)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Available)
	assert.Equal(t, 3, got.Result.ParticipatingValidators)
}

func TestRunDistributedSessionScenarioS2Unavailable(t *testing.T) {
	available := []uint8{1, 2, 3}
	self, fake := buildFleet(t, field.FromUint64(5), available, 2)

	coord := coordinator.New(1, fake, testConfig(), nil)
	coord.SelfParticipant = self

	sess := session.NewSession("sess-s2", "signal-2", []int{1, 2, 3}, 1, []int{1, 2, 3}, 2, session.ModeSemiHonest)
	require.NoError(t, coord.Registry.Create(sess))
	peers := []coordinator.Peer{{X: 2, BaseURL: "https://peer-2"}, {X: 3, BaseURL: "https://peer-3"}}

	err := coord.RunDistributedSession(context.Background(), sess, peers, map[int]wire.InitRequest{2: {}, 3: {}})
	require.NoError(t, err)

	got := coord.Registry.Get(sess.ID)
	require.NotNil(t, got.Result)
	assert.False(t, got.Result.Available)
}

// TestRunDistributedSessionScenarioS6PeerTimeout mirrors scenario S6:
// peer 2 never responds, but self + peer 3 still meet the threshold of
// 2, so the session completes using the remaining participants.
func TestRunDistributedSessionScenarioS6PeerTimeout(t *testing.T) {
	available := []uint8{5}
	self, fake := buildFleet(t, field.FromUint64(5), available, 2)
	fake.delayed[2] = true

	coord := coordinator.New(1, fake, testConfig(), nil)
	coord.SelfParticipant = self

	sess := session.NewSession("sess-s6", "signal-6", []int{5}, 1, []int{1, 2, 3}, 2, session.ModeSemiHonest)
	require.NoError(t, coord.Registry.Create(sess))
	peers := []coordinator.Peer{{X: 2, BaseURL: "https://peer-2"}, {X: 3, BaseURL: "https://peer-3"}}

	err := coord.RunDistributedSession(context.Background(), sess, peers, map[int]wire.InitRequest{2: {}, 3: {}})
	require.NoError(t, err)

	got := coord.Registry.Get(sess.ID)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Available)
	assert.Equal(t, 2, got.Result.ParticipatingValidators, "peer 2's timeout must drop it, leaving self+peer3")

	breakerKey := coordinator.PeerKey("https://peer-2")
	assert.Equal(t, coordinator.BreakerClosed, coord.Breakers.State(breakerKey),
		"a single failure below the threshold must not yet open the breaker")
}
