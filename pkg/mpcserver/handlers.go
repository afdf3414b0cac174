package mpcserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/signaloracle/mpccore/pkg/beaver"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
	"github.com/signaloracle/mpccore/pkg/session"
	"github.com/signaloracle/mpccore/pkg/sharestore"
	"github.com/signaloracle/mpccore/pkg/spdz"
	"github.com/signaloracle/mpccore/pkg/wire"
)

// Server drives one validator's side of the /mpc/* wire protocol. It owns
// no cryptography of its own, the same way pkg/coordinator.Coordinator
// doesn't: it decodes the wire DTOs, drives the matching
// beaver.ParticipantState / spdz.ParticipantState, and re-encodes the
// result, leaving the actual multiplication math to those packages.
type Server struct {
	SelfX    int
	Shares   *sharestore.Store
	Sessions *Store
	Log      *zap.Logger
}

// NewServer builds a Server for the validator identified by selfX,
// backed by shares (this validator's secret-share store, component I)
// and a fresh peer-session Store.
func NewServer(selfX int, shares *sharestore.Store, log *zap.Logger) *Server {
	return &Server{SelfX: selfX, Shares: shares, Sessions: NewStore(), Log: log}
}

// Router builds the chi mux exposing this server's wire surface: the six
// endpoints every session, semi-honest or authenticated, needs. The
// network-OT sub-protocol (/mpc/ot/*) has no HTTP handlers yet —
// triple.GenerateNetworkOT already runs its 2-party exchange in-process
// during CreateSession, so no caller drives it over the wire today; see
// DESIGN.md's Open Question notes before adding routes for it.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/mpc/init", s.HandleInit)
	r.Post("/mpc/compute_gate", s.HandleComputeGate)
	r.Post("/mpc/result", s.HandleResult)
	r.Post("/mpc/abort", s.HandleAbort)
	r.Get("/mpc/{session_id}/status", s.HandleStatus)
	r.Get("/signal/{signal_id}/share_info", s.HandleShareInfo)
	return r
}

// StartCleanupLoop reaps sessions older than ttl every interval, mirroring
// pkg/coordinator.Coordinator.StartCleanupLoop on the peer side.
func (s *Server) StartCleanupLoop(interval, ttl time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n := s.Sessions.ReapExpired(ttl)
				if n > 0 && s.Log != nil {
					s.Log.Info("reaped expired peer sessions", zap.Int("count", n))
				}
			}
		}
	}()
	return func() { close(done) }
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps an mpcerr.Kind to the HTTP status the wire protocol
// expects: malformed/out-of-order requests are 400s, an unknown session
// is 404, a MAC failure is 409, everything else (field bugs,
// unclassified errors) is a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := ""
	switch {
	case mpcerr.Is(err, mpcerr.InvalidInput), mpcerr.Is(err, mpcerr.InsufficientShares):
		status = http.StatusBadRequest
		kind = mpcerr.InvalidInput.String()
	case mpcerr.Is(err, mpcerr.SessionExpired):
		status = http.StatusNotFound
		kind = mpcerr.SessionExpired.String()
	case mpcerr.Is(err, mpcerr.MacFailure):
		status = http.StatusConflict
		kind = mpcerr.MacFailure.String()
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, mpcerr.Wrap(mpcerr.InvalidInput, "malformed request body", err))
		return false
	}
	return true
}

// HandleInit implements POST /mpc/init, spec.md §4.H step 3: it accepts
// one session's worth of per-gate triple shares and random-mask share
// and builds this validator's ParticipantState. Semi-honest requests
// never carry the secret share itself; it is looked up from Shares by
// signal_id, matching component I's read-only interface.
func (s *Server) HandleInit(w http.ResponseWriter, r *http.Request) {
	var req wire.InitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := wire.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	if err := wire.ValidateAvailableIndices(req.AvailableIndices); err != nil {
		writeError(w, err)
		return
	}

	nGates := len(req.AvailableIndices)
	if nGates == 0 {
		nGates = 1
	}
	availU8 := make([]uint8, len(req.AvailableIndices))
	for i, a := range req.AvailableIndices {
		availU8[i] = uint8(a)
	}

	ps := &peerSession{
		SignalID:   req.SignalID,
		TotalGates: nGates,
		TotalPeers: len(req.ParticipantXs),
		State:      wire.StatusRound1Collecting,
		CreatedAt:  time.Now(),
	}

	if req.Authenticated {
		mode, err := s.buildAuthParticipant(req, availU8)
		if err != nil {
			writeError(w, err)
			return
		}
		ps.Mode = session.ModeAuthenticated
		ps.Auth = mode
	} else {
		participant, err := s.buildSemiHonestParticipant(req, availU8)
		if err != nil {
			writeError(w, err)
			return
		}
		ps.Mode = session.ModeSemiHonest
		ps.SemiHonest = participant
	}

	if err := s.Sessions.create(req.SessionID, ps); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.InitResponse{SessionID: req.SessionID, Accepted: true})
}

func (s *Server) buildSemiHonestParticipant(req wire.InitRequest, available []uint8) (*beaver.ParticipantState, error) {
	entry := s.Shares.Get(req.SignalID)
	if entry == nil {
		return nil, mpcerr.New(mpcerr.SessionExpired, "no local share for signal_id")
	}
	rShareY, err := req.RShareY.Decode()
	if err != nil {
		return nil, err
	}
	tripleA := make([]field.Element, len(req.TripleShares))
	tripleB := make([]field.Element, len(req.TripleShares))
	tripleC := make([]field.Element, len(req.TripleShares))
	for i, ts := range req.TripleShares {
		a, err := ts.A.Decode()
		if err != nil {
			return nil, err
		}
		b, err := ts.B.Decode()
		if err != nil {
			return nil, err
		}
		c, err := ts.C.Decode()
		if err != nil {
			return nil, err
		}
		tripleA[i], tripleB[i], tripleC[i] = a, b, c
	}
	secretShareY := field.FromBytes(entry.Share)
	return beaver.NewParticipantState(uint8(s.SelfX), secretShareY, rShareY, available, tripleA, tripleB, tripleC), nil
}

func decodeAuthValue(v wire.AuthValue, x uint8) (spdz.AuthShare, error) {
	y, err := v.Y.Decode()
	if err != nil {
		return spdz.AuthShare{}, err
	}
	mac, err := v.Mac.Decode()
	if err != nil {
		return spdz.AuthShare{}, err
	}
	return spdz.AuthShare{X: x, Y: y, Mac: mac}, nil
}

func (s *Server) buildAuthParticipant(req wire.InitRequest, available []uint8) (*spdz.ParticipantState, error) {
	x := uint8(s.SelfX)
	secretShare, err := decodeAuthValue(req.AuthSecretShare, x)
	if err != nil {
		return nil, err
	}
	rShare, err := decodeAuthValue(req.AuthRShare, x)
	if err != nil {
		return nil, err
	}
	alphaShare, err := req.AlphaShare.Decode()
	if err != nil {
		return nil, err
	}
	tripleA := make([]spdz.AuthShare, len(req.AuthTripleShares))
	tripleB := make([]spdz.AuthShare, len(req.AuthTripleShares))
	tripleC := make([]spdz.AuthShare, len(req.AuthTripleShares))
	for i, ts := range req.AuthTripleShares {
		a, err := decodeAuthValue(ts.A, x)
		if err != nil {
			return nil, err
		}
		b, err := decodeAuthValue(ts.B, x)
		if err != nil {
			return nil, err
		}
		c, err := decodeAuthValue(ts.C, x)
		if err != nil {
			return nil, err
		}
		tripleA[i], tripleB[i], tripleC[i] = a, b, c
	}
	return spdz.NewParticipantState(x, secretShare, rShare, alphaShare, available, tripleA, tripleB, tripleC), nil
}

// HandleComputeGate implements POST /mpc/compute_gate, driving this
// validator's ParticipantState one gate forward (or, at
// wire.FinalGateIdx, producing its final output share).
func (s *Server) HandleComputeGate(w http.ResponseWriter, r *http.Request) {
	var req wire.ComputeGateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := wire.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	ps := s.Sessions.get(req.SessionID)
	if ps == nil {
		writeError(w, mpcerr.ErrSessionNotFound)
		return
	}
	aborted := false
	_ = s.Sessions.mutate(req.SessionID, func(ps *peerSession) {
		aborted = ps.State == wire.StatusAborted
	})
	if aborted {
		writeError(w, mpcerr.ErrSessionAborted)
		return
	}

	var prevD, prevE *field.Element
	if req.PrevOpenedD != nil {
		d, err := req.PrevOpenedD.Decode()
		if err != nil {
			writeError(w, err)
			return
		}
		prevD = &d
	}
	if req.PrevOpenedE != nil {
		e, err := req.PrevOpenedE.Decode()
		if err != nil {
			writeError(w, err)
			return
		}
		prevE = &e
	}

	if ps.Mode == session.ModeAuthenticated {
		s.handleAuthGate(w, req, ps, prevD, prevE)
		return
	}
	s.handleSemiHonestGate(w, req, ps, prevD, prevE)
}

func (s *Server) handleSemiHonestGate(w http.ResponseWriter, req wire.ComputeGateRequest, ps *peerSession, prevD, prevE *field.Element) {
	if req.GateIdx == wire.FinalGateIdx {
		if prevD == nil || prevE == nil {
			writeError(w, mpcerr.New(mpcerr.InvalidInput, "final gate requires the last opened (d,e)"))
			return
		}
		share := ps.SemiHonest.ComputeOutputShare(*prevD, *prevE)
		writeJSON(w, http.StatusOK, wire.ComputeGateResponse{SessionID: req.SessionID, GateIdx: req.GateIdx, DValue: wire.Encode(share)})
		return
	}
	d, e, err := ps.SemiHonest.ComputeGate(req.GateIdx, prevD, prevE)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ComputeGateResponse{SessionID: req.SessionID, GateIdx: req.GateIdx, DValue: wire.Encode(d), EValue: wire.Encode(e)})
}

func (s *Server) handleAuthGate(w http.ResponseWriter, req wire.ComputeGateRequest, ps *peerSession, prevD, prevE *field.Element) {
	if req.GateIdx == wire.FinalGateIdx {
		if prevD == nil || prevE == nil {
			writeError(w, mpcerr.New(mpcerr.InvalidInput, "final gate requires the last opened (d,e)"))
			return
		}
		share := ps.Auth.ComputeOutputShare(*prevD, *prevE)
		dMac := wire.Encode(share.Mac)
		writeJSON(w, http.StatusOK, wire.ComputeGateResponse{SessionID: req.SessionID, GateIdx: req.GateIdx, DValue: wire.Encode(share.Y), DMac: &dMac})
		return
	}
	gs, err := ps.Auth.ComputeGate(req.GateIdx, prevD, prevE)
	if err != nil {
		writeError(w, err)
		return
	}
	dMac := wire.Encode(gs.D.Mac)
	eMac := wire.Encode(gs.E.Mac)
	writeJSON(w, http.StatusOK, wire.ComputeGateResponse{
		SessionID: req.SessionID, GateIdx: req.GateIdx,
		DValue: wire.Encode(gs.D.Y), EValue: wire.Encode(gs.E.Y),
		DMac: &dMac, EMac: &eMac,
	})
}

// HandleResult implements POST /mpc/result: the coordinator's final
// broadcast telling every peer the session is done, per spec.md §4.H
// step 6. A peer has nothing left to compute once it arrives; it just
// records the outcome and lets the cleanup loop reclaim the state.
func (s *Server) HandleResult(w http.ResponseWriter, r *http.Request) {
	var req wire.ResultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := wire.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	available := req.Available
	err := s.Sessions.mutate(req.SessionID, func(ps *peerSession) {
		ps.State = wire.StatusComplete
		ps.Available = &available
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAbort implements POST /mpc/abort: the coordinator signals that a
// MAC check failed or a peer misbehaved, so this validator must stop
// answering further compute_gate calls for the session.
func (s *Server) HandleAbort(w http.ResponseWriter, r *http.Request) {
	var req wire.AbortRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := wire.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	err := s.Sessions.mutate(req.SessionID, func(ps *peerSession) {
		ps.State = wire.StatusAborted
		ps.AbortReason = req.Reason
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if s.Log != nil {
		s.Log.Warn("peer received session abort", zap.String("session_id", req.SessionID), zap.String("reason", req.Reason))
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus implements GET /mpc/{session_id}/status from this
// validator's own point of view: participants_responded carries how many
// of its gates it has answered, total_participants the session's peer
// count, and the final result is included once /mpc/result has arrived.
// A validator only ever sees its own progress, never another
// participant's — the coordinator's pkg/session.Registry is the only
// place a full cross-participant view exists.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	ps := s.Sessions.get(id)
	if ps == nil {
		writeError(w, mpcerr.ErrSessionNotFound)
		return
	}
	gatesDone := 0
	if ps.SemiHonest != nil {
		gatesDone = ps.SemiHonest.GatesCompleted()
	} else if ps.Auth != nil {
		gatesDone = ps.Auth.GatesCompleted()
	}
	writeJSON(w, http.StatusOK, wire.StatusResponse{
		Status:                ps.State,
		ParticipantsResponded: gatesDone,
		TotalParticipants:     ps.TotalPeers,
		Available:             ps.Available,
	})
}

// HandleShareInfo implements GET /signal/{id}/share_info (component I):
// which Shamir x-coordinate this validator holds for a signal, never the
// share value itself.
func (s *Server) HandleShareInfo(w http.ResponseWriter, r *http.Request) {
	signalID := chi.URLParam(r, "signal_id")
	info, err := s.Shares.ShareInfo(signalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ShareInfoResponse{SignalID: signalID, ShareX: info.X})
}
