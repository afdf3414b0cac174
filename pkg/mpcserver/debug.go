package mpcserver

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// DebugSnapshot is a CBOR-marshalable view of one peer session,
// mirroring pkg/coordinator.DebugSnapshot on the server side.
type DebugSnapshot struct {
	SignalID    string
	State       string
	GatesDone   int
	TotalGates  int
	TotalPeers  int
}

// Snapshot serializes session id's current peer-side state as CBOR, or
// returns an error if the session is unknown.
func (s *Server) Snapshot(sessionID string) ([]byte, error) {
	ps := s.Sessions.get(sessionID)
	if ps == nil {
		return nil, mpcerr.ErrSessionNotFound
	}
	gatesDone := 0
	if ps.SemiHonest != nil {
		gatesDone = ps.SemiHonest.GatesCompleted()
	} else if ps.Auth != nil {
		gatesDone = ps.Auth.GatesCompleted()
	}
	snap := DebugSnapshot{
		SignalID:   ps.SignalID,
		State:      string(ps.State),
		GatesDone:  gatesDone,
		TotalGates: ps.TotalGates,
		TotalPeers: ps.TotalPeers,
	}
	out, err := cbor.Marshal(snap)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.FieldError, "marshaling peer session snapshot", err)
	}
	return out, nil
}
