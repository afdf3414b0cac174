// Package wire defines the JSON message types exchanged between the
// coordinator and its peers (component H's wire protocol) and the
// validation rules every inbound message must pass before it touches
// session state.
package wire

import (
	"regexp"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// sessionIDPattern matches spec.md's session_id grammar.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// ValidateSessionID rejects malformed session IDs before they ever reach
// the session registry.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return mpcerr.New(mpcerr.InvalidInput, "session_id does not match required pattern")
	}
	return nil
}

// ValidateXCoord rejects x-coordinates outside [1, 255].
func ValidateXCoord(x int) error {
	if x < 1 || x > 255 {
		return mpcerr.New(mpcerr.InvalidInput, "x-coordinate out of range [1,255]")
	}
	return nil
}

// ValidateAvailableIndices rejects available-set indices outside [1, 10]
// and rejects duplicates.
func ValidateAvailableIndices(indices []int) error {
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 1 || i > 10 {
			return mpcerr.New(mpcerr.InvalidInput, "available index outside [1,10]")
		}
		if seen[i] {
			return mpcerr.New(mpcerr.InvalidInput, "duplicate available index")
		}
		seen[i] = true
	}
	return nil
}

// HexElement is a field element on the wire: hex-encoded, reduced mod p.
type HexElement string

// Encode converts a field element to its wire representation.
func Encode(e field.Element) HexElement { return HexElement(e.Hex()) }

// Decode parses a wire field element, validating it is parseable mod p.
func (h HexElement) Decode() (field.Element, error) {
	e, err := field.FromHex(string(h))
	if err != nil {
		return field.Element{}, mpcerr.Wrap(mpcerr.InvalidInput, "malformed hex field element", err)
	}
	return e, nil
}

// AuthValue is the wire form of an spdz.AuthShare's (y, mac) pair.
type AuthValue struct {
	Y   HexElement `json:"y"`
	Mac HexElement `json:"mac"`
}

// TripleShareSet is the wire form of one participant's Beaver-triple
// shares for one gate, in semi-honest mode.
type TripleShareSet struct {
	A HexElement `json:"a"`
	B HexElement `json:"b"`
	C HexElement `json:"c"`
}

// AuthTripleShareSet is the authenticated-mode equivalent.
type AuthTripleShareSet struct {
	A AuthValue `json:"a"`
	B AuthValue `json:"b"`
	C AuthValue `json:"c"`
}

// InitRequest is the body of POST /mpc/init.
type InitRequest struct {
	SessionID         string               `json:"session_id"`
	SignalID          string               `json:"signal_id"`
	AvailableIndices  []int                `json:"available_indices"`
	CoordinatorX      int                  `json:"coordinator_x"`
	ParticipantXs     []int                `json:"participant_xs"`
	Threshold         int                  `json:"threshold"`
	Authenticated     bool                 `json:"authenticated"`
	TripleShares      []TripleShareSet     `json:"triple_shares,omitempty"`
	RShareY           HexElement           `json:"r_share_y,omitempty"`
	AuthTripleShares  []AuthTripleShareSet `json:"auth_triple_shares,omitempty"`
	AlphaShare        HexElement           `json:"alpha_share,omitempty"`
	AuthRShare        AuthValue            `json:"auth_r_share,omitempty"`
	AuthSecretShare   AuthValue            `json:"auth_secret_share,omitempty"`
}

// InitResponse is the body of the POST /mpc/init response.
type InitResponse struct {
	SessionID string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
	Message   string `json:"message,omitempty"`
}

// ComputeGateRequest is the body of POST /mpc/compute_gate.
type ComputeGateRequest struct {
	SessionID  string      `json:"session_id"`
	GateIdx    int         `json:"gate_idx"`
	PrevOpenedD *HexElement `json:"prev_opened_d,omitempty"`
	PrevOpenedE *HexElement `json:"prev_opened_e,omitempty"`
}

// FinalGateIdx is the sentinel gate index used to request a participant's
// final output share once the last real gate has been opened.
const FinalGateIdx = -1

// ComputeGateResponse is the body of the POST /mpc/compute_gate response.
type ComputeGateResponse struct {
	SessionID string      `json:"session_id"`
	GateIdx   int         `json:"gate_idx"`
	DValue    HexElement  `json:"d_value"`
	EValue    HexElement  `json:"e_value"`
	DMac      *HexElement `json:"d_mac,omitempty"`
	EMac      *HexElement `json:"e_mac,omitempty"`
}

// ResultRequest is the body of POST /mpc/result.
type ResultRequest struct {
	SessionID              string `json:"session_id"`
	SignalID               string `json:"signal_id"`
	Available              bool   `json:"available"`
	ParticipatingValidators int   `json:"participating_validators"`
}

// AbortRequest is the body of POST /mpc/abort.
type AbortRequest struct {
	SessionID         string `json:"session_id"`
	Reason            string `json:"reason"`
	GateIdx           int    `json:"gate_idx"`
	OffendingValidatorX *int `json:"offending_validator_x,omitempty"`
}

// Status is a session's lifecycle state, as reported by GET
// /mpc/{session_id}/status.
type Status string

const (
	StatusPending           Status = "pending"
	StatusRound1Collecting  Status = "round1_collecting"
	StatusComplete          Status = "complete"
	StatusExpired           Status = "expired"
	StatusAborted           Status = "aborted"
)

// StatusResponse is the body of GET /mpc/{session_id}/status.
type StatusResponse struct {
	Status               Status `json:"status"`
	ParticipantsResponded int   `json:"participants_responded"`
	TotalParticipants    int    `json:"total_participants"`
	Available            *bool  `json:"available,omitempty"`
}

// ShareInfoResponse is the body of GET /signal/{id}/share_info. ShareY is
// omitted in production; it is only ever populated for test fixtures.
type ShareInfoResponse struct {
	SignalID string      `json:"signal_id"`
	ShareX   int         `json:"share_x"`
	ShareY   *HexElement `json:"share_y,omitempty"`
}

// OT sub-protocol wire types, used only when the two-party network-OT
// triple path is active (component E).

// OTSetupRequest carries one party's per-bit DH sender public keys for the
// whole batch of triples being generated in this round.
type OTSetupRequest struct {
	SessionID       string   `json:"session_id"`
	SenderAPublicKeys []string `json:"sender_a_public_keys"`
	SenderBPublicKeys []string `json:"sender_b_public_keys"`
}

// OTChoicesRequest carries one party's receiver-side choice commitments
// (T_k values) as hex-encoded group elements.
type OTChoicesRequest struct {
	SessionID string     `json:"session_id"`
	Choices   [][]string `json:"choices"`
}

// OTTransfersRequest carries one party's encrypted (E0,E1) pairs for every
// bit of every triple in the batch.
type OTTransfersRequest struct {
	SessionID string       `json:"session_id"`
	Pairs     [][][2]string `json:"pairs"`
}

// OTCompleteRequest signals that a party has finished decrypting its OT
// transfers and holds its additive triple shares.
type OTCompleteRequest struct {
	SessionID string `json:"session_id"`
}

// OTSharesRequest carries the Shamir-share conversion: one party's random
// polynomial evaluations for the other party's x-coordinates.
type OTSharesRequest struct {
	SessionID    string                `json:"session_id"`
	Evaluations  map[string]HexElement `json:"evaluations"`
}
