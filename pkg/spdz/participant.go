package spdz

import (
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// ParticipantState is one validator's local view of an authenticated
// session: its own AuthShare of the secret and the random mask r, its
// own alpha share, its per-gate authenticated triple shares, and a
// strict next-expected-gate counter. Unlike Session above, this type
// never touches another validator's share or the global MAC key in the
// clear — the coordinator (pkg/coordinator) drives it gate by gate
// across the network and performs reconstruction and MAC verification
// itself from the opened (d,e) values and committed sigmas, matching
// the global-MAC-key-reconstruction guard.
type ParticipantState struct {
	ValidatorX   uint8
	SecretShare  AuthShare
	RShare       AuthShare
	AlphaShare   field.Element
	Available    []uint8
	TripleA      []AuthShare
	TripleB      []AuthShare
	TripleC      []AuthShare
	gatesDone    int
}

// NewParticipantState builds a fresh authenticated participant state for
// one session. TripleA/B/C must have one entry per gate.
func NewParticipantState(validatorX uint8, secretShare, rShare AuthShare, alphaShare field.Element,
	available []uint8, tripleA, tripleB, tripleC []AuthShare) *ParticipantState {
	return &ParticipantState{
		ValidatorX:  validatorX,
		SecretShare: secretShare,
		RShare:      rShare,
		AlphaShare:  alphaShare,
		Available:   append([]uint8(nil), available...),
		TripleA:     tripleA,
		TripleB:     tripleB,
		TripleC:     tripleC,
	}
}

// GatesCompleted reports how many gates this participant has computed.
func (p *ParticipantState) GatesCompleted() int { return p.gatesDone }

// GateShares is what one participant contributes for one gate: its share
// of d and e, each carrying its own MAC share, so the coordinator can run
// the commit-then-reveal MAC check before accepting the opening.
type GateShares struct {
	D AuthShare
	E AuthShare
}

// ComputeGate computes this participant's (d_i, e_i) AuthShares for
// gateIdx, which must equal the next expected gate index. prevOpened
// must be supplied (and already MAC-verified by the coordinator) for
// every gate after the first.
func (p *ParticipantState) ComputeGate(gateIdx int, prevOpenedD, prevOpenedE *field.Element) (GateShares, error) {
	if gateIdx != p.gatesDone {
		return GateShares{}, mpcerr.Wrap(mpcerr.InvalidInput,
			"gate called out of order", mpcerr.ErrOutOfOrderGate)
	}

	var xInput AuthShare
	if gateIdx == 0 {
		xInput = p.RShare
	} else {
		if prevOpenedD == nil || prevOpenedE == nil {
			return GateShares{}, mpcerr.New(mpcerr.InvalidInput,
				"previous gate opened values required for gate > 0")
		}
		pg := gateIdx - 1
		d, e := *prevOpenedD, *prevOpenedE
		a, b, c := p.TripleA[pg], p.TripleB[pg], p.TripleC[pg]
		xInput = AuthShare{
			X:   p.ValidatorX,
			Y:   d.Mul(e).Add(d.Mul(b.Y)).Add(e.Mul(a.Y)).Add(c.Y),
			Mac: d.Mul(e).Mul(p.AlphaShare).Add(d.Mul(b.Mac)).Add(e.Mul(a.Mac)).Add(c.Mac),
		}
	}

	aElem := field.FromUint64(uint64(p.Available[gateIdx]))
	yInput := AuthShare{
		X:   p.ValidatorX,
		Y:   p.SecretShare.Y.Sub(aElem),
		Mac: p.SecretShare.Mac.Sub(p.AlphaShare.Mul(aElem)),
	}

	a, b := p.TripleA[gateIdx], p.TripleB[gateIdx]
	d := AuthShare{X: p.ValidatorX, Y: xInput.Y.Sub(a.Y), Mac: xInput.Mac.Sub(a.Mac)}
	e := AuthShare{X: p.ValidatorX, Y: yInput.Y.Sub(b.Y), Mac: yInput.Mac.Sub(b.Mac)}

	p.gatesDone++
	return GateShares{D: d, E: e}, nil
}

// ComputeOutputShare computes the final authenticated output share once
// the last gate's (d, e) have been opened and MAC-verified.
func (p *ParticipantState) ComputeOutputShare(lastOpenedD, lastOpenedE field.Element) AuthShare {
	last := p.gatesDone - 1
	a, b, c := p.TripleA[last], p.TripleB[last], p.TripleC[last]
	return AuthShare{
		X:   p.ValidatorX,
		Y:   lastOpenedD.Mul(lastOpenedE).Add(lastOpenedD.Mul(b.Y)).Add(lastOpenedE.Mul(a.Y)).Add(c.Y),
		Mac: lastOpenedD.Mul(lastOpenedE).Mul(p.AlphaShare).Add(lastOpenedD.Mul(b.Mac)).Add(lastOpenedE.Mul(a.Mac)).Add(c.Mac),
	}
}

// ComputeMACSigma computes this participant's sigma contribution for an
// opened value, ready for CommitSigma.
func (p *ParticipantState) ComputeMACSigma(openedValue field.Element, macShare field.Element) field.Element {
	return ComputeMACSigma(openedValue, macShare, p.AlphaShare)
}
