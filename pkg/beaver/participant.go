package beaver

import (
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// ParticipantState is one validator's local view of a distributed session:
// its share of the secret, its share of the random mask r, its per-gate
// triple shares, and a strict next-expected-gate counter. This is the
// type the HTTP coordinator (pkg/coordinator) drives gate by gate across
// the network; pkg/beaver.Session is its coordinator-local, non-networked
// counterpart used for simulation and tests.
type ParticipantState struct {
	ValidatorX    uint8
	SecretShareY  field.Element
	RShareY       field.Element
	Available     []uint8
	TripleA       []field.Element
	TripleB       []field.Element
	TripleC       []field.Element
	gatesDone     int
}

// NewParticipantState builds a fresh participant state for one session.
// TripleA/B/C must have one entry per gate (len(Available) entries, or 1
// if Available is empty — callers short-circuit the empty-set case before
// ever constructing a ParticipantState).
func NewParticipantState(validatorX uint8, secretShareY, rShareY field.Element, available []uint8, tripleA, tripleB, tripleC []field.Element) *ParticipantState {
	return &ParticipantState{
		ValidatorX:   validatorX,
		SecretShareY: secretShareY,
		RShareY:      rShareY,
		Available:    append([]uint8(nil), available...),
		TripleA:      tripleA,
		TripleB:      tripleB,
		TripleC:      tripleC,
	}
}

// GatesCompleted reports how many gates this participant has computed so
// far, i.e. the next gate index it expects.
func (p *ParticipantState) GatesCompleted() int { return p.gatesDone }

// ComputeGate computes (d_i, e_i) for gateIdx, which must equal the next
// expected gate index. prevOpenedD/E must be supplied for every gate
// after the first (the previous gate's publicly-opened values); they are
// ignored for gate 0, where the input is the r share instead.
func (p *ParticipantState) ComputeGate(gateIdx int, prevOpenedD, prevOpenedE *field.Element) (d, e field.Element, err error) {
	if gateIdx != p.gatesDone {
		return field.Element{}, field.Element{}, mpcerr.Wrap(mpcerr.InvalidInput,
			"gate called out of order", mpcerr.ErrOutOfOrderGate)
	}

	var xInput field.Element
	if gateIdx == 0 {
		xInput = p.RShareY
	} else {
		if prevOpenedD == nil || prevOpenedE == nil {
			return field.Element{}, field.Element{}, mpcerr.New(mpcerr.InvalidInput,
				"previous gate opened values required for gate > 0")
		}
		pg := gateIdx - 1
		// x_input = d*e + d*b_i + e*a_i + c_i (previous gate's output share)
		xInput = prevOpenedD.Mul(*prevOpenedE).
			Add(prevOpenedD.Mul(p.TripleB[pg])).
			Add(prevOpenedE.Mul(p.TripleA[pg])).
			Add(p.TripleC[pg])
	}

	aElem := field.FromUint64(uint64(p.Available[gateIdx]))
	yInput := p.SecretShareY.Sub(aElem)

	d = xInput.Sub(p.TripleA[gateIdx])
	e = yInput.Sub(p.TripleB[gateIdx])

	p.gatesDone++
	return d, e, nil
}

// ComputeOutputShare computes the final output share z_i once the last
// gate's (d, e) have been opened, using that gate's triple shares.
func (p *ParticipantState) ComputeOutputShare(lastOpenedD, lastOpenedE field.Element) field.Element {
	last := p.gatesDone - 1
	return lastOpenedD.Mul(lastOpenedE).
		Add(lastOpenedD.Mul(p.TripleB[last])).
		Add(lastOpenedE.Mul(p.TripleA[last])).
		Add(p.TripleC[last])
}
