// Package beaver implements the Beaver-triple set-membership MPC session
// (component F): tree multiplication of r·∏(s−aᵢ) using pre-generated
// Beaver triples, plus the per-participant gate state machine that
// enforces strict gate ordering.
package beaver

import (
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
	"github.com/signaloracle/mpccore/pkg/shamir"
	"github.com/signaloracle/mpccore/pkg/triple"
)

// Result is the outcome of an availability check: the only information
// ever released beyond the single bit is how many validators took part.
type Result struct {
	Available              bool
	ParticipatingValidators int
}

// NumGates returns the number of Beaver multiplications a tree-multiply
// of the given available set requires: len(available), or 0 for an empty
// set.
func NumGates(available []uint8) int {
	if len(available) == 0 {
		return 0
	}
	return len(available)
}

// gateLayer is one level of the multiplication tree: a list of per-validator
// share maps still to be combined.
type gateLayer []map[uint8]field.Element

// Session runs the tree-multiplication protocol from the coordinator's
// point of view: it holds every participant's share in the clear (as the
// trusted local simulator does, e.g. for testing or a single-process
// "simulate" CLI run) and reconstructs openings locally. The distributed,
// network-driven variant lives in pkg/coordinator and uses ParticipantState
// per validator instead of this aggregated view.
type Session struct {
	available  []uint8
	shares     map[uint8]shamir.Share
	triples    []triple.Triple
	threshold  int
	tripleIdx  int
	validators []uint8
}

// NewSession builds a coordinator-local session over the given secret
// shares, available set, and pre-generated triples.
func NewSession(available []uint8, shares []shamir.Share, triples []triple.Triple, threshold int) *Session {
	shareMap := make(map[uint8]shamir.Share, len(shares))
	xs := make([]uint8, 0, len(shares))
	for _, s := range shares {
		shareMap[s.X] = s
		xs = append(xs, s.X)
	}
	return &Session{
		available:  append([]uint8(nil), available...),
		shares:     shareMap,
		triples:    triples,
		threshold:  threshold,
		validators: xs,
	}
}

func (s *Session) nextTriple() (triple.Triple, error) {
	if s.tripleIdx >= len(s.triples) {
		return triple.Triple{}, mpcerr.New(mpcerr.InvalidInput, "not enough Beaver triples for this computation")
	}
	t := s.triples[s.tripleIdx]
	s.tripleIdx++
	return t, nil
}

func tripleYMaps(t triple.Triple) (a, b, c map[uint8]field.Element) {
	a = make(map[uint8]field.Element, len(t.A))
	b = make(map[uint8]field.Element, len(t.B))
	c = make(map[uint8]field.Element, len(t.C))
	for _, s := range t.A {
		a[s.X] = s.Y
	}
	for _, s := range t.B {
		b[s.X] = s.Y
	}
	for _, s := range t.C {
		c[s.X] = s.Y
	}
	return
}

func reconstructFromValues(values map[uint8]field.Element) (field.Element, error) {
	xs := make([]uint8, 0, len(values))
	for x := range values {
		xs = append(xs, x)
	}
	// Deterministic order keeps this reproducible for tests; Lagrange
	// reconstruction is order-independent mathematically.
	sortUint8(xs)
	shares := make([]shamir.Share, len(xs))
	for i, x := range xs {
		shares[i] = shamir.Share{X: x, Y: values[x]}
	}
	return shamir.Reconstruct(shares, len(shares))
}

func sortUint8(xs []uint8) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// multiplyShares executes one Beaver-triple multiplication gate: given
// shares of X and Y (one per validator) and a triple (a,b,c), returns
// shares of Z = X*Y.
func (s *Session) multiplyShares(x, y map[uint8]field.Element, t triple.Triple) (map[uint8]field.Element, error) {
	aMap, bMap, cMap := tripleYMaps(t)

	dByValidator := make(map[uint8]field.Element, len(s.validators))
	eByValidator := make(map[uint8]field.Element, len(s.validators))
	for _, vx := range s.validators {
		dByValidator[vx] = x[vx].Sub(aMap[vx])
		eByValidator[vx] = y[vx].Sub(bMap[vx])
	}

	d, err := reconstructFromValues(dByValidator)
	if err != nil {
		return nil, err
	}
	e, err := reconstructFromValues(eByValidator)
	if err != nil {
		return nil, err
	}

	z := make(map[uint8]field.Element, len(s.validators))
	for _, vx := range s.validators {
		// z_i = d*e + d*b_i + e*a_i + c_i
		z[vx] = d.Mul(e).Add(d.Mul(bMap[vx])).Add(e.Mul(aMap[vx])).Add(cMap[vx])
	}
	return z, nil
}

// Run executes the full tree-multiplication protocol and returns whether
// the secret lies in the available set, without ever reconstructing the
// secret itself.
func (s *Session) Run() (Result, error) {
	nValidators := len(s.shares)
	if nValidators < s.threshold {
		return Result{Available: false, ParticipatingValidators: nValidators}, nil
	}
	if len(s.available) == 0 {
		return Result{Available: false, ParticipatingValidators: nValidators}, nil
	}

	factors := make([]map[uint8]field.Element, len(s.available))
	for i, a := range s.available {
		aElem := field.FromUint64(uint64(a))
		factor := make(map[uint8]field.Element, len(s.validators))
		for _, vx := range s.validators {
			factor[vx] = s.shares[vx].Y.Sub(aElem)
		}
		factors[i] = factor
	}

	r, err := field.RandomNonzero()
	if err != nil {
		return Result{}, err
	}
	rShares, err := shamir.SplitAtPoints(r, s.validators, s.threshold)
	if err != nil {
		return Result{}, err
	}
	rByValidator := make(map[uint8]field.Element, len(rShares))
	for _, sh := range rShares {
		rByValidator[sh.X] = sh.Y
	}

	t0, err := s.nextTriple()
	if err != nil {
		return Result{}, err
	}
	z0, err := s.multiplyShares(rByValidator, factors[0], t0)
	if err != nil {
		return Result{}, err
	}

	layer := gateLayer{z0}
	layer = append(layer, factors[1:]...)

	for len(layer) > 1 {
		var next gateLayer
		i := 0
		for i < len(layer) {
			if i+1 < len(layer) {
				t, err := s.nextTriple()
				if err != nil {
					return Result{}, err
				}
				product, err := s.multiplyShares(layer[i], layer[i+1], t)
				if err != nil {
					return Result{}, err
				}
				next = append(next, product)
				i += 2
			} else {
				next = append(next, layer[i])
				i++
			}
		}
		layer = next
	}

	resultValue, err := reconstructFromValues(layer[0])
	if err != nil {
		return Result{}, err
	}

	return Result{Available: resultValue.IsZero(), ParticipatingValidators: nValidators}, nil
}
