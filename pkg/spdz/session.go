package spdz

import (
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// Result mirrors beaver.Result for the authenticated protocol.
type Result struct {
	Available               bool
	ParticipatingValidators int
}

// Session runs the authenticated tree-multiplication protocol with a
// single party holding every validator's authenticated shares in the
// clear — a local simulator for tests and the "simulate" CLI path. It
// reconstructs α internally to authenticate the session's random mask,
// which per spec.md's design notes is ONLY permitted in an explicit
// simulation mode; callers MUST check the ALLOW_SIMULATION_MODE
// configuration switch (pkg/config) before constructing one of these —
// this type does not check the switch itself so tests can use it freely.
//
// The production, network-driven authenticated path never reconstructs
// α at any single party: it uses ParticipantState below instead, whose
// per-gate API only ever touches this validator's own alpha share.
type Session struct {
	available  []uint8
	shares     map[uint8]AuthShare
	alphaShares map[uint8]field.Element
	triples    []AuthTriple
	threshold  int
	tripleIdx  int
	validators []uint8
}

// NewSession builds a simulation-mode authenticated session.
func NewSession(available []uint8, shares []AuthShare, alphaShares []MACKeyShare, triples []AuthTriple, threshold int) *Session {
	shareMap := make(map[uint8]AuthShare, len(shares))
	xs := make([]uint8, 0, len(shares))
	for _, s := range shares {
		shareMap[s.X] = s
		xs = append(xs, s.X)
	}
	alphaMap := make(map[uint8]field.Element, len(alphaShares))
	for _, a := range alphaShares {
		alphaMap[a.X] = a.AlphaShare
	}
	return &Session{
		available:   append([]uint8(nil), available...),
		shares:      shareMap,
		alphaShares: alphaMap,
		triples:     triples,
		threshold:   threshold,
		validators:  xs,
	}
}

func (s *Session) nextTriple() (AuthTriple, error) {
	if s.tripleIdx >= len(s.triples) {
		return AuthTriple{}, mpcerr.New(mpcerr.InvalidInput, "not enough Beaver triples for this computation")
	}
	t := s.triples[s.tripleIdx]
	s.tripleIdx++
	return t, nil
}

func authTripleMaps(t AuthTriple) (a, b, c map[uint8]AuthShare) {
	a = make(map[uint8]AuthShare, len(t.A))
	b = make(map[uint8]AuthShare, len(t.B))
	c = make(map[uint8]AuthShare, len(t.C))
	for _, s := range t.A {
		a[s.X] = s
	}
	for _, s := range t.B {
		b[s.X] = s
	}
	for _, s := range t.C {
		c[s.X] = s
	}
	return
}

func reconstructValueFromAuth(values map[uint8]field.Element) (field.Element, error) {
	xs := make([]uint8, 0, len(values))
	for x := range values {
		xs = append(xs, x)
	}
	sortUint8(xs)
	return reconstructAtZero(xs, values)
}

func sortUint8(xs []uint8) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func reconstructAtZero(xs []uint8, values map[uint8]field.Element) (field.Element, error) {
	acc := field.Zero()
	for i, x := range xs {
		li, err := lagrangeCoefAtZero(i, xs)
		if err != nil {
			return field.Element{}, err
		}
		acc = acc.Add(values[x].Mul(li))
	}
	return acc, nil
}

// lagrangeCoefAtZero duplicates shamir.LagrangeCoefAtZero's formula over
// a plain []uint8 so this package need not depend on shamir.Share's
// struct shape for the authenticated reconstruction helpers above.
func lagrangeCoefAtZero(i int, xs []uint8) (field.Element, error) {
	xi := field.FromUint64(uint64(xs[i]))
	num := field.One()
	den := field.One()
	for j, xj := range xs {
		if j == i {
			continue
		}
		xjElem := field.FromUint64(uint64(xj))
		num = num.Mul(xjElem.Neg())
		den = den.Mul(xi.Sub(xjElem))
	}
	denInv, err := den.Inverse()
	if err != nil {
		return field.Element{}, err
	}
	return num.Mul(denInv), nil
}

func (s *Session) authenticatedSubtractConstant(shares map[uint8]AuthShare, constant field.Element) map[uint8]AuthShare {
	result := make(map[uint8]AuthShare, len(shares))
	for vx, sh := range shares {
		alphaJ := s.alphaShares[vx]
		result[vx] = AuthShare{
			X:   vx,
			Y:   sh.Y.Sub(constant),
			Mac: sh.Mac.Sub(alphaJ.Mul(constant)),
		}
	}
	return result
}

func (s *Session) multiplyShares(x, y map[uint8]AuthShare, t AuthTriple) (map[uint8]AuthShare, error) {
	aMap, bMap, cMap := authTripleMaps(t)

	dAuth := make([]AuthShare, 0, len(s.validators))
	eAuth := make([]AuthShare, 0, len(s.validators))
	dValues := make(map[uint8]field.Element, len(s.validators))
	eValues := make(map[uint8]field.Element, len(s.validators))

	for _, vx := range s.validators {
		xS, yS, aS, bS := x[vx], y[vx], aMap[vx], bMap[vx]
		dY := xS.Y.Sub(aS.Y)
		dMac := xS.Mac.Sub(aS.Mac)
		dAuth = append(dAuth, AuthShare{X: vx, Y: dY, Mac: dMac})
		dValues[vx] = dY

		eY := yS.Y.Sub(bS.Y)
		eMac := yS.Mac.Sub(bS.Mac)
		eAuth = append(eAuth, AuthShare{X: vx, Y: eY, Mac: eMac})
		eValues[vx] = eY
	}

	d, err := reconstructValueFromAuth(dValues)
	if err != nil {
		return nil, err
	}
	e, err := reconstructValueFromAuth(eValues)
	if err != nil {
		return nil, err
	}

	if err := VerifyMACOpening(d, dAuth, s.alphaShares); err != nil {
		return nil, err
	}
	if err := VerifyMACOpening(e, eAuth, s.alphaShares); err != nil {
		return nil, err
	}

	z := make(map[uint8]AuthShare, len(s.validators))
	for _, vx := range s.validators {
		aS, bS, cS := aMap[vx], bMap[vx], cMap[vx]
		alphaJ := s.alphaShares[vx]
		zY := d.Mul(e).Add(d.Mul(bS.Y)).Add(e.Mul(aS.Y)).Add(cS.Y)
		zMac := d.Mul(e).Mul(alphaJ).Add(d.Mul(bS.Mac)).Add(e.Mul(aS.Mac)).Add(cS.Mac)
		z[vx] = AuthShare{X: vx, Y: zY, Mac: zMac}
	}
	return z, nil
}

// Run executes the authenticated tree-multiplication protocol. Returns
// MacFailure (via mpcerr) if any MAC check detects tampering.
func (s *Session) Run() (Result, error) {
	nValidators := len(s.shares)
	if nValidators < s.threshold {
		return Result{Available: false, ParticipatingValidators: nValidators}, nil
	}
	if len(s.available) == 0 {
		return Result{Available: false, ParticipatingValidators: nValidators}, nil
	}

	factors := make([]map[uint8]AuthShare, len(s.available))
	for i, a := range s.available {
		factors[i] = s.authenticatedSubtractConstant(s.shares, field.FromUint64(uint64(a)))
	}

	alpha, err := s.reconstructAlpha()
	if err != nil {
		return Result{}, err
	}
	r, err := field.RandomNonzero()
	if err != nil {
		return Result{}, err
	}
	rAuth, err := AuthenticateValue(r, alpha, s.validators, s.threshold)
	if err != nil {
		return Result{}, err
	}
	rByValidator := make(map[uint8]AuthShare, len(rAuth))
	for _, a := range rAuth {
		rByValidator[a.X] = a
	}

	t0, err := s.nextTriple()
	if err != nil {
		return Result{}, err
	}
	z0, err := s.multiplyShares(rByValidator, factors[0], t0)
	if err != nil {
		return Result{}, err
	}

	layer := []map[uint8]AuthShare{z0}
	layer = append(layer, factors[1:]...)

	for len(layer) > 1 {
		var next []map[uint8]AuthShare
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

	current := layer[0]
	resultValues := make(map[uint8]field.Element, len(current))
	for vx, sh := range current {
		resultValues[vx] = sh.Y
	}
	resultValue, err := reconstructValueFromAuth(resultValues)
	if err != nil {
		return Result{}, err
	}

	resultAuth := make([]AuthShare, 0, len(current))
	for _, sh := range current {
		resultAuth = append(resultAuth, sh)
	}
	if err := VerifyMACOpening(resultValue, resultAuth, s.alphaShares); err != nil {
		return Result{}, err
	}

	return Result{Available: resultValue.IsZero(), ParticipatingValidators: nValidators}, nil
}

// reconstructAlpha reconstructs the global MAC key from this session's
// alpha shares. Per the global-MAC-key-reconstruction guard, this is only
// ever called from the simulation-mode Session above, never from the
// network-driven ParticipantState path.
func (s *Session) reconstructAlpha() (field.Element, error) {
	return reconstructValueFromAuth(s.alphaShares)
}
