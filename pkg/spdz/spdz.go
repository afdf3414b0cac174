// Package spdz implements the SPDZ authenticated MPC layer (component G):
// information-theoretic MACs, commit-then-reveal MAC checking, and the
// authenticated session/participant state machines with abort-on-cheat.
package spdz

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
	"github.com/signaloracle/mpccore/pkg/shamir"
)

// AuthShare is a Shamir value share paired with its companion MAC share.
type AuthShare struct {
	X   uint8
	Y   field.Element
	Mac field.Element
}

// MACKeyShare is one validator's Shamir share of the global MAC key α.
type MACKeyShare struct {
	X          uint8
	AlphaShare field.Element
}

// GenerateMACKey draws a fresh nonzero global MAC key α and Shamir-shares
// it across xCoords. Each participant's ParticipantState holds only its
// own α share; the in-process Session in this package reconstructs α
// locally.
func GenerateMACKey(xCoords []uint8, threshold int) (alpha field.Element, shares []MACKeyShare, err error) {
	alpha, err = field.RandomNonzero()
	if err != nil {
		return field.Element{}, nil, err
	}
	raw, err := shamir.SplitAtPoints(alpha, xCoords, threshold)
	if err != nil {
		return field.Element{}, nil, err
	}
	shares = make([]MACKeyShare, len(raw))
	for i, s := range raw {
		shares[i] = MACKeyShare{X: s.X, AlphaShare: s.Y}
	}
	return alpha, shares, nil
}

// AuthenticateValue Shamir-shares secret and its MAC (α*secret) under
// independent random polynomials, at xCoords.
func AuthenticateValue(secret, alpha field.Element, xCoords []uint8, threshold int) ([]AuthShare, error) {
	valueShares, err := shamir.SplitAtPoints(secret, xCoords, threshold)
	if err != nil {
		return nil, err
	}
	macSecret := alpha.Mul(secret)
	macShares, err := shamir.SplitAtPoints(macSecret, xCoords, threshold)
	if err != nil {
		return nil, err
	}
	out := make([]AuthShare, len(valueShares))
	for i := range valueShares {
		out[i] = AuthShare{X: valueShares[i].X, Y: valueShares[i].Y, Mac: macShares[i].Y}
	}
	return out, nil
}

// AuthTriple is a Beaver triple where every component carries MAC shares.
type AuthTriple struct {
	A []AuthShare
	B []AuthShare
	C []AuthShare
}

// GenerateAuthTriples produces count authenticated Beaver triples under
// the given MAC key. Like the plain triple package, this is a
// trusted-dealer style generation used for preprocessing; the
// network-OT path for authenticated triples is out of scope for this
// prototype-grade preprocessing step per spec.md's dealer-fallback note.
func GenerateAuthTriples(count int, alpha field.Element, xCoords []uint8, threshold int) ([]AuthTriple, error) {
	triples := make([]AuthTriple, count)
	for t := 0; t < count; t++ {
		a, err := field.Random()
		if err != nil {
			return nil, err
		}
		b, err := field.Random()
		if err != nil {
			return nil, err
		}
		c := a.Mul(b)

		aAuth, err := AuthenticateValue(a, alpha, xCoords, threshold)
		if err != nil {
			return nil, err
		}
		bAuth, err := AuthenticateValue(b, alpha, xCoords, threshold)
		if err != nil {
			return nil, err
		}
		cAuth, err := AuthenticateValue(c, alpha, xCoords, threshold)
		if err != nil {
			return nil, err
		}
		triples[t] = AuthTriple{A: aAuth, B: bAuth, C: cAuth}
	}
	return triples, nil
}

// ComputeMACSigma computes σ = γ - α_i·opened, this party's MAC check
// contribution for one opened value.
func ComputeMACSigma(openedValue, macShare, alphaShare field.Element) field.Element {
	return macShare.Sub(alphaShare.Mul(openedValue))
}

// Commitment is a commit-then-reveal binding to a MAC check value,
// preventing a cheater who has seen other parties' σ from adaptively
// forging their own.
type Commitment struct {
	ValidatorX uint8
	Digest     [32]byte
	Nonce      [32]byte
}

// Reveal is the opened σ and nonce corresponding to a Commitment.
type Reveal struct {
	ValidatorX uint8
	Sigma      field.Element
	Nonce      [32]byte
}

// CommitSigma builds a (Commitment, Reveal) pair for σ, committing first
// per component G's commit-then-reveal requirement.
func CommitSigma(validatorX uint8, sigma field.Element) (Commitment, Reveal, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Commitment{}, Reveal{}, mpcerr.Wrap(mpcerr.FieldError, "reading randomness", err)
	}
	digest := digestSigma(sigma, nonce)
	return Commitment{ValidatorX: validatorX, Digest: digest, Nonce: nonce},
		Reveal{ValidatorX: validatorX, Sigma: sigma, Nonce: nonce}, nil
}

func digestSigma(sigma field.Element, nonce [32]byte) [32]byte {
	h := sha256.New()
	h.Write(sigma.Bytes())
	h.Write(nonce[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyCommitment checks that reveal matches commitment, using a
// constant-time digest comparison.
func VerifyCommitment(c Commitment, r Reveal) bool {
	if c.ValidatorX != r.ValidatorX {
		return false
	}
	expected := digestSigma(r.Sigma, r.Nonce)
	return subtle.ConstantTimeCompare(c.Digest[:], expected[:]) == 1
}

// CheckMACs runs the full commit-then-reveal MAC check over a set of
// reveals for one opened value: verifies every commitment (caller must
// have collected all commitments before any reveal, per the protocol)
// then checks Σ L_i·σ_i ≡ 0. Returns MacFailure if the check does not
// hold, so the session can abort.
func CheckMACs(commitments []Commitment, reveals []Reveal) error {
	if len(commitments) != len(reveals) {
		return mpcerr.New(mpcerr.MacFailure, "commitment/reveal count mismatch")
	}
	byX := make(map[uint8]Commitment, len(commitments))
	for _, c := range commitments {
		byX[c.ValidatorX] = c
	}
	xs := make([]uint8, len(reveals))
	for i, r := range reveals {
		c, ok := byX[r.ValidatorX]
		if !ok || !VerifyCommitment(c, r) {
			return mpcerr.New(mpcerr.MacFailure, "mac commitment verification failed")
		}
		xs[i] = r.ValidatorX
	}

	total := field.Zero()
	for i, r := range reveals {
		li, err := shamir.LagrangeCoefAtZero(i, xs)
		if err != nil {
			return err
		}
		total = total.Add(li.Mul(r.Sigma))
	}
	if !total.IsZero() {
		return mpcerr.New(mpcerr.MacFailure, "mac check failed: tampered share detected")
	}
	return nil
}

// VerifyMACOpening is a non-interactive convenience form of CheckMACs for
// tests and the single-process session simulator: it skips the
// commit-then-reveal round trip and directly checks Σ L_i·σ_i ≡ 0 from
// plain (value, mac, alpha) triples. Production code must use
// CommitSigma/CheckMACs so a party cannot adaptively forge σ after
// seeing others' values.
func VerifyMACOpening(openedValue field.Element, authShares []AuthShare, alphaShares map[uint8]field.Element) error {
	xs := make([]uint8, len(authShares))
	for i, s := range authShares {
		xs[i] = s.X
	}
	total := field.Zero()
	for i, s := range authShares {
		alphaShare, ok := alphaShares[s.X]
		if !ok {
			return mpcerr.New(mpcerr.InvalidInput, "missing alpha share for validator")
		}
		sigma := ComputeMACSigma(openedValue, s.Mac, alphaShare)
		li, err := shamir.LagrangeCoefAtZero(i, xs)
		if err != nil {
			return err
		}
		total = total.Add(li.Mul(sigma))
	}
	if !total.IsZero() {
		return mpcerr.New(mpcerr.MacFailure, "mac check failed: tampered share detected")
	}
	return nil
}
