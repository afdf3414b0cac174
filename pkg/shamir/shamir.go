// Package shamir implements threshold secret sharing over pkg/field:
// polynomial split, evaluation, and Lagrange reconstruction at x=0.
package shamir

import (
	"crypto/rand"
	"math/big"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// Share is one (x, f(x)) point on a secret's sharing polynomial.
type Share struct {
	X uint8
	Y field.Element
}

// polynomial is f(x) = coeffs[0] + coeffs[1]*x + ... + coeffs[k-1]*x^(k-1),
// with coeffs[0] the secret.
type polynomial struct {
	coeffs []field.Element
}

func newRandomPolynomial(secret field.Element, k int) (*polynomial, error) {
	coeffs := make([]field.Element, k)
	coeffs[0] = secret
	for i := 1; i < k; i++ {
		c, err := field.Random()
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	return &polynomial{coeffs: coeffs}, nil
}

func (p *polynomial) eval(x field.Element) field.Element {
	// Horner's method.
	acc := field.Zero()
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.coeffs[i])
	}
	return acc
}

// Split draws a degree-(k-1) random polynomial with constant term secret
// and evaluates it at x = 1..n.
func Split(secret field.Element, n, k int) ([]Share, error) {
	xs := make([]uint8, n)
	for i := 0; i < n; i++ {
		xs[i] = uint8(i + 1)
	}
	return SplitAtPoints(secret, xs, k)
}

// SplitAtPoints evaluates a fresh degree-(k-1) polynomial at arbitrary
// x-coordinates, each of which must lie in [1, 255] and be distinct.
func SplitAtPoints(secret field.Element, xs []uint8, k int) ([]Share, error) {
	if k < 1 {
		return nil, mpcerr.New(mpcerr.InvalidInput, "threshold k must be >= 1")
	}
	if len(xs) < k {
		return nil, mpcerr.Wrap(mpcerr.InsufficientShares, "fewer x-coordinates than threshold", mpcerr.ErrInsufficientShares)
	}
	seen := make(map[uint8]bool, len(xs))
	for _, x := range xs {
		if x == 0 {
			return nil, mpcerr.New(mpcerr.InvalidInput, "x-coordinate 0 is reserved for the secret")
		}
		if seen[x] {
			return nil, mpcerr.ErrDuplicateXCoord
		}
		seen[x] = true
	}
	poly, err := newRandomPolynomial(secret, k)
	if err != nil {
		return nil, err
	}
	shares := make([]Share, len(xs))
	for i, x := range xs {
		shares[i] = Share{X: x, Y: poly.eval(field.FromUint64(uint64(x)))}
	}
	return shares, nil
}

// LagrangeCoefAtZero computes ∏_{j≠i} (-x_j)/(x_i-x_j) mod p for the share
// at index i within xs.
func LagrangeCoefAtZero(i int, xs []uint8) (field.Element, error) {
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

// Reconstruct recovers the secret at x=0 from at least k of the given
// shares via Lagrange interpolation. Any k-subset of a consistent share set
// yields the same result; this implementation uses all provided shares.
func Reconstruct(shares []Share, k int) (field.Element, error) {
	if len(shares) < k {
		return field.Element{}, mpcerr.Wrap(mpcerr.InsufficientShares, "fewer shares than threshold", mpcerr.ErrInsufficientShares)
	}
	xs := make([]uint8, len(shares))
	seen := make(map[uint8]bool, len(shares))
	for i, s := range shares {
		if seen[s.X] {
			return field.Element{}, mpcerr.ErrDuplicateXCoord
		}
		seen[s.X] = true
		xs[i] = s.X
	}
	acc := field.Zero()
	for i, s := range shares {
		li, err := LagrangeCoefAtZero(i, xs)
		if err != nil {
			return field.Element{}, err
		}
		acc = acc.Add(s.Y.Mul(li))
	}
	return acc, nil
}

// RandomXCoords draws n distinct random x-coordinates in [1, 255], used
// when the coordinator assigns participant addresses rather than using
// 1..n directly.
func RandomXCoords(n int) ([]uint8, error) {
	if n > 255 {
		return nil, mpcerr.New(mpcerr.InvalidInput, "cannot assign more than 255 distinct x-coordinates")
	}
	chosen := make(map[uint8]bool, n)
	xs := make([]uint8, 0, n)
	for len(xs) < n {
		b, err := randByte()
		if err != nil {
			return nil, err
		}
		x := b%255 + 1
		if chosen[x] {
			continue
		}
		chosen[x] = true
		xs = append(xs, x)
	}
	return xs, nil
}

func randByte() (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(256))
	if err != nil {
		return 0, mpcerr.Wrap(mpcerr.FieldError, "reading randomness", err)
	}
	return byte(n.Int64()), nil
}
