// Package field implements modular arithmetic over the BN254 scalar prime,
// the field every other layer of the MPC core is built on. Operands are
// assumed already reduced; every operation returns a value in [0, p).
package field

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// ByteLen is the fixed-width encoding length for a field element: 32 bytes,
// big-endian, matching the OT key-derivation encoding of component C.
const ByteLen = 32

// bn254PrimeHex is the BN254 scalar field modulus, decimal:
// 21888242871839275222246405745257275088548364400416034343698204186575808495617
const bn254PrimeHex = "30644E72E131A029B85045B68181585D2833E84879B9709143E1F593F0000001"

// Modulus is the shared BN254 scalar-field modulus used by every Element.
var Modulus = mustModulus(bn254PrimeHex)

func mustModulus(hexStr string) *saferith.Modulus {
	n := new(saferith.Nat)
	if _, ok := n.SetHex(hexStr); !ok {
		panic("field: invalid modulus hex")
	}
	return saferith.ModulusFromNat(n)
}

// Element is a value in [0, p). The zero value is not meaningful; use Zero().
type Element struct {
	n *saferith.Nat
}

func fromNat(n *saferith.Nat) Element {
	return Element{n: new(saferith.Nat).Mod(n, Modulus)}
}

// Zero returns the additive identity.
func Zero() Element { return fromNat(new(saferith.Nat).SetUint64(0)) }

// One returns the multiplicative identity.
func One() Element { return fromNat(new(saferith.Nat).SetUint64(1)) }

// FromUint64 reduces a uint64 into the field.
func FromUint64(v uint64) Element {
	return fromNat(new(saferith.Nat).SetUint64(v))
}

// FromBytes decodes a fixed-width big-endian encoding (any length) and
// reduces it mod p.
func FromBytes(b []byte) Element {
	return fromNat(new(saferith.Nat).SetBytes(b))
}

// FromHex parses a hex string (with or without 0x prefix) and reduces mod p.
func FromHex(s string) (Element, error) {
	s = stripHexPrefix(s)
	if s == "" {
		return Element{}, mpcerr.New(mpcerr.InvalidInput, "empty hex field element")
	}
	n := new(saferith.Nat)
	if _, ok := n.SetHex(s); !ok {
		return Element{}, mpcerr.New(mpcerr.InvalidInput, fmt.Sprintf("malformed hex field element %q", s))
	}
	return fromNat(n), nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}

// Random draws a uniform element of the field using crypto/rand.
func Random() (Element, error) {
	buf := make([]byte, ByteLen)
	for {
		if _, err := rand.Read(buf); err != nil {
			return Element{}, mpcerr.Wrap(mpcerr.FieldError, "reading randomness", err)
		}
		// Rejection sampling to avoid modulo bias: clear the two bits above
		// the 254-bit prime's length, then resample whenever the raw value
		// is >= p.
		buf[0] &= 0x3f
		p, _ := new(big.Int).SetString(bn254PrimeHex, 16)
		if new(big.Int).SetBytes(buf).Cmp(p) < 0 {
			return FromBytes(buf), nil
		}
	}
}

// RandomNonzero draws a uniform nonzero element, used for the MPC session's
// random mask r and the SPDZ global MAC key α.
func RandomNonzero() (Element, error) {
	for {
		e, err := Random()
		if err != nil {
			return Element{}, err
		}
		if !e.IsZero() {
			return e, nil
		}
	}
}

// IsZero reports whether the element is the additive identity.
func (e Element) IsZero() bool {
	return e.n.Eq(new(saferith.Nat).SetUint64(0)) == 1
}

// Equal reports field equality.
func (e Element) Equal(o Element) bool {
	return e.n.Eq(o.n) == 1
}

// Add returns e + o mod p.
func (e Element) Add(o Element) Element {
	return fromNat(new(saferith.Nat).ModAdd(e.n, o.n, Modulus))
}

// Sub returns e - o mod p.
func (e Element) Sub(o Element) Element {
	return fromNat(new(saferith.Nat).ModSub(e.n, o.n, Modulus))
}

// Neg returns -e mod p.
func (e Element) Neg() Element {
	return Zero().Sub(e)
}

// Mul returns e * o mod p.
func (e Element) Mul(o Element) Element {
	return fromNat(new(saferith.Nat).ModMul(e.n, o.n, Modulus))
}

// Pow returns e^exp mod p, exp given as a non-negative field element's
// integer value (exponents are always small, public values in this system:
// tree depth, bit indices).
func (e Element) Pow(exp uint64) Element {
	expNat := new(saferith.Nat).SetUint64(exp)
	return fromNat(new(saferith.Nat).Exp(e.n, expNat, Modulus))
}

// Inverse returns the multiplicative inverse via Fermat's little theorem
// (a^(p-2) mod p), since p is prime. Fails on zero with FieldError, per
// component A's documented behavior.
func (e Element) Inverse() (Element, error) {
	if e.IsZero() {
		return Element{}, mpcerr.ErrDivideByZero
	}
	pBig := Modulus.Nat().Big()
	expBig := new(big.Int).Sub(pBig, big.NewInt(2))
	exp := new(saferith.Nat).SetBig(expBig, expBig.BitLen())
	return fromNat(new(saferith.Nat).Exp(e.n, exp, Modulus)), nil
}

// Bytes encodes the element as a fixed ByteLen-byte big-endian string.
func (e Element) Bytes() []byte {
	buf := make([]byte, ByteLen)
	e.n.FillBytes(buf)
	return buf
}

// Hex encodes the element as a 0x-prefixed hex string, matching the wire
// protocol's "field elements as their hex representation reduced mod p".
func (e Element) Hex() string {
	return "0x" + fmt.Sprintf("%x", e.Bytes())
}

// String implements fmt.Stringer for debugging/log output.
func (e Element) String() string { return e.Hex() }
