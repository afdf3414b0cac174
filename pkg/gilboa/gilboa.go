// Package gilboa implements Gilboa OT multiplication (component D): a
// per-bit 1-of-2 oblivious transfer protocol that converts a sender's
// field element x and a receiver's field element y into additive shares
// of x*y mod p, without either party learning the other's input.
package gilboa

import (
	"math/big"

	"github.com/signaloracle/mpccore/pkg/dhgroup"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// NumBits is the number of parallel 1-of-2 OTs run per multiplication:
// one per bit of the BN254 scalar field's modulus.
var NumBits = field.Modulus.Nat().Big().BitLen()

// Sender holds private input x and runs the sender half of the protocol.
type Sender struct {
	group    *dhgroup.Group
	x        field.Element
	dhSecret *big.Int
	dhPublic *big.Int
	rValues  []field.Element
}

// NewSender creates sender-side state for one Gilboa multiplication,
// drawing a fresh DH keypair and per-bit blinding values.
func NewSender(group *dhgroup.Group, x field.Element) (*Sender, error) {
	secret, err := group.RandScalar()
	if err != nil {
		return nil, err
	}
	s := &Sender{
		group:    group,
		x:        x,
		dhSecret: secret,
		dhPublic: group.Pow(group.Generator, secret),
		rValues:  make([]field.Element, NumBits),
	}
	for k := range s.rValues {
		r, err := field.Random()
		if err != nil {
			return nil, err
		}
		s.rValues[k] = r
	}
	return s, nil
}

// PublicKey returns the sender's DH public key A = g^a mod p, published
// to the receiver in phase 1 of component E's protocol.
func (s *Sender) PublicKey() *big.Int { return s.dhPublic }

// EncryptedPair is one bit-position's (E0, E1) ciphertext pair.
type EncryptedPair struct {
	E0, E1 []byte
}

// ProcessChoices consumes the receiver's T_k choice commitments and
// returns the encrypted (m0,m1) pairs for every bit plus the sender's
// accumulated additive share of x*y, which is -Σr_k mod p.
func (s *Sender) ProcessChoices(tValues []*big.Int) ([]EncryptedPair, field.Element, error) {
	if len(tValues) != NumBits {
		return nil, field.Element{}, mpcerr.New(mpcerr.InvalidInput, "choice vector length mismatch")
	}
	aInv := s.group.Inverse(s.dhPublic)
	pairs := make([]EncryptedPair, NumBits)
	share := field.Zero()
	two := field.FromUint64(2)

	for k := 0; k < NumBits; k++ {
		rK := s.rValues[k]
		shift := two.Pow(uint64(k))
		xShifted := s.x.Mul(shift)
		m0 := rK
		m1 := rK.Add(xShifted)

		dh0 := s.group.Pow(tValues[k], s.dhSecret)
		tTimesAInv := new(big.Int).Mod(new(big.Int).Mul(tValues[k], aInv), s.group.Prime)
		dh1 := s.group.Pow(tTimesAInv, s.dhSecret)

		k0 := dhgroup.OTKey(s.group, dh0, uint32(k), 0)
		k1 := dhgroup.OTKey(s.group, dh1, uint32(k), 1)

		e0 := dhgroup.XOR(m0.Bytes(), k0[:])
		e1 := dhgroup.XOR(m1.Bytes(), k1[:])
		pairs[k] = EncryptedPair{E0: e0, E1: e1}

		share = share.Sub(rK)
	}
	return pairs, share, nil
}

// Receiver holds private input y and runs the receiver half of the
// protocol.
type Receiver struct {
	group    *dhgroup.Group
	y        field.Element
	rValues  []*big.Int
	bits     []byte
	senderPK *big.Int
}

// NewReceiver creates receiver-side state, deriving the bit decomposition
// of y and per-bit DH blinding scalars.
func NewReceiver(group *dhgroup.Group, y field.Element) (*Receiver, error) {
	r := &Receiver{
		group:   group,
		y:       y,
		rValues: make([]*big.Int, NumBits),
		bits:    make([]byte, NumBits),
	}
	yBig := new(big.Int).SetBytes(y.Bytes())
	for k := 0; k < NumBits; k++ {
		scalar, err := group.RandScalar()
		if err != nil {
			return nil, err
		}
		r.rValues[k] = scalar
		r.bits[k] = byte(yBig.Bit(k))
	}
	return r, nil
}

// GenerateChoices computes the receiver's T_k commitments against the
// sender's published public key A.
func (r *Receiver) GenerateChoices(senderPublicKey *big.Int) []*big.Int {
	r.senderPK = senderPublicKey
	tValues := make([]*big.Int, NumBits)
	for k := 0; k < NumBits; k++ {
		base := r.group.Pow(r.group.Generator, r.rValues[k])
		if r.bits[k] == 1 {
			t := new(big.Int).Mod(new(big.Int).Mul(senderPublicKey, base), r.group.Prime)
			tValues[k] = t
		} else {
			tValues[k] = base
		}
	}
	return tValues
}

// DecryptTransfers decrypts the sender's selected ciphertext per bit and
// returns the receiver's accumulated additive share of x*y.
func (r *Receiver) DecryptTransfers(pairs []EncryptedPair) (field.Element, error) {
	if len(pairs) != NumBits {
		return field.Element{}, mpcerr.New(mpcerr.InvalidInput, "transfer vector length mismatch")
	}
	share := field.Zero()
	for k := 0; k < NumBits; k++ {
		dh := r.group.Pow(r.senderPK, r.rValues[k])
		key := dhgroup.OTKey(r.group, dh, uint32(k), r.bits[k])
		var ciphertext []byte
		if r.bits[k] == 1 {
			ciphertext = pairs[k].E1
		} else {
			ciphertext = pairs[k].E0
		}
		plaintext := dhgroup.XOR(ciphertext, key[:])
		m := field.FromBytes(plaintext)
		share = share.Add(m)
	}
	return share, nil
}

// MultiplyLocal runs both halves of the protocol in-process (no network),
// for use in tests and in the trusted-dealer-free single-process path
// where the "peer" is simulated locally (e.g. testable property 3).
func MultiplyLocal(group *dhgroup.Group, x, y field.Element) (senderShare, receiverShare field.Element, err error) {
	sender, err := NewSender(group, x)
	if err != nil {
		return field.Element{}, field.Element{}, err
	}
	receiver, err := NewReceiver(group, y)
	if err != nil {
		return field.Element{}, field.Element{}, err
	}
	choices := receiver.GenerateChoices(sender.PublicKey())
	pairs, sShare, err := sender.ProcessChoices(choices)
	if err != nil {
		return field.Element{}, field.Element{}, err
	}
	rShare, err := receiver.DecryptTransfers(pairs)
	if err != nil {
		return field.Element{}, field.Element{}, err
	}
	return sShare, rShare, nil
}
