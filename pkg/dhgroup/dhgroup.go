// Package dhgroup implements the Diffie-Hellman group abstraction and
// hash-based OT key derivation underlying component C: RFC 3526 Group 14
// (2048-bit MODP) in production, with a small swappable test group.
package dhgroup

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// Group parameterises a MODP Diffie-Hellman group: prime, generator, and
// the fixed byte length used to serialize group elements (preventing
// length leakage on the wire).
type Group struct {
	Prime      *big.Int
	Generator  *big.Int
	ByteLength int
}

// Group14 is RFC 3526 Group 14: the 2048-bit MODP group with generator 2,
// used for all production OT.
var Group14 = mustGroup(
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1"+
		"29024E088A67CC74020BBEA63B139B22514A08798E3404DD"+
		"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245"+
		"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED"+
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D"+
		"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F"+
		"83655D23DCA3AD961C62F356208552BB9ED529077096966D"+
		"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B"+
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9"+
		"DE2BCBF6955817183995497CEA956AE515D2261898FA0510"+
		"15728E5A8AACAA68FFFFFFFFFFFFFFFF",
	2, 256,
)

// TestGroup is a small safe prime (p=1019, q=509), generator 2. Fast but
// NOT secure — unit tests only, never used in production code paths.
var TestGroup = mustGroup("3FB", 2, 2) // 0x3FB == 1019

func mustGroup(primeHex string, generator int64, byteLen int) *Group {
	p, ok := new(big.Int).SetString(primeHex, 16)
	if !ok {
		panic("dhgroup: invalid prime literal")
	}
	return &Group{Prime: p, Generator: big.NewInt(generator), ByteLength: byteLen}
}

// RandScalar draws a random scalar in [1, p-2], used as a DH private
// exponent and as a per-bit OT blinding value.
func (g *Group) RandScalar() (*big.Int, error) {
	pMinus2 := new(big.Int).Sub(g.Prime, big.NewInt(2))
	n, err := rand.Int(rand.Reader, pMinus2)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.FieldError, "drawing DH scalar", err)
	}
	return n.Add(n, big.NewInt(1)), nil
}

// Pow computes base^exp mod p within the group.
func (g *Group) Pow(base, exp *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, g.Prime)
}

// Inverse computes base^-1 mod p via Fermat's little theorem (p is prime
// for both Group14 and TestGroup).
func (g *Group) Inverse(base *big.Int) *big.Int {
	pMinus2 := new(big.Int).Sub(g.Prime, big.NewInt(2))
	return new(big.Int).Exp(base, pMinus2, g.Prime)
}

// Encode serializes a group element as a fixed-ByteLength big-endian
// byte string, matching the wire protocol's hex-with-fixed-width scheme.
func (g *Group) Encode(v *big.Int) []byte {
	buf := make([]byte, g.ByteLength)
	v.FillBytes(buf)
	return buf
}

// EncodeHex serializes a group element as a fixed-width hex string.
func (g *Group) EncodeHex(v *big.Int) string {
	return hex.EncodeToString(g.Encode(v))
}

// DecodeHex parses a fixed-width hex group element, accepting an optional
// 0x prefix.
func DecodeHex(s string) (*big.Int, error) {
	s = stripHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.InvalidInput, "malformed group-element hex", err)
	}
	return new(big.Int).SetBytes(b), nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}

// OTKey derives the 32-byte OT encryption key K = SHA256(dh_result ||
// bit_index:u32_be || choice:u8), matching component C's key schedule
// exactly. dhResult is encoded at the group's byte length so the hash
// input never varies in length across calls (fixed-width prevents length
// leakage of the DH result itself).
func OTKey(group *Group, dhResult *big.Int, bitIdx uint32, choice byte) [32]byte {
	h := sha256.New()
	h.Write(group.Encode(dhResult))
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], bitIdx)
	h.Write(idxBuf[:])
	h.Write([]byte{choice})
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// XOR XORs two equal-length byte slices, used to encrypt/decrypt OT
// plaintexts under a derived key.
func XOR(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i%len(b)]
	}
	return out
}
