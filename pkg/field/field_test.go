package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/field"
)

func TestInverseIsMultiplicativeIdentity(t *testing.T) {
	for _, v := range []uint64{1, 2, 3, 12345, 999999937} {
		x := field.FromUint64(v)
		inv, err := x.Inverse()
		require.NoError(t, err)
		assert.True(t, x.Mul(inv).Equal(field.One()), "inv(%d)*%d should be 1", v, v)
	}
}

func TestInverseOfZeroFails(t *testing.T) {
	_, err := field.Zero().Inverse()
	assert.Error(t, err)
}

func TestDistributivity(t *testing.T) {
	a := field.FromUint64(17)
	b := field.FromUint64(23)
	c := field.FromUint64(31)

	lhs := a.Add(b).Mul(c)
	rhs := a.Mul(c).Add(b.Mul(c))
	assert.True(t, lhs.Equal(rhs))
}

func TestAddSubRoundtrip(t *testing.T) {
	a := field.FromUint64(5000)
	b := field.FromUint64(7)
	assert.True(t, a.Add(b).Sub(b).Equal(a))
}

func TestNegCancelsOut(t *testing.T) {
	a := field.FromUint64(424242)
	assert.True(t, a.Add(a.Neg()).IsZero())
}

func TestHexRoundtrip(t *testing.T) {
	a := field.FromUint64(123456789)
	parsed, err := field.FromHex(a.Hex())
	require.NoError(t, err)
	assert.True(t, a.Equal(parsed))
}

func TestFromHexRejectsMalformed(t *testing.T) {
	_, err := field.FromHex("0xzz")
	assert.Error(t, err)
}

func TestRandomNonzeroIsNeverZero(t *testing.T) {
	for i := 0; i < 100; i++ {
		e, err := field.RandomNonzero()
		require.NoError(t, err)
		assert.False(t, e.IsZero())
	}
}

func TestBytesFixedWidth(t *testing.T) {
	e := field.FromUint64(1)
	assert.Len(t, e.Bytes(), field.ByteLen)
}
