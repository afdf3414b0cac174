package shamir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/shamir"
)

func TestSplitReconstructRoundtrip(t *testing.T) {
	secret := field.FromUint64(424242)
	shares, err := shamir.Split(secret, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	got, err := shamir.Reconstruct(shares[:3], 3)
	require.NoError(t, err)
	assert.True(t, secret.Equal(got))

	got2, err := shamir.Reconstruct(shares[1:4], 3)
	require.NoError(t, err)
	assert.True(t, secret.Equal(got2), "any k-subset must agree")
}

func TestReconstructInsufficientShares(t *testing.T) {
	secret := field.FromUint64(1)
	shares, err := shamir.Split(secret, 5, 3)
	require.NoError(t, err)
	_, err = shamir.Reconstruct(shares[:2], 3)
	assert.Error(t, err)
}

func TestSplitRejectsDuplicateXCoords(t *testing.T) {
	_, err := shamir.SplitAtPoints(field.FromUint64(1), []uint8{1, 1, 2}, 2)
	assert.Error(t, err)
}

func TestSplitAtPointsArbitraryXs(t *testing.T) {
	secret := field.FromUint64(9000)
	xs := []uint8{5, 17, 200}
	shares, err := shamir.SplitAtPoints(secret, xs, 2)
	require.NoError(t, err)
	got, err := shamir.Reconstruct(shares, 2)
	require.NoError(t, err)
	assert.True(t, secret.Equal(got))
}

func TestLagrangeCoefsSumToOneAtDegreeZero(t *testing.T) {
	// Sharing a constant polynomial (k=1): every Lagrange-weighted sum of
	// identical y values must return that same constant regardless of xs.
	secret := field.FromUint64(77)
	shares, err := shamir.Split(secret, 4, 1)
	require.NoError(t, err)
	for _, s := range shares {
		assert.True(t, s.Y.Equal(secret))
	}
	got, err := shamir.Reconstruct(shares, 1)
	require.NoError(t, err)
	assert.True(t, got.Equal(secret))
}

func TestRandomXCoordsDistinct(t *testing.T) {
	xs, err := shamir.RandomXCoords(50)
	require.NoError(t, err)
	seen := make(map[uint8]bool)
	for _, x := range xs {
		assert.False(t, seen[x])
		seen[x] = true
		assert.True(t, x >= 1)
	}
}
