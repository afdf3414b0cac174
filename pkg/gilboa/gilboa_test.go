package gilboa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/dhgroup"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/gilboa"
)

func TestMultiplyLocalCorrectness(t *testing.T) {
	cases := []struct{ x, y uint64 }{
		{3, 5}, {0, 9}, {9, 0}, {123456, 7}, {1, 1},
	}
	for _, c := range cases {
		x := field.FromUint64(c.x)
		y := field.FromUint64(c.y)
		senderShare, receiverShare, err := gilboa.MultiplyLocal(dhgroup.TestGroup, x, y)
		require.NoError(t, err)
		got := senderShare.Add(receiverShare)
		want := x.Mul(y)
		assert.True(t, got.Equal(want), "x=%d y=%d: got %s want %s", c.x, c.y, got, want)
	}
}

func TestMultiplyLocalUsesProductionGroup(t *testing.T) {
	x := field.FromUint64(42)
	y := field.FromUint64(99)
	senderShare, receiverShare, err := gilboa.MultiplyLocal(dhgroup.Group14, x, y)
	require.NoError(t, err)
	assert.True(t, senderShare.Add(receiverShare).Equal(x.Mul(y)))
}
