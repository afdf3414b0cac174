package beaver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpctest"
)

// TestRandomMaskHidesProductStatistically exercises testable property 6:
// for a fixed secret s not in the available set, r·(s−a) for freshly
// drawn r is marginally uniform in the field, so the opened value leaks
// nothing about (s−a) beyond the zero/nonzero bit the protocol intends
// to reveal.
func TestRandomMaskHidesProductStatistically(t *testing.T) {
	const numSamples = 4000
	const numBuckets = 16
	const chiSquareCriticalDf15Alpha01 = 30.58

	s := field.FromUint64(5)
	a := field.FromUint64(9)
	factor := s.Sub(a)
	require.False(t, factor.IsZero())

	samples := make([]field.Element, numSamples)
	for i := range samples {
		r, err := field.RandomNonzero()
		require.NoError(t, err)
		samples[i] = r.Mul(factor)
	}

	statistic, err := mpctest.ChiSquareUniformStatistic(samples, numBuckets)
	require.NoError(t, err)
	assert.Less(t, statistic, chiSquareCriticalDf15Alpha01,
		"r*(s-a) for random r should be statistically indistinguishable from uniform")
}
