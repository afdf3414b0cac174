package mpctest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpctest"
)

// chiSquareCriticalDf15Alpha01 is the chi-square critical value for 15
// degrees of freedom (16 buckets) at significance level 0.01.
const chiSquareCriticalDf15Alpha01 = 30.58

func TestChiSquareUniformStatisticAcceptsRandomSamples(t *testing.T) {
	const numSamples = 4000
	const numBuckets = 16
	samples := make([]field.Element, numSamples)
	for i := range samples {
		e, err := field.Random()
		require.NoError(t, err)
		samples[i] = e
	}

	statistic, err := mpctest.ChiSquareUniformStatistic(samples, numBuckets)
	require.NoError(t, err)
	assert.Less(t, statistic, chiSquareCriticalDf15Alpha01,
		"genuinely random field elements should not be flagged non-uniform")
}

func TestChiSquareUniformStatisticFlagsDegenerateSamples(t *testing.T) {
	const numSamples = 4000
	const numBuckets = 16
	samples := make([]field.Element, numSamples)
	for i := range samples {
		samples[i] = field.FromUint64(7)
	}

	statistic, err := mpctest.ChiSquareUniformStatistic(samples, numBuckets)
	require.NoError(t, err)
	assert.Greater(t, statistic, chiSquareCriticalDf15Alpha01,
		"every sample landing in one bucket must be flagged non-uniform")
}

func TestChiSquareUniformStatisticRejectsEmptyInput(t *testing.T) {
	_, err := mpctest.ChiSquareUniformStatistic(nil, 16)
	assert.Error(t, err)
}
