// Package mpctest holds shared test-only helpers: a Monte-Carlo
// chi-square goodness-of-fit statistic used to verify the MPC protocol's
// statistical hiding property (testable property 6).
package mpctest

import (
	"github.com/montanaflynn/stats"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// ChiSquareUniformStatistic buckets samples (field elements reduced into
// one of numBuckets roughly-uniform buckets) and computes the Pearson
// chi-square statistic Σ (observed-expected)²/expected against a uniform
// null hypothesis. Callers compare the returned statistic against a
// critical value for numBuckets-1 degrees of freedom at their chosen
// significance level (e.g. ~27.49 for df=15, α=0.025); a statistic below
// the critical value means the sample is consistent with uniformity.
func ChiSquareUniformStatistic(samples []field.Element, numBuckets uint64) (float64, error) {
	if numBuckets == 0 {
		return 0, mpcerr.New(mpcerr.InvalidInput, "numBuckets must be positive")
	}
	if len(samples) == 0 {
		return 0, mpcerr.New(mpcerr.InvalidInput, "samples must not be empty")
	}

	counts := make([]float64, numBuckets)
	for _, s := range samples {
		counts[bucketOf(s, numBuckets)]++
	}

	expected := float64(len(samples)) / float64(numBuckets)
	terms := make([]float64, numBuckets)
	for i, observed := range counts {
		diff := observed - expected
		terms[i] = (diff * diff) / expected
	}

	statistic, err := stats.Sum(terms)
	if err != nil {
		return 0, mpcerr.Wrap(mpcerr.InvalidInput, "summing chi-square terms", err)
	}
	return statistic, nil
}

// bucketOf reduces a field element into one of numBuckets roughly
// uniform buckets by taking its canonical big-endian encoding mod
// numBuckets. Adequate for a statistical hiding smoke test against a
// reduced test prime; it is not itself a source of randomness.
func bucketOf(e field.Element, numBuckets uint64) uint64 {
	b := e.Bytes()
	var acc uint64
	for _, by := range b {
		acc = (acc*256 + uint64(by)) % numBuckets
	}
	return acc
}
