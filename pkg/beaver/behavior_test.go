package beaver_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/signaloracle/mpccore/pkg/beaver"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/shamir"
	"github.com/signaloracle/mpccore/pkg/triple"
)

// ginkgoScenario mirrors runScenario but reports failures through Gomega
// instead of *testing.T, since it runs inside It blocks.
func ginkgoScenario(n, k int, s uint64, available []uint8) beaver.Result {
	secret := field.FromUint64(s)
	shares, err := shamir.Split(secret, n, k)
	Expect(err).NotTo(HaveOccurred())

	xs := make([]uint8, len(shares))
	for i, sh := range shares {
		xs[i] = sh.X
	}
	nGates := beaver.NumGates(available)
	if nGates == 0 {
		nGates = 1
	}
	triples, err := triple.GenerateDealer(nGates, xs, k)
	Expect(err).NotTo(HaveOccurred())

	sess := beaver.NewSession(available, shares, triples, k)
	result, err := sess.Run()
	Expect(err).NotTo(HaveOccurred())
	return result
}

var _ = Describe("Set-membership availability", func() {
	Context("when the secret is a member of the available set", func() {
		It("reports available and reconstructs with every validator", func() {
			result := ginkgoScenario(3, 2, 5, []uint8{3, 5, 7})
			Expect(result.Available).To(BeTrue())
			Expect(result.ParticipatingValidators).To(Equal(3))
		})
	})

	Context("when the secret is absent from the available set", func() {
		It("reports unavailable", func() {
			result := ginkgoScenario(3, 2, 5, []uint8{1, 2, 3})
			Expect(result.Available).To(BeFalse())
		})
	})

	Context("when fewer than threshold validators hold a share", func() {
		It("reports unavailable without attempting reconstruction", func() {
			secret := field.FromUint64(4)
			shares, err := shamir.Split(secret, 3, 7)
			Expect(err).NotTo(HaveOccurred())

			sess := beaver.NewSession([]uint8{4}, shares, nil, 7)
			result, err := sess.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Available).To(BeFalse())
			Expect(result.ParticipatingValidators).To(Equal(3))
		})
	})

	DescribeTable("membership across a range of secrets",
		func(secret uint64, wantAvailable bool) {
			result := ginkgoScenario(3, 2, secret, []uint8{2, 5, 8})
			Expect(result.Available).To(Equal(wantAvailable))
		},
		Entry("s=2 is a member", uint64(2), true),
		Entry("s=5 is a member", uint64(5), true),
		Entry("s=8 is a member", uint64(8), true),
		Entry("s=1 is not a member", uint64(1), false),
		Entry("s=10 is not a member", uint64(10), false),
	)
})
