package coordinator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/signaloracle/mpccore/pkg/coordinator"
)

var _ = Describe("Per-peer circuit breaker", func() {
	var (
		breakers *coordinator.BreakerSet
		key      string
	)

	BeforeEach(func() {
		breakers = coordinator.NewBreakerSet(2, 15*time.Millisecond, 1)
		key = coordinator.PeerKey("https://peer-ginkgo")
	})

	When("a peer fails repeatedly", func() {
		It("opens after the failure threshold and rejects further calls", func() {
			breakers.RecordFailure(key)
			Expect(breakers.State(key)).To(Equal(coordinator.BreakerClosed))
			breakers.RecordFailure(key)
			Expect(breakers.State(key)).To(Equal(coordinator.BreakerOpen))
			Expect(breakers.Allow(key)).To(HaveOccurred())
		})
	})

	When("the recovery timeout elapses after opening", func() {
		It("half-opens on the next Allow call", func() {
			breakers.RecordFailure(key)
			breakers.RecordFailure(key)
			Eventually(func() error {
				return breakers.Allow(key)
			}, 200*time.Millisecond, 5*time.Millisecond).Should(Succeed())
			Expect(breakers.State(key)).To(Equal(coordinator.BreakerHalfOpen))
		})
	})
})
