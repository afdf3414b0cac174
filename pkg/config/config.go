// Package config centralizes the environment-driven switches that gate
// every non-default operating mode: authenticated vs. plain MPC, network
// OT vs. trusted-dealer triple generation, and the explicitly dangerous
// single-validator simulation fallback.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the process-wide runtime switches, each read once at
// startup from its environment variable and defaulted conservatively
// (i.e. toward the secure, distributed behavior) when unset.
type Config struct {
	// UseAuthenticatedMPC is loaded from USE_AUTHENTICATED_MPC. No code
	// path reads it: pkg/coordinator runs only the plain Beaver protocol
	// (pkg/beaver), and cmd/mpc-cli picks the SPDZ-authenticated protocol
	// (pkg/spdz) with its --authenticated flag. Default: false.
	UseAuthenticatedMPC bool

	// UseNetworkOT selects distributed Gilboa-OT triple generation
	// (triple.GenerateNetworkOT) over the trusted dealer. Default: true.
	UseNetworkOT bool

	// AllowDealerFallback permits triple.GenerateDealer to be used in
	// production when network OT is unavailable. Default: false; this
	// must be explicitly opted into, since the dealer sees every triple
	// component in the clear.
	AllowDealerFallback bool

	// AllowSimulationMode permits the coordinator-local, single-process
	// Session types (beaver.Session, spdz.Session) to run in place of the
	// network-driven ParticipantState protocol. These types reconstruct
	// secrets and, for spdz.Session, the global MAC key, at one party —
	// acceptable only for local testing or a "simulate" CLI run never
	// exposed to real validator traffic. Default: false.
	AllowSimulationMode bool

	// PeerTimeout bounds a single HTTP round trip to one peer.
	PeerTimeout time.Duration

	// PeerRetries is the maximum number of retry attempts per peer
	// request after the first, on 5xx/network errors only.
	PeerRetries int

	// GatherTimeout bounds an entire fan-out round across all peers; per
	// spec.md it defaults to 3x PeerTimeout.
	GatherTimeout time.Duration

	// SessionTTL is how long an idle session may live before it becomes
	// eligible for reaping.
	SessionTTL time.Duration

	// CleanupInterval is how often the reaping loop scans for expired
	// sessions.
	CleanupInterval time.Duration

	// CircuitFailureThreshold is the number of consecutive failures that
	// trips a peer's circuit breaker to open.
	CircuitFailureThreshold int

	// CircuitRecoveryTimeout is how long an open circuit waits before
	// moving to half-open and letting calls through again.
	CircuitRecoveryTimeout time.Duration

	// CircuitHalfOpenMax is the number of successful half-open probes
	// required before a circuit closes again.
	CircuitHalfOpenMax int
}

// FromEnv builds a Config from the process environment, applying secure
// defaults for anything unset.
func FromEnv() Config {
	peerTimeout := envDuration("PEER_TIMEOUT", 5*time.Second)
	return Config{
		UseAuthenticatedMPC:     envBool("USE_AUTHENTICATED_MPC", false),
		UseNetworkOT:            envBool("USE_NETWORK_OT", true),
		AllowDealerFallback:     envBool("ALLOW_DEALER_FALLBACK", false),
		AllowSimulationMode:     envBool("ALLOW_SIMULATION_MODE", false),
		PeerTimeout:             peerTimeout,
		PeerRetries:             envInt("PEER_RETRIES", 3),
		GatherTimeout:           envDuration("GATHER_TIMEOUT", 3*peerTimeout),
		SessionTTL:              envDuration("SESSION_TTL", 180*time.Second),
		CleanupInterval:         envDuration("SESSION_CLEANUP_INTERVAL", 300*time.Second),
		CircuitFailureThreshold: envInt("CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitRecoveryTimeout:  envDuration("CIRCUIT_RECOVERY_TIMEOUT", 30*time.Second),
		CircuitHalfOpenMax:      envInt("CIRCUIT_HALF_OPEN_MAX", 2),
	}
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
