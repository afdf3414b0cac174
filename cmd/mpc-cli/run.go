package main

import (
	"time"

	"github.com/signaloracle/mpccore/pkg/beaver"
	"github.com/signaloracle/mpccore/pkg/config"
	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/shamir"
	"github.com/signaloracle/mpccore/pkg/spdz"
	"github.com/signaloracle/mpccore/pkg/triple"
)

// sessionResult is the CLI's common view of a completed session,
// unifying beaver.Result and spdz.Result so simulate/bench don't care
// which variant ran.
type sessionResult struct {
	Available               bool
	ParticipatingValidators int
}

// runOneSession simulates one full coordinator-local session using the
// flags bound in main.go, timing the run so bench can average it.
func runOneSession(cfg config.Config) (sessionResult, time.Duration, error) {
	available := make([]uint8, len(availableFlag()))
	for i, v := range availableFlag() {
		available[i] = uint8(v)
	}

	start := time.Now()
	if authMode {
		result, err := runAuthenticated(cfg, available)
		return result, time.Since(start), err
	}
	result, err := runSemiHonest(cfg, available)
	return result, time.Since(start), err
}

func availableFlag() []int {
	return available
}

func runSemiHonest(cfg config.Config, availableSet []uint8) (sessionResult, error) {
	secret := field.FromUint64(secretVal)
	xs, err := shamir.RandomXCoords(validators)
	if err != nil {
		return sessionResult{}, err
	}
	shares, err := shamir.SplitAtPoints(secret, xs, threshold)
	if err != nil {
		return sessionResult{}, err
	}
	nGates := beaver.NumGates(availableSet)
	if nGates == 0 {
		nGates = 1
	}
	triples, err := triple.Select(cfg, nGates, xs, threshold)
	if err != nil {
		return sessionResult{}, err
	}
	sess := beaver.NewSession(availableSet, shares, triples, threshold)
	result, err := sess.Run()
	if err != nil {
		return sessionResult{}, err
	}
	return sessionResult{Available: result.Available, ParticipatingValidators: result.ParticipatingValidators}, nil
}

// runAuthenticated has no network-OT triple path to select (spdz's
// authenticated preprocessing is dealer-only, per pkg/spdz's own doc
// comment), so it gates the one path it has directly on
// AllowDealerFallback instead of branching on UseNetworkOT.
func runAuthenticated(cfg config.Config, availableSet []uint8) (sessionResult, error) {
	if err := triple.RequireDealerAllowed(cfg); err != nil {
		return sessionResult{}, err
	}

	secret := field.FromUint64(secretVal)
	xs, err := shamir.RandomXCoords(validators)
	if err != nil {
		return sessionResult{}, err
	}

	alpha, alphaShares, err := spdz.GenerateMACKey(xs, threshold)
	if err != nil {
		return sessionResult{}, err
	}
	authShares, err := spdz.AuthenticateValue(secret, alpha, xs, threshold)
	if err != nil {
		return sessionResult{}, err
	}
	nGates := beaver.NumGates(availableSet)
	if nGates == 0 {
		nGates = 1
	}
	authTriples, err := spdz.GenerateAuthTriples(nGates, alpha, xs, threshold)
	if err != nil {
		return sessionResult{}, err
	}

	sess := spdz.NewSession(availableSet, authShares, alphaShares, authTriples, threshold)
	result, err := sess.Run()
	if err != nil {
		return sessionResult{}, err
	}
	return sessionResult{Available: result.Available, ParticipatingValidators: result.ParticipatingValidators}, nil
}
