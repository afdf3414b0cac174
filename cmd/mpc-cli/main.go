package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/signaloracle/mpccore/pkg/config"
)

var (
	validators int
	threshold  int
	secretVal  uint64
	available  []int
	iterations int
	authMode   bool

	rootCmd = &cobra.Command{
		Use:   "mpc-cli",
		Short: "CLI tool for the signal availability MPC core",
		Long:  `Drives and benchmarks the Beaver-triple set-membership MPC protocol in-process.`,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run a single-process simulated MPC session",
		Long:  `Splits a secret across validators and runs the protocol coordinator-local, without any network round trips.`,
		RunE:  runSimulate,
	}

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the MPC protocol",
		Long:  `Repeats simulated sessions and reports average wall-clock time per run.`,
		RunE:  runBench,
	}
)

func init() {
	rootCmd.PersistentFlags().IntVarP(&validators, "validators", "n", 5, "Total number of validators")
	rootCmd.PersistentFlags().IntVarP(&threshold, "threshold", "k", 3, "Reconstruction threshold")
	rootCmd.PersistentFlags().Uint64VarP(&secretVal, "secret", "s", 0, "Secret value to check for set membership")
	rootCmd.PersistentFlags().IntSliceVarP(&available, "available", "a", []int{0}, "Available-set indices")
	rootCmd.PersistentFlags().BoolVar(&authMode, "authenticated", false, "Run the SPDZ-authenticated variant instead of semi-honest")

	benchCmd.Flags().IntVarP(&iterations, "iterations", "i", 100, "Number of sessions to run")

	rootCmd.AddCommand(simulateCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if !cfg.AllowSimulationMode {
		return fmt.Errorf("simulation mode is disabled; set ALLOW_SIMULATION_MODE=true to run mpc-cli simulate")
	}

	result, elapsed, err := runOneSession(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("secret=%d available=%v threshold=%d validators=%d\n", secretVal, available, threshold, validators)
	fmt.Printf("result: available=%t participating=%d (%s)\n", result.Available, result.ParticipatingValidators, elapsed)
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if !cfg.AllowSimulationMode {
		return fmt.Errorf("simulation mode is disabled; set ALLOW_SIMULATION_MODE=true to run mpc-cli bench")
	}

	fmt.Printf("Running %d simulated sessions (n=%d, k=%d, authenticated=%t)...\n", iterations, validators, threshold, authMode)

	var total time.Duration
	for i := 0; i < iterations; i++ {
		_, elapsed, err := runOneSession(cfg)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		total += elapsed
	}

	fmt.Printf("total: %s, average: %s\n", total, total/time.Duration(iterations))
	return nil
}
