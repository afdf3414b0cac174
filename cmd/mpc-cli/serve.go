package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signaloracle/mpccore/pkg/config"
	"github.com/signaloracle/mpccore/pkg/mpcserver"
	"github.com/signaloracle/mpccore/pkg/sharestore"
)

var (
	serveAddr string
	serveSelf int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run this validator's /mpc/* HTTP server",
		Long:  `Listens for the coordinator's init/compute_gate/result/abort calls and answers status/share_info lookups, per spec.md's component H wire protocol.`,
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8443", "Address to listen on")
	serveCmd.Flags().IntVar(&serveSelf, "self-x", 1, "This validator's Shamir x-coordinate")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	shares := sharestore.New()
	srv := mpcserver.NewServer(serveSelf, shares, log)
	stopCleanup := srv.StartCleanupLoop(cfg.CleanupInterval, cfg.SessionTTL)
	defer stopCleanup()

	httpSrv := &http.Server{Addr: serveAddr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Info("mpc-cli serve listening", zap.String("addr", serveAddr), zap.Int("self_x", serveSelf))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCh:
		fmt.Fprintln(os.Stderr, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}
