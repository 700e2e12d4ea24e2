package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nextbestmove/nbm/internal/audit"
	"github.com/nextbestmove/nbm/internal/calendar"
	"github.com/nextbestmove/nbm/internal/engine"
	"github.com/nextbestmove/nbm/internal/logutil"
	"github.com/nextbestmove/nbm/internal/planner"
	"github.com/nextbestmove/nbm/internal/store"
	"github.com/nextbestmove/nbm/internal/sweeper"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the nbm daemon",
	Long:  `Starts the nbm daemon which serves the HTTP API and runs the background sweeper.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().String("listen", "127.0.0.1:7477", "Listen address for the API server")
	daemonCmd.Flags().Bool("no-sweep", false, "Disable the background sweeper")
	_ = viper.BindPFlag("listen", daemonCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("no_sweep", daemonCmd.Flags().Lookup("no-sweep"))
}

// openService opens the store and wires the planning service around it.
func openService(logger *slog.Logger) (*planner.Service, *store.Store, error) {
	dbPath := viper.GetString("db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	weights, err := engine.LoadWeights(viper.GetString("weights"))
	if err != nil {
		return nil, nil, err
	}

	s, err := store.New(dbPath)
	if err != nil {
		return nil, nil, err
	}

	estimator := calendar.NewEstimator(s).
		WithWorkingHours(viper.GetDuration("calendar.work_start"), viper.GetDuration("calendar.work_end"))
	service := planner.NewService(s, audit.NewRecorder(s), engine.NewScorer(weights), estimator, logger)
	return service, s, nil
}

func sweeperConfig() (*sweeper.Config, error) {
	cfg := sweeper.DefaultConfig()
	if err := viper.UnmarshalKey("sweeper", cfg); err != nil {
		return nil, fmt.Errorf("parse sweeper config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sweeper config: %w", err)
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	listenAddr := viper.GetString("listen")
	logger.Info("starting nbm daemon", "listen", listenAddr, "db", viper.GetString("db"))

	service, s, err := openService(logger)
	if err != nil {
		return err
	}

	server := planner.NewServer(service, listenAddr, logger)

	if !viper.GetBool("no_sweep") {
		cfg, err := sweeperConfig()
		if err != nil {
			s.Close()
			return err
		}
		sw := sweeper.New(service, cfg, logger.With("component", "sweeper"))
		server.SetSweeper(sw)
		sw.Start()
		defer sw.Stop()
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			s.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "error", err)
	}

	logger.Info("closing database")
	if err := s.Close(); err != nil {
		logger.Warn("database close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
