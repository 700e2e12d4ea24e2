package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nextbestmove/nbm/internal/logutil"
	"github.com/nextbestmove/nbm/internal/sweeper"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maintenance sweep against the local database",
	Long: `Refreshes cached relationship state and momentum for every user, then archives
stale actions. Runs in-process against --db; the daemon does not need to be running.`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}
	cfg, err := sweeperConfig()
	if err != nil {
		return err
	}

	service, s, err := openService(logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	res, err := sweeper.New(service, cfg, logger).RunOnce(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Printf("Users:     %d\n", res.Users)
	fmt.Printf("Refreshed: %d\n", res.Refreshed)
	fmt.Printf("Archived:  %d\n", res.Archived)
	if res.Failed > 0 {
		return fmt.Errorf("%d users failed to sweep", res.Failed)
	}
	return nil
}
