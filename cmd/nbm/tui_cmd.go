package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/nextbestmove/nbm/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive plan viewer",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	user := viper.GetString("user")
	if user == "" {
		return fmt.Errorf("a user id is required (--user or NBM_USER)")
	}

	if !isDaemonRunning() {
		fmt.Println("nbm daemon not running. Starting background service...")
		if err := startDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	app := tui.New(apiAddr(), user)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning() bool {
	health, err := CheckHealth()
	return err == nil && health.OK
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"daemon", "--db", viper.GetString("db"), "--weights", viper.GetString("weights")}
	if cfg := viper.GetString("config"); cfg != "" {
		args = append(args, "--config", cfg)
	}
	cmd := exec.Command(exe, args...)
	// Detach so the daemon survives the TUI
	configureDaemonProc(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ {
		if isDaemonRunning() {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", apiAddr())
}
