package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "NBM"

var rootCmd = &cobra.Command{
	Use:   "nbm",
	Short: "NextBestMove - relationship follow-up planner",
	Long: `nbm decides which relationship follow-ups deserve attention today. It scores open actions,
sorts them into lanes, and trims the list to the day's capacity.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".nbm")

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file path (optional)")
	flags.String("api", "http://127.0.0.1:7477", "API server address")
	flags.String("user", os.Getenv("USER"), "User id sent in the X-User-ID header")
	flags.String("db", filepath.Join(dataDir, "nbm.db"), "Path to SQLite database")
	flags.String("weights", filepath.Join(dataDir, "weights.yaml"), "Path to scoring weights (YAML)")
	flags.String("log-level", "", "Logging level: debug|info|warn|error")
	flags.String("log-format", "text", "Logging format: text|json")
	flags.Bool("log-add-source", false, "Include source file:line in logs")
	flags.BoolP("verbose", "v", false, "Verbose logging")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("api", flags.Lookup("api"))
	_ = viper.BindPFlag("user", flags.Lookup("user"))
	_ = viper.BindPFlag("db", flags.Lookup("db"))
	_ = viper.BindPFlag("weights", flags.Lookup("weights"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("logging.add_source", flags.Lookup("log-add-source"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(relationshipCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(capacityCmd)
	rootCmd.AddCommand(decisionsCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tuiCmd)
}

func initConfig() {
	initViperDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cfgFile := strings.TrimSpace(viper.GetString("config"))
	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
	}
}

func initViperDefaults() {
	viper.SetDefault("listen", "127.0.0.1:7477")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	viper.SetDefault("sweeper.interval", "15m")
	viper.SetDefault("sweeper.workers", 4)
	viper.SetDefault("sweeper.done_archive_days", 90)
	viper.SetDefault("sweeper.stale_auto_archive_days", 7)

	viper.SetDefault("calendar.work_start", "9h")
	viper.SetDefault("calendar.work_end", "17h")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
