// Package main is the entry point for the minted CLI.
package main

import (
	"fmt"
	"os"

	"github.com/minted/minted-core/internal/config"
	"github.com/minted/minted-core/internal/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	envFile    string
	logLevel   string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "minted",
	Short: "Issue, carry and collect signed mints",
	Long: `minted issues Ed25519-signed vouchers ("mints"), packs them into compact
QR-sized carrier URLs and verifies them on the collector side before
adding them to a collection.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logging.Sync()
	},
}

func loadConfig(_ *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	path := configPath
	if path == "" {
		path = os.Getenv("MINTED_CONFIG")
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	if logLevel != "" {
		if !logging.ValidLevel(logLevel) {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		c.Log.Level = logLevel
	}

	logging.Init(logging.Config{
		Env:         c.Log.Env,
		Level:       c.Log.Level,
		ServiceName: "minted",
		Version:     version,
	})
	cfg = c
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: $MINTED_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file; ignored when missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
