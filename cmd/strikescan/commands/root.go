package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "strikescan",
	Short: "strikescan - options opportunity scanner",
	Long: `strikescan scans US equity option chains for setups scored by
max-pain proximity, IV skew inversion, volume/OI surge, and near-expiry
RSI extremes.

Usage:
  go run ./cmd/strikescan [command]

Examples:
  go run ./cmd/strikescan scan
  go run ./cmd/strikescan scheduler start
  go run ./cmd/strikescan feed tail AAPL MSFT
  go run ./cmd/strikescan status`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML file (default: built-in strategy)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
