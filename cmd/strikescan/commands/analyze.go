package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <symbol> <call|put>",
	Short: "Compute Greeks and chain metrics for one underlying",
	Long: `Resolves the underlying's quote through the tiered router, fetches
its option chain, and prints per-contract Greeks plus chain-level implied
volatility and volume metrics for the requested side.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(args[0])
	var right contracts.OptionRight
	switch strings.ToLower(args[1]) {
	case "call":
		right = contracts.Call
	case "put":
		right = contracts.Put
	default:
		return fmt.Errorf("side must be call or put, got %q", args[1])
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	got, err := a.orch.AnalyticsFor(context.Background(), symbol, right)
	if err != nil {
		return err
	}

	stale := ""
	if got.QuoteStale {
		stale = " (stale)"
	}
	fmt.Printf("%s %s  spot %.2f  source %s%s\n", got.Symbol, got.Right, got.Spot, got.QuoteSource, stale)
	fmt.Printf("chain: %d contracts, avg IV %.2f%%, volume %d, open interest %d\n\n",
		len(got.Contracts), got.AvgIV*100, got.TotalVolume, got.TotalOI)

	fmt.Printf("%-24s %8s %12s %8s %8s %8s %8s %8s\n",
		"CONTRACT", "STRIKE", "EXPIRY", "IV", "DELTA", "GAMMA", "THETA", "VEGA")
	for _, c := range got.Contracts {
		fmt.Printf("%-24s %8.2f %12s %7.1f%% %8.3f %8.4f %8.3f %8.3f\n",
			c.Contract.Symbol, c.Contract.Strike, c.Contract.Expiry.Format("2006-01-02"),
			c.Contract.ImpliedVolatility*100,
			c.Greeks.Delta, c.Greeks.Gamma, c.Greeks.Theta, c.Greeks.Vega)
	}

	return nil
}
