package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle and print the ranked candidates",
	Long: `Runs a single full scan: universe filter, quote and indicator
resolution, option-chain scoring, and ranking. Prints the top candidates
with their layer breakdown and derived levels.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.orch.RunScan(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("scan finished in %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("funnel: universe %d -> filtered %d -> scored %d -> above threshold %d\n",
		result.Funnel.UniverseSize, result.Funnel.BasicFiltered,
		result.Funnel.Scored, result.Funnel.AboveThreshold)
	if len(result.Skipped) > 0 {
		fmt.Printf("skipped symbols: %v\n", result.Skipped)
	}

	if len(result.Candidates) == 0 {
		fmt.Println("no candidates")
		return nil
	}

	fmt.Printf("\n%-4s %-24s %-6s %8s %8s %10s %10s %8s\n",
		"#", "CONTRACT", "SIDE", "SCORE", "LAYERS", "MID", "TARGET", "SOURCE")
	for i, c := range result.Candidates {
		stale := ""
		if c.QuoteStale {
			stale = "*"
		}
		fmt.Printf("%-4d %-24s %-6s %8.1f %8d %10.2f %10.2f %8s%s\n",
			i+1, c.Contract.Symbol, c.Contract.Right, c.Composite,
			c.Layers.ActiveCount(), c.Contract.MidPremium(), c.TargetPremium,
			c.QuoteSource, stale)
	}

	return nil
}
