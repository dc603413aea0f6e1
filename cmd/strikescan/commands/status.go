package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show data-stack health: market session, caches, universe",
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	now := time.Now()
	fmt.Printf("market (%s): open=%v trading_day=%v local=%s\n",
		a.cfg.Market.MIC, a.clock.IsOpen(now), a.clock.IsTradingDay(now),
		now.In(a.clock.Location()).Format("2006-01-02 15:04:05 MST"))

	liveStats := a.liveCache.Stats()
	restStats := a.restCache.Stats()
	fmt.Printf("quote cache: live %d (%d fresh), rest %d (%d fresh)\n",
		liveStats.TotalCount, liveStats.FreshCount,
		restStats.TotalCount, restStats.FreshCount)

	fmt.Printf("bar cache: %d symbols", a.bars.Len())
	if day := a.eod.CapturedDay(); day != "" {
		fmt.Printf(", eod captured for %s", day)
	}
	fmt.Println()

	if age, ok := a.uni.Age(); ok {
		fmt.Printf("universe: cached, age %s\n", age.Round(time.Second))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		snap, err := a.uni.GetUniverse(ctx)
		if err != nil {
			fmt.Printf("universe: unavailable (%v)\n", err)
			return nil
		}
		fmt.Printf("universe: %d symbols fetched\n", len(snap.Entries))
	}

	return nil
}
