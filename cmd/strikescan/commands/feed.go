package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Streaming feed utilities",
}

var feedTailCmd = &cobra.Command{
	Use:   "tail [symbols...]",
	Short: "Subscribe symbols and print live quotes until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE:  tailFeed,
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.AddCommand(feedTailCmd)
}

func tailFeed(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.feed.Connect(ctx); err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	if err := a.feed.Subscribe(args...); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	fmt.Printf("tailing %v, Ctrl+C to stop\n", args)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
			for _, symbol := range args {
				q, ok := a.liveCache.Peek(symbol)
				if !ok {
					continue
				}
				stale := " "
				if q.IsStale {
					stale = "*"
				}
				fmt.Printf("%-8s bid %10.2f  ask %10.2f  last %10.2f  vol %12d %s\n",
					symbol, q.Bid, q.Ask, q.Last, q.Volume, stale)
			}
		}
	}
}
