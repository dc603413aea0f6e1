package jobs

import (
	"context"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/history"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// BarRefreshJob rebuilds the rolling bar cache after the close. Retry and
// backoff live inside the store; the job runs one full cycle.
type BarRefreshJob struct {
	store    *history.RollingStore
	clock    contracts.MarketClock
	schedule string
	logger   *logger.Logger
}

// NewBarRefreshJob creates the nightly bar refresh.
func NewBarRefreshJob(store *history.RollingStore, clock contracts.MarketClock, schedule string, log *logger.Logger) *BarRefreshJob {
	return &BarRefreshJob{
		store:    store,
		clock:    clock,
		schedule: schedule,
		logger:   log.WithField("job", "bar_refresh"),
	}
}

func (j *BarRefreshJob) Name() string { return "bar_refresh" }

func (j *BarRefreshJob) Schedule() string { return j.schedule }

func (j *BarRefreshJob) Run(ctx context.Context) error {
	if !j.clock.IsTradingDay(time.Now()) {
		j.logger.Debug("not a trading day, bars unchanged")
		return nil
	}
	return j.store.RefreshWithRetry(ctx)
}
