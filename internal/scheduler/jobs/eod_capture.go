package jobs

import (
	"context"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/history"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// EODCaptureJob snapshots end-of-day bars once per trading day. Repeat
// triggers on an already-captured day are no-ops inside the store.
type EODCaptureJob struct {
	store    *history.EODStore
	clock    contracts.MarketClock
	schedule string
	logger   *logger.Logger
}

// NewEODCaptureJob creates the daily close capture.
func NewEODCaptureJob(store *history.EODStore, clock contracts.MarketClock, schedule string, log *logger.Logger) *EODCaptureJob {
	return &EODCaptureJob{
		store:    store,
		clock:    clock,
		schedule: schedule,
		logger:   log.WithField("job", "eod_capture"),
	}
}

func (j *EODCaptureJob) Name() string { return "eod_capture" }

func (j *EODCaptureJob) Schedule() string { return j.schedule }

func (j *EODCaptureJob) Run(ctx context.Context) error {
	if !j.clock.IsTradingDay(time.Now()) {
		j.logger.Debug("not a trading day, nothing to capture")
		return nil
	}
	return j.store.Capture(ctx)
}
