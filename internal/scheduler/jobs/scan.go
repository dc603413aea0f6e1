package jobs

import (
	"context"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// Scanner runs one full scan cycle.
type Scanner interface {
	RunScan(ctx context.Context) (*contracts.ScanResult, error)
}

// ScanJob triggers a scan on its schedule. Overlap skips surface as
// ErrScanInProgress and are handled by the scheduler, not retried here.
type ScanJob struct {
	scanner  Scanner
	clock    contracts.MarketClock
	schedule string
	logger   *logger.Logger
}

// NewScanJob creates the scheduled scan trigger.
func NewScanJob(scanner Scanner, clock contracts.MarketClock, schedule string, log *logger.Logger) *ScanJob {
	return &ScanJob{
		scanner:  scanner,
		clock:    clock,
		schedule: schedule,
		logger:   log.WithField("job", "scan"),
	}
}

func (j *ScanJob) Name() string { return "scan" }

func (j *ScanJob) Schedule() string { return j.schedule }

func (j *ScanJob) Run(ctx context.Context) error {
	result, err := j.scanner.RunScan(ctx)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"candidates": len(result.Candidates),
		"skipped":    len(result.Skipped),
	}).Info("scheduled scan finished")
	return nil
}
