package jobs

import (
	"context"

	"github.com/danielhan-dev/strikescan/internal/feed/quotecache"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// CacheCleanupJob evicts stale entries from the live quote caches so a
// long-running process does not accumulate symbols nobody reads anymore.
type CacheCleanupJob struct {
	caches   []*quotecache.Cache
	schedule string
	logger   *logger.Logger
}

// NewCacheCleanupJob creates the periodic cache sweep.
func NewCacheCleanupJob(schedule string, log *logger.Logger, caches ...*quotecache.Cache) *CacheCleanupJob {
	return &CacheCleanupJob{
		caches:   caches,
		schedule: schedule,
		logger:   log.WithField("job", "cache_cleanup"),
	}
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

func (j *CacheCleanupJob) Schedule() string { return j.schedule }

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	removed := 0
	for _, c := range j.caches {
		removed += c.CleanStale()
	}
	if removed > 0 {
		j.logger.WithField("removed", removed).Info("stale quotes evicted")
	}
	return nil
}
