package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache tier labels.
const (
	TierQuote    = "quote"
	TierEOD      = "eod"
	TierBars     = "bars"
	TierUniverse = "universe"
)

var (
	// CacheHits counts reads served from a cache tier.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strikescan",
		Name:      "cache_hits_total",
		Help:      "Cache reads served without an upstream fetch, per tier.",
	}, []string{"tier"})

	// CacheMisses counts reads that fell through a cache tier.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strikescan",
		Name:      "cache_misses_total",
		Help:      "Cache reads that missed or were stale, per tier.",
	}, []string{"tier"})

	// FeedHealthy reports per-venue feed health (1 healthy, 0 not).
	FeedHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "strikescan",
		Name:      "feed_healthy",
		Help:      "Whether the streaming session is authenticated and recently active.",
	}, []string{"venue"})

	// FeedReconnects counts reconnect attempts per venue.
	FeedReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strikescan",
		Name:      "feed_reconnects_total",
		Help:      "Streaming session reconnect attempts.",
	}, []string{"venue"})

	// ScanDuration observes full scan wall time.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strikescan",
		Name:      "scan_duration_seconds",
		Help:      "Wall time of one complete scan cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// ScanSkipped counts triggers dropped because a scan was running.
	ScanSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strikescan",
		Name:      "scan_skipped_total",
		Help:      "Scan triggers skipped due to an in-progress scan.",
	})

	// FunnelCount reports the last scan's funnel stage sizes.
	FunnelCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "strikescan",
		Name:      "scan_funnel_count",
		Help:      "Candidates remaining after each funnel stage of the last scan.",
	}, []string{"stage"})
)
