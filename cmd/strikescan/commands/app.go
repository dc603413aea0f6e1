package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhan-dev/strikescan/internal/external/marketrest"
	"github.com/danielhan-dev/strikescan/internal/feed/dxlink"
	"github.com/danielhan-dev/strikescan/internal/feed/quotecache"
	"github.com/danielhan-dev/strikescan/internal/history"
	"github.com/danielhan-dev/strikescan/internal/marketdata"
	"github.com/danielhan-dev/strikescan/internal/pricing"
	"github.com/danielhan-dev/strikescan/internal/scan"
	"github.com/danielhan-dev/strikescan/internal/scanconfig"
	"github.com/danielhan-dev/strikescan/internal/scheduler"
	"github.com/danielhan-dev/strikescan/internal/scheduler/jobs"
	"github.com/danielhan-dev/strikescan/internal/scoring"
	"github.com/danielhan-dev/strikescan/internal/universe"
	"github.com/danielhan-dev/strikescan/pkg/config"
	"github.com/danielhan-dev/strikescan/pkg/httputil"
	"github.com/danielhan-dev/strikescan/pkg/logger"
	"github.com/danielhan-dev/strikescan/pkg/redis"
)

const riskFreeRate = 0.05

// app owns the wired component graph. Commands build one app, use the
// parts they need, and close it on exit.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	rdb    *redis.Client
	feed   *dxlink.Client
	poller *marketdata.Poller
	clock  *marketdata.Clock
	router *marketdata.Router
	bars   *history.RollingStore
	eod    *history.EODStore
	uni    *universe.Cache
	orch   *scan.Orchestrator
	sched  *scheduler.Scheduler

	liveCache *quotecache.Cache
	restCache *quotecache.Cache
}

// newApp wires the full graph. withFeed controls whether the streaming
// session is established; one-shot commands run REST-only.
func newApp(withFeed bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)

	strategy := scanconfig.Default()
	if strategyFile != "" {
		loaded, _, err := scanconfig.Load(strategyFile)
		if err != nil {
			return nil, err
		}
		strategy = loaded
		hash, err := scanconfig.Hash(strategy)
		if err != nil {
			return nil, err
		}
		log.WithFields(map[string]interface{}{
			"strategy": strategy.Meta.StrategyID,
			"hash":     hash[:12],
		}).Info("strategy config loaded")
	}

	a := &app{cfg: cfg, log: log}

	var warmUniverse, warmSeries, warmEOD *redis.Cache
	if cfg.Redis.Enabled {
		rdb, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, warm tier disabled")
		} else {
			a.rdb = rdb
			warmUniverse = redis.NewCache(rdb, "universe")
			warmSeries = redis.NewCache(rdb, "series")
			warmEOD = redis.NewCache(rdb, "eod")
		}
	}

	a.clock = marketdata.NewClock(cfg.Market.MIC, log)

	httpClient := newHTTPClient(cfg, log, a.rdb)
	rest := marketrest.NewClient(cfg.MarketREST, httpClient, log)

	a.liveCache = quotecache.New(cfg.Cache.QuoteFreshness, log)
	a.restCache = quotecache.New(cfg.Cache.QuoteFreshness*6, log)

	a.bars = history.NewRollingStore(rest, a.clock, warmSeries, log,
		cfg.Cache.BarTTL, cfg.Cache.BarLookbackDays, cfg.Cache.BarMinDays)
	a.eod = history.NewEODStore(rest, a.clock, warmEOD, log, cfg.Cache.EODTTL)
	a.uni = universe.NewCache(rest, cfg.Cache.UniverseTTL, warmUniverse, log)

	if withFeed {
		a.feed = dxlink.NewClient(cfg.DXLink, a.liveCache, log)
		a.poller = marketdata.NewPoller(rest, a.restCache, 30*time.Second, 2, log)
	}

	var feedSub marketdata.FeedSubscriber
	if a.feed != nil {
		feedSub = a.feed
	}
	a.router = marketdata.NewRouter(a.clock, feedSub, a.liveCache, a.restCache,
		a.bars, a.eod, cfg.Cache.QuoteGraceWait, log)

	pricer := pricing.NewEngine(riskFreeRate, log)
	scorer := scoring.NewEngine(strategy.ScoringConfig(), pricer, log)

	a.orch = scan.NewOrchestrator(strategy.ScanConfig(cfg.Cache.FetchPoolSize),
		a.uni, a.router, rest, pricer, scorer, nil, log)

	a.sched = scheduler.New(log)

	return a, nil
}

func newHTTPClient(cfg *config.Config, log *logger.Logger, rdb *redis.Client) *httputil.Client {
	client := httputil.New(log, cfg.MarketREST.Timeout).WithRetry(3, 2*time.Second)
	if rdb != nil {
		client = client.WithRateLimiter(redis.NewRateLimiter(rdb, "marketrest"), redis.MarketRESTRateLimit)
	}
	return client
}

// start brings up the long-running pieces: feed session, REST poller,
// scheduled jobs, and the metrics endpoint.
func (a *app) start(ctx context.Context) error {
	if a.feed != nil {
		if err := a.feed.Connect(ctx); err != nil {
			// The feed degrades to the REST path; the scanner still works.
			a.log.WithError(err).Warn("feed connect failed, running REST-only")
		}
		a.poller.Start(ctx)
	}

	if err := a.registerJobs(); err != nil {
		return err
	}
	a.sched.Start()

	if a.cfg.MetricsEnabled {
		go a.serveMetrics()
	}

	return nil
}

func (a *app) registerJobs() error {
	// Schedules are exchange-conventional: bars refresh after the close,
	// EOD capture at the configured instant, scans hourly in session.
	jobList := []scheduler.Job{
		jobs.NewScanJob(a.orch, a.clock, "0 0 10-16 * * 1-5", a.log),
		jobs.NewBarRefreshJob(a.bars, a.clock, "0 30 17 * * 1-5", a.log),
		jobs.NewEODCaptureJob(a.eod, a.clock, eodCron(a.cfg.Market.EODCapture), a.log),
		jobs.NewCacheCleanupJob("0 */5 * * * *", a.log, a.liveCache, a.restCache),
	}
	for _, j := range jobList {
		if err := a.sched.AddJob(j); err != nil {
			return err
		}
	}
	return nil
}

// eodCron turns the configured HH:MM into a six-field weekday cron spec.
func eodCron(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "0 15 16 * * 1-5"
	}
	return fmt.Sprintf("0 %d %d * * 1-5", t.Minute(), t.Hour())
}

func (a *app) serveMetrics() {
	addr := ":" + a.cfg.MetricsPort
	a.log.WithField("addr", addr).Info("metrics endpoint up")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.log.WithError(err).Error("metrics endpoint failed")
	}
}

func (a *app) close() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.feed != nil {
		_ = a.feed.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
