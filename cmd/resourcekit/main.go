// Command resourcekit runs a simulated service workload over the resource
// management components: rate-limited callers acquire pooled connections to
// a record store while a TTL cache serves the read path and the scheduler
// runs background maintenance.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/odalton/resourcekit/pool"
	"github.com/odalton/resourcekit/ratelimit"
	"github.com/odalton/resourcekit/recordstore"
	"github.com/odalton/resourcekit/scheduler"
	"github.com/odalton/resourcekit/telemetry"
	"github.com/odalton/resourcekit/ttlcache"
)

var cli struct {
	StorePath     string        `help:"Path to the bbolt record store." default:"resourcekit.db"`
	MaxConns      int           `help:"Maximum pooled connections (0 = unbounded)." default:"10"`
	CacheTTL      time.Duration `help:"TTL for cached reads." default:"30s"`
	SweepInterval time.Duration `help:"How often the scheduler sweeps expired cache entries." default:"10s"`
	RateLimit     int           `help:"Admitted operations per window." default:"50"`
	RateWindow    time.Duration `help:"Trailing admission window." default:"1s"`
	Workers       int           `help:"Concurrent workload goroutines." default:"8"`
	RunFor        time.Duration `help:"How long to run the workload before shutting down." default:"30s"`
	MetricsAddr   string        `help:"Listen address for the Prometheus /metrics endpoint (empty disables)." default:""`
	OTLPEndpoint  string        `help:"OTLP gRPC endpoint for metric export (empty disables)." default:""`
	LogLevel      string        `help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat     string        `help:"Log format." enum:"text,json" default:"text"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("resourcekit"),
		kong.Description("Simulated async-service resource workload."),
	)
	if err := run(); err != nil {
		kctx.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := newLogger(cli.LogLevel, cli.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricsConfig{
		ServiceName:      "resourcekit",
		OTLPEndpoint:     cli.OTLPEndpoint,
		EnablePrometheus: cli.MetricsAddr != "",
	})
	if err != nil {
		return fmt.Errorf("initialising metrics: %w", err)
	}

	store, err := recordstore.OpenBolt(cli.StorePath)
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}

	connPool := pool.New(store, pool.Config{
		MaxConns: cli.MaxConns,
		Logger:   logger,
	})
	cache := ttlcache.New[*recordstore.Record](logger)
	sweeper := ttlcache.NewSweeper(cache, ttlcache.SweeperConfig{
		Interval: cli.SweepInterval,
		Logger:   logger,
	})
	limiter := ratelimit.New(cli.RateLimit, cli.RateWindow, ratelimit.WithLogger(logger))
	sched := scheduler.New(scheduler.Config{Logger: logger})

	// Maintenance runs through the scheduler rather than the sweeper's own
	// loop so the demo exercises periodic scheduling end to end.
	sweepID := sched.SchedulePeriodic("cache-sweep", cli.SweepInterval, scheduler.High, func(ctx context.Context) error {
		sweeper.RunOnce(ctx)
		return nil
	})
	sched.ScheduleOnce("warmup-report", 2*time.Second, scheduler.Low, func(ctx context.Context) error {
		total, valid := cache.Stats()
		logger.Info("warmup report",
			"pool_size", connPool.Size(),
			"pool_in_use", connPool.InUse(),
			"cache_total", total,
			"cache_valid", valid,
		)
		return nil
	})

	var metricsSrv *http.Server
	if cli.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.PrometheusHandler())
		metricsSrv = &http.Server{Addr: cli.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics endpoint started", "addr", cli.MetricsAddr)
	}

	logger.Info("workload starting",
		"workers", cli.Workers,
		"max_conns", cli.MaxConns,
		"rate_limit", cli.RateLimit,
		"rate_window", cli.RateWindow,
		"run_for", cli.RunFor,
	)

	workCtx, cancelWork := context.WithTimeout(ctx, cli.RunFor)
	defer cancelWork()

	g, gctx := errgroup.WithContext(workCtx)
	for w := 0; w < cli.Workers; w++ {
		worker := w
		g.Go(func() error {
			return runWorker(gctx, worker, limiter, connPool, cache, store, cli.CacheTTL)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("workload failed", "error", err)
	}

	// Orderly shutdown: stop tasks, then tear down the pool and store.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	sched.Cancel(sweepID)
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop cleanly", "error", err)
	}
	connPool.Close()
	if err := store.Close(); err != nil {
		logger.Warn("closing record store", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown failed", "error", err)
	}

	for _, t := range sched.List() {
		logger.Info("task record", "id", t.ID, "name", t.Name, "priority", t.Priority, "status", t.Status)
	}
	logger.Info("workload finished")
	return nil
}

// runWorker drives one logical caller: admission control, then a write
// through a pooled connection, then a cached read with the store as the
// fetch collaborator.
func runWorker(ctx context.Context, worker int, limiter *ratelimit.Limiter, connPool *pool.Pool, cache *ttlcache.Cache[*recordstore.Record], store recordstore.Store, cacheTTL time.Duration) error {
	for i := 0; ; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		id := fmt.Sprintf("user-%d-%d", worker, i%20)
		err := connPool.With(ctx, func(ctx context.Context, conn *pool.Conn) error {
			if err := conn.Exec(ctx, &recordstore.Record{
				ID:   id,
				Kind: "user",
				Data: fmt.Appendf(nil, `{"worker":%d,"seq":%d}`, worker, i),
			}); err != nil {
				return err
			}
			_, err := conn.Query(ctx, "user")
			return err
		})
		if errors.Is(err, pool.ErrExhausted) {
			// The next limiter.Wait paces the retry.
			continue
		}
		if err != nil {
			return err
		}

		if _, err := cache.Fetch(ctx, "user/"+id, cacheTTL, func(ctx context.Context, _ string) (*recordstore.Record, error) {
			return store.Get(ctx, "user", id)
		}); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: lvl})
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}
