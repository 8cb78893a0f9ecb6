package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/okian/duelboard/internal/adapters/http/api"
	"github.com/okian/duelboard/internal/adapters/http/swagger"
	"github.com/okian/duelboard/internal/adapters/upstream"
	app "github.com/okian/duelboard/internal/app"
	"github.com/okian/duelboard/internal/config"
	"github.com/okian/duelboard/pkg/logger"
	"github.com/okian/duelboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 30 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config comes first so the logger can honour log_format.
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxStoredReports(cfg.MaxStoredReports),
		app.WithCacheTTL(cfg.CacheTTL),
		app.WithValidators(cfg.Validators),
	)
	if err := svc.Start(ctx); err != nil {
		log.Fatal(ctx, "failed to start service", logger.Error(err))
	}

	go startSystemMetricsUpdater(ctx)

	if cfg.UpstreamURL != "" {
		client := upstream.NewClient(cfg.UpstreamURL,
			upstream.WithTimeout(cfg.FetchTimeout),
			upstream.WithRateLimit(cfg.FetchRPS, cfg.FetchBurst),
		)
		hotkeys := make([]string, 0, len(cfg.Validators))
		for hk := range cfg.Validators {
			hotkeys = append(hotkeys, hk)
		}
		sort.Strings(hotkeys)
		poller := app.NewPoller(client, svc,
			app.WithPollInterval(cfg.PollInterval),
			app.WithPollConcurrency(cfg.FetchConcurrency),
			app.WithHotkeys(hotkeys...),
		)
		go poller.Run(ctx)
		log.Info(ctx, "upstream polling enabled",
			logger.String("url", cfg.UpstreamURL),
			logger.String("interval", cfg.PollInterval.String()),
		)
	}

	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, api.WithMaxRankingLimit(cfg.MaxRankingLimit)).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
	}
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
