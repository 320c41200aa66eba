package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"

	"github.com/Proton-105/stockbot/internal/artifacts"
	"github.com/Proton-105/stockbot/internal/bot"
	"github.com/Proton-105/stockbot/internal/chart"
	"github.com/Proton-105/stockbot/internal/delivery"
	errors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/internal/health"
	"github.com/Proton-105/stockbot/internal/i18n"
	"github.com/Proton-105/stockbot/internal/idempotency"
	"github.com/Proton-105/stockbot/internal/jobs"
	"github.com/Proton-105/stockbot/internal/lifecycle"
	"github.com/Proton-105/stockbot/internal/menu"
	"github.com/Proton-105/stockbot/internal/middleware"
	"github.com/Proton-105/stockbot/internal/mtf"
	"github.com/Proton-105/stockbot/internal/ratelimit"
	"github.com/Proton-105/stockbot/internal/state"
	"github.com/Proton-105/stockbot/pkg/config"
	"github.com/Proton-105/stockbot/pkg/graceful"
	"github.com/Proton-105/stockbot/pkg/logger"
	"github.com/Proton-105/stockbot/pkg/metrics"
	appredis "github.com/Proton-105/stockbot/pkg/redis"
)

const (
	sentryFlushTimeout = 2 * time.Second
	healthCheckTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("stockbot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		if stdErrors.Is(err, config.ErrMissingToken) {
			return fmt.Errorf("cannot start without a Telegram token: %w", err)
		}
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.AppEnv}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log := logger.New(cfg.Logger, cfg.Sentry.Enabled)
	slog.SetDefault(log)
	config.Watch(v, log)

	log.Info("starting stockbot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("jobs_backend", cfg.Jobs.Backend),
		slog.Bool("redis", cfg.Redis.Enabled),
	)

	shutdown := lifecycle.NewShutdown(log)
	probes := lifecycle.NewProbes(log)

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = appredis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
	}

	var storage state.Storage = state.NewMemoryStorage(cfg.State.TTL)
	if redisClient != nil {
		storage = state.NewRedisStorage(redisClient, cfg.State.TTL, log)
	}
	fsm := state.NewStateMachine(storage, log, redisClient)

	catalog, err := i18n.Load(cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("load message catalogs: %w", err)
	}
	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled)

	workspace, err := artifacts.NewWorkspace(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}

	httpClient := &http.Client{}
	pipeline := mtf.NewPipeline(mtf.NewClient(cfg.Listing, httpClient, log), workspace, log)
	charts := chart.NewGenerator(chart.NewYahooClient(cfg.MarketData, httpClient, log), chart.NewPlotRenderer(), workspace, log)

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		return err
	}
	messenger := delivery.NewTelebotMessenger(tb)
	coordinator := delivery.NewCoordinator(messenger, log)

	var queueRedis goredis.UniversalClient
	if redisClient != nil {
		queueRedis = redisClient
	}
	executor, err := jobs.New(cfg.Jobs, queueRedis, log)
	if err != nil {
		return err
	}

	flow := menu.NewFlow(fsm, executor, messenger, catalog, errHandler, menu.Config{
		DefaultSymbol: cfg.MarketData.DefaultSymbol,
		StaleAfter:    cfg.State.StaleAfter,
	}, log)
	menu.NewTasks(fsm, charts, pipeline, coordinator, messenger, catalog, errHandler, log).Register(executor)

	rules := ratelimit.NewRules(cfg.RateLimit)
	memoryLimiter := ratelimit.NewMemoryLimiter()
	var primaryLimiter ratelimit.Limiter
	if redisClient != nil {
		primaryLimiter = ratelimit.NewRedisLimiter(redisClient, log)
	}
	limiter := ratelimit.NewAdaptiveLimiter(primaryLimiter, memoryLimiter, log)

	dedupMemory := idempotency.NewMemoryStore()
	var dedupStore idempotency.Store = dedupMemory
	if redisClient != nil {
		dedupStore = idempotency.NewRedisStore(redisClient, log)
	}

	b, err := bot.New(tb, cfg.Bot, log, bot.Dependencies{
		Flow:       flow,
		States:     fsm,
		RateLimit:  middleware.NewRateLimitMiddleware(limiter, rules, catalog, log),
		Dedup:      idempotency.NewGuard(dedupStore, cfg.Bot.DedupTTL, log),
		ErrHandler: errHandler,
	})
	if err != nil {
		return err
	}

	if err := executor.Start(); err != nil {
		return err
	}

	checker := health.NewChecker(log, healthCheckTimeout)
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	checker.AddCheck("artifacts", health.NewDirChecker(workspace.Dir()))
	if redisClient != nil {
		checker.AddCheck("redis", health.NewRedisChecker(redisClient))
	}

	router := mux.NewRouter()
	router.Use(logger.Middleware, middleware.New(log))
	if cfg.Bot.Mode == "webhook" {
		router.Handle(cfg.Bot.WebhookPath, b.WebhookHandler()).Methods(http.MethodPost)
	}
	router.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "Bot is running!")
	}).Methods(http.MethodGet)
	router.Handle("/healthz", checker.Handler()).Methods(http.MethodGet)
	router.Handle("/livez", probes.LivenessHandler()).Methods(http.MethodGet)
	router.Handle("/readyz", probes.ReadinessHandler()).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := graceful.NewServer(log, cfg.Server.Port, router, cfg.Server.ShutdownTimeout)

	var background conc.WaitGroup
	serverDone := make(chan struct{})
	background.Go(func() {
		defer close(serverDone)
		if err := server.ListenAndServe(ctx); err != nil {
			log.Error("http server failed", slog.Any("error", err))
			stop()
		}
	})
	background.Go(b.Start)
	background.Go(func() {
		state.NewCleaner(storage, log, cfg.State.TTL, cfg.State.StaleAfter, cfg.State.CleanupInterval).Run(ctx)
	})
	background.Go(func() { metrics.NewStateCollector(fsm, 0).Run(ctx) })

	sweeper := artifacts.NewSweeper(workspace, cfg.Artifacts.MaxAge, log)
	if err := sweeper.Start(cfg.Artifacts.SweepCron); err != nil {
		return err
	}
	rateLimitCleaner := ratelimit.NewCleaner(redisClient, memoryLimiter, rules.LongestWindow(), log)
	if err := sweeper.Schedule(cfg.Artifacts.SweepCron, "rate limit cleanup", rateLimitCleaner.Clean); err != nil {
		return err
	}
	if err := sweeper.Schedule(cfg.Artifacts.SweepCron, "dedup cleanup", func() { dedupMemory.Cleanup() }); err != nil {
		return err
	}

	shutdown.Register("http server", func(ctx context.Context) error {
		return waitFor(ctx, func() { <-serverDone })
	})
	shutdown.Register("telegram bot", b.Stop)
	shutdown.Register("job executor", func(ctx context.Context) error {
		return waitFor(ctx, executor.Shutdown)
	})
	shutdown.Register("scheduler", func(ctx context.Context) error {
		return waitFor(ctx, sweeper.Stop)
	})
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	if cfg.Sentry.Enabled {
		shutdown.Register("sentry", func(context.Context) error {
			sentry.Flush(sentryFlushTimeout)
			return nil
		})
	}

	probes.SetReady(true)
	log.Info("stockbot is running", slog.String("port", cfg.Server.Port))

	<-ctx.Done()
	probes.SetReady(false)
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := shutdown.Execute(shutdownCtx)
	if err := waitFor(shutdownCtx, background.Wait); err != nil {
		log.Warn("background tasks did not stop in time", slog.Any("error", err))
	}

	log.Info("stockbot stopped")
	return shutdownErr
}

// waitFor runs fn and returns when it finishes or ctx expires.
func waitFor(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
