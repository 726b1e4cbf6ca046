package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartbook-ai/smartbook/libs/config"
	"github.com/smartbook-ai/smartbook/libs/db"
	"github.com/smartbook-ai/smartbook/libs/httpx"
	"github.com/smartbook-ai/smartbook/libs/kafkax"
	otelx "github.com/smartbook-ai/smartbook/libs/otel"
	"github.com/smartbook-ai/smartbook/libs/runtime"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/availability"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/calendarsync"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/handlers"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/metrics"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/notify"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/outbox"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/recommend"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/reminders"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	if err := run(service, logger); err != nil {
		logger.Error("service failed", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "5000")
	if err != nil {
		return err
	}
	sessionSecret, err := config.RequiredString("SESSION_SECRET")
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var checks []runtime.ReadyCheck

	// Storage: Postgres with a transactional outbox, or the in-memory store for local runs.
	var (
		store  storage.Store
		pool   *db.Pool
		events = outbox.NewRepository()
	)
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err = db.Open(ctx, dbURL, db.Options{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
			MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := storage.Migrate(ctx, pool); err != nil {
			return err
		}
		store = storage.NewPostgres(pool, events)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = storage.NewMemory()
	}
	if config.Bool("SEED_DEMO_DATA", true) {
		if err := storage.SeedDemo(ctx, store, time.Now(), bcrypt.DefaultCost); err != nil {
			return err
		}
	}

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	if len(brokers) > 0 && pool != nil {
		writer := kafkax.NewWriter(brokers)
		defer func() { _ = writer.Close() }()
		publisher := outboxPublisher(pool, events, writer, logger)
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	limit := config.Int("RATE_LIMIT_PER_MINUTE", 300)
	var limiter httpx.Limiter
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", "")})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisLimiter(rdb, limit, time.Minute, service+":ratelimit:")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else if limit > 0 {
		limiter = httpx.NewMemoryLimiter(limit, time.Minute)
	}

	hours := availability.BusinessHours{
		StartHour: config.Float("BUSINESS_HOURS_START", availability.DefaultHours.StartHour),
		EndHour:   config.Float("BUSINESS_HOURS_END", availability.DefaultHours.EndHour),
	}
	if err := hours.Validate(); err != nil {
		return err
	}
	engineOpts := recommend.Options{
		Hours:   hours,
		Timeout: config.Seconds("ASSISTANT_TIMEOUT_SECONDS", 10*time.Second),
		Logger:  logger,
	}
	if key := config.String("OPENAI_API_KEY", ""); key != "" {
		engineOpts.Assistant = recommend.NewOpenAIAssistant(recommend.OpenAIConfig{
			APIKey:  key,
			Model:   config.String("OPENAI_MODEL", ""),
			BaseURL: config.String("OPENAI_BASE_URL", ""),
		})
		engineOpts.Breaker = recommend.NewBreaker("openai",
			config.Int("ASSISTANT_BREAKER_FAILURES", 3),
			config.Seconds("ASSISTANT_BREAKER_RESET_SECONDS", 30*time.Second),
			logger)
		logger.Info("assistant enabled", "model", config.String("OPENAI_MODEL", "gpt-4o-mini"))
	}
	engine := recommend.NewEngine(engineOpts)

	dispatcher := notify.NewDispatcher(store, notify.LogSender{Logger: logger}, logger)
	worker, err := reminders.NewWorker(store, dispatcher, logger, reminders.Config{
		Schedule: config.String("REMINDER_SCHEDULE", "*/15 * * * *"),
	})
	if err != nil {
		return err
	}
	go worker.Run(ctx)

	if err := startGrpcServer(ctx, logger, service); err != nil {
		return err
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", metrics.Handler())
	handlers.Register(mux, handlers.Deps{
		Store:    store,
		Engine:   engine,
		Notifier: dispatcher,
		Syncer:   calendarsync.NewSyncer(store, logger),
		Sessions: handlers.NewSessions(store, sessionSecret, 24*time.Hour, config.Bool("SESSION_COOKIE_SECURE", false), logger),
		Location: time.Local,
		Logger:   logger,
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		httpx.RateLimit(limiter, httpx.ClientIP, logger, true),
		httpx.WithTimeout(config.Seconds("HTTP_HANDLER_TIMEOUT_SECONDS", 30*time.Second)),
		metrics.Middleware,
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func outboxPublisher(pool *db.Pool, repo *outbox.Repository, w outbox.MessageWriter, logger *slog.Logger) *outbox.Publisher {
	return outbox.NewPublisher(pool, repo, w, logger, outbox.PublisherConfig{
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
}
