// Package main - точка входа движка вовлечённости лендинга Remedia.
//
// Сервис хранит прогресс посетителя по вехам лендинга, считает
// вовлечённость страничных сессий и разносит уведомления: командный
// Telegram-канал и цели Яндекс Метрики.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Tracker)
// - Infrastructure: хранилища, шина событий, внешние API
// - Interface: HTTP endpoints для лендинга
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

	"github.com/joho/godotenv"

	"github.com/vote-vog/remedia-hub/config"

	// Application layer
	"github.com/vote-vog/remedia-hub/internal/application/command"
	"github.com/vote-vog/remedia-hub/internal/application/eventhandler"
	"github.com/vote-vog/remedia-hub/internal/application/query"
	"github.com/vote-vog/remedia-hub/internal/application/tracker"

	// Domain layer
	"github.com/vote-vog/remedia-hub/internal/domain/engagement"
	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/vote-vog/remedia-hub/internal/infrastructure/external/metrika"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/external/telegram"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/messaging"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/persistence/kv"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/persistence/postgres"
	redisstore "github.com/vote-vog/remedia-hub/internal/infrastructure/persistence/redis"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/progressstore"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/scheduler"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/vote-vog/remedia-hub/internal/interface/http"
	"github.com/vote-vog/remedia-hub/internal/interface/http/handlers"

	// Packages
	"github.com/vote-vog/remedia-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	// .env нужен только локально, в бою переменные приходят из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Remedia engagement hub",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"storage", cfg.Storage.Backend,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ВЫБОР ХРАНИЛИЩА (memory / redis / postgres)
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := buildBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		log.Info("closing storage backend...")
		_ = backend.Close()
	}()

	if err := backend.Ping(ctx); err != nil {
		return fmt.Errorf("storage ping failed: %w", err)
	}
	log.Info("storage backend ready", "backend", cfg.Storage.Backend)

	store := progressstore.New(backend, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing external clients...")

	tgConfig := telegram.DefaultClientConfig(cfg.Telegram.Token, cfg.Telegram.ChatID)
	tgConfig.Timeout = cfg.Telegram.RequestTimeout
	tgConfig.RetryAttempts = cfg.Telegram.RetryAttempts
	tgConfig.RetryDelay = cfg.Telegram.RetryDelay
	tgConfig.Logger = log
	tgClient := telegram.NewClient(tgConfig)

	mkConfig := metrika.DefaultClientConfig(cfg.Metrika.CounterID, cfg.Metrika.SiteHost)
	mkConfig.Timeout = cfg.Metrika.RequestTimeout
	mkConfig.Logger = log
	mkClient := metrika.NewClient(mkConfig)

	log.Info("external clients ready",
		"telegram_enabled", tgClient.Enabled(),
		"metrika_enabled", mkClient.Enabled(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	weights := progress.DefaultWeights()
	registry := engagement.NewRegistry(cfg.Engagement.SessionTTL)

	getProgress := query.NewGetProgressHandler(store, weights)
	completeMilestone := command.NewCompleteMilestoneHandler(store, eventBus, weights)
	registerReferral := command.NewRegisterReferralHandler(store, eventBus, weights)
	claimRegistration := command.NewClaimRegistrationHandler(store, eventBus, weights)
	clearSession := command.NewClearSessionHandler(store, eventBus)
	engagementTracker := tracker.New(registry, store, eventBus, engagement.DefaultScoreConfig(), weights)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	onMilestone := eventhandler.NewOnMilestoneCompletedHandler(tgClient, log)
	onAnalytics := eventhandler.NewOnAnalyticsTrackHandler(mkClient, log)
	onRegistered := eventhandler.NewOnVisitorRegisteredHandler(tgClient, log)
	onThreshold := eventhandler.NewOnEngagementThresholdHandler(tgClient, mkClient, log)

	subscriptions := []struct {
		eventType shared.EventType
		handler   shared.EventHandler
	}{
		{shared.EventMilestoneCompleted, onMilestone.Handle},
		{shared.EventAnalyticsTrack, onAnalytics.Handle},
		{shared.EventVisitorRegistered, onRegistered.Handle},
		{shared.EventEngagementThreshold, onThreshold.Handle},
	}
	for _, sub := range subscriptions {
		if _, err := eventBus.Subscribe(sub.eventType, sub.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.eventType, err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. СОЗДАНИЕ SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("initializing scheduler...")

		schedConfig := scheduler.Config{
			Timezone:      cfg.App.Timezone,
			SweepInterval: cfg.Scheduler.SweepInterval,
			DigestCron:    cfg.Scheduler.DigestCron(),
			JobTimeout:    cfg.Scheduler.JobTimeout,
		}

		sched, err = scheduler.New(schedConfig, log)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}

		sweepJob := jobs.NewSweepSessionsJob(engagementTracker, log)
		if err := sched.AddInterval(sweepJob, cfg.Scheduler.SweepInterval); err != nil {
			return err
		}

		if cfg.Features.IsEnabled(config.FeatureNotifyDailyDigest, "") {
			digestJob := jobs.NewDailyDigestJob(backend, engagementTracker, tgClient, log)
			if err := sched.AddCron(digestJob, cfg.Scheduler.DigestCron()); err != nil {
				return err
			}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("storage", handlers.NewStoreCheck(backend))

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.TrustedProxies = cfg.HTTP.TrustedProxies

	apiLogger := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.Observability.LogLevel),
	})

	httpDeps := httpserver.Dependencies{
		GetProgressHandler:       getProgress,
		CompleteMilestoneHandler: completeMilestone,
		RegisterReferralHandler:  registerReferral,
		ClaimRegistrationHandler: claimRegistration,
		ClearSessionHandler:      clearSession,
		Tracker:                  engagementTracker,
		Counter:                  backend,
		Logger:                   apiLogger,
		HealthChecker:            healthChecker,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if sched != nil {
		sched.Start()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Remedia engagement hub is running",
		"http_address", httpServer.Address(),
		"scheduler_enabled", sched != nil,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Останавливаем scheduler, чтобы не стартовали новые джобы
	if sched != nil {
		log.Info("stopping scheduler...")
		sched.Stop()
	}

	// 2. Останавливаем HTTP сервер
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// 3. Шина событий и хранилище закроются через defer

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// buildBackend создаёт key-value хранилище согласно конфигурации.
func buildBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		log.Info("connecting to Redis...", "addr", fmt.Sprintf("%s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port))
		return redisstore.NewStore(redisstore.Config{
			Host:         cfg.Storage.Redis.Host,
			Port:         cfg.Storage.Redis.Port,
			Password:     cfg.Storage.Redis.Password,
			DB:           cfg.Storage.Redis.DB,
			PoolSize:     cfg.Storage.Redis.PoolSize,
			MinIdleConns: cfg.Storage.Redis.MinIdleConns,
			MaxRetries:   cfg.Storage.Redis.MaxRetries,
			DialTimeout:  cfg.Storage.Redis.DialTimeout,
			ReadTimeout:  cfg.Storage.Redis.ReadTimeout,
			WriteTimeout: cfg.Storage.Redis.WriteTimeout,
			RecordTTL:    cfg.Storage.Redis.RecordTTL,
			SessionTTL:   cfg.Storage.Redis.SessionTTL,
		})

	case config.StoragePostgres:
		log.Info("connecting to PostgreSQL...")
		return postgres.NewStore(ctx, postgres.Config{
			URL:             cfg.Storage.Postgres.URL,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Storage.Postgres.ConnMaxIdleTime,
			ConnectTimeout:  cfg.Storage.Postgres.ConnectTimeout,
		})

	default:
		log.Warn("using in-memory storage, records are lost on restart")
		return kv.NewMemoryStore(), nil
	}
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
