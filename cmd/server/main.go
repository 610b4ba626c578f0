package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/api"
	"github.com/synera-br/splennet-backend/internal/config"
	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/db/memory"
	"github.com/synera-br/splennet-backend/internal/db/postgres"
	"github.com/synera-br/splennet-backend/internal/firebase"
	"github.com/synera-br/splennet-backend/internal/llm"
	"github.com/synera-br/splennet-backend/internal/middleware"
	"github.com/synera-br/splennet-backend/internal/models"
	"github.com/synera-br/splennet-backend/internal/notify"
	"github.com/synera-br/splennet-backend/internal/payments"
	"github.com/synera-br/splennet-backend/internal/ratelimit"
	"github.com/synera-br/splennet-backend/internal/scheduler"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	logger, err := newLogger(appConfig)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer logger.Sync()

	if err := appConfig.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	catalog, err := core.LoadPlanCatalog(appConfig.PlanCatalogPath)
	if err != nil {
		logger.Fatal("Failed to load plan catalog", zap.Error(err))
	}
	if appConfig.Stripe.MonthlyPriceID != "" {
		catalog.WithPriceID(models.PlanMonthly, appConfig.Stripe.MonthlyPriceID)
	}
	if appConfig.Stripe.YearlyPriceID != "" {
		catalog.WithPriceID(models.PlanYearly, appConfig.Stripe.YearlyPriceID)
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	fb, err := firebase.Init(initCtx, appConfig.Firebase, appConfig.Store.Driver == config.StoreFirestore, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase", zap.Error(err))
	}

	store, err := openStore(initCtx, appConfig, fb, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	generator, closeGenerator, err := newGenerator(initCtx, appConfig.LLM)
	if err != nil {
		logger.Fatal("Failed to initialize text generation", zap.Error(err))
	}
	defer closeGenerator()

	limiter, stopLimiter, err := newLimiter(initCtx, appConfig)
	if err != nil {
		logger.Fatal("Failed to initialize rate limiter", zap.Error(err))
	}
	defer stopLimiter()

	notifier, closeNotifier, err := newNotifier(appConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notifications", zap.Error(err))
	}
	defer closeNotifier()

	identities := firebase.NewIdentities(fb.Auth)
	usageService := core.NewUsageService(store.Usage)
	userService := core.NewUserService(store.Entitlements, catalog, identities, usageService, notifier, logger)
	services := api.Services{
		Users:   userService,
		Usage:   usageService,
		Essays:  core.NewEssayService(store.Essays, store.Entitlements, userService, usageService, generator, limiter, notifier, logger),
		Reviews: core.NewReviewService(store, userService, usageService, notifier, logger),
		Billing: core.NewBillingService(
			store,
			catalog,
			payments.NewStripeGateway(appConfig.Stripe.SecretKey, appConfig.Stripe.WebhookSecret),
			usageService,
			notifier,
			appConfig.ClientURL,
			logger,
		),
		Catalog: catalog,
	}
	logger.Info("Core services initialized", zap.String("store", appConfig.Store.Driver), zap.String("llm", appConfig.LLM.Provider))

	var jobs *scheduler.Scheduler
	if appConfig.Scheduler.Enabled {
		jobs = scheduler.New(logger)
		reminder := scheduler.NewSubscriptionReminder(store.Entitlements, notifier, logger)
		if err := jobs.AddSubscriptionReminder(appConfig.Scheduler.ReminderSchedule, reminder); err != nil {
			logger.Fatal("Failed to schedule subscription reminders", zap.Error(err))
		}
		jobs.Start()
	}

	if appConfig.Release() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
	api.SetupRoutes(router, services, identities, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", appConfig.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Essay generation can take most of a minute.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if jobs != nil {
		jobs.Stop(shutdownCtx)
	}
	logger.Info("Server exiting")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Release() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func openStore(ctx context.Context, cfg *config.Config, fb *firebase.Clients, logger *zap.Logger) (*db.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreFirestore:
		return db.NewFirestoreStore(fb.Firestore), nil
	case config.StorePostgres:
		conn, err := postgres.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := postgres.Migrate(conn.DB); err != nil {
				conn.Close()
				return nil, err
			}
			logger.Info("Database migrations applied")
		}
		return postgres.NewStore(conn), nil
	case config.StoreMemory:
		logger.Warn("Using the in-memory store; data is lost on restart")
		return memory.New().Repositories(), nil
	}
	return nil, fmt.Errorf("unknown store driver '%s'", cfg.Store.Driver)
}

func newGenerator(ctx context.Context, cfg config.LLMConfig) (llm.Generator, func(), error) {
	var openAI, gemini llm.Generator
	closeFn := func() {}

	if cfg.OpenAIAPIKey != "" {
		openAI = llm.NewOpenAIGenerator(llm.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL})
	}
	if cfg.GeminiAPIKey != "" {
		g, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		gemini = g
		closeFn = func() { g.Close() }
	}

	var chain llm.Fallback
	primary, secondary := openAI, gemini
	if cfg.Provider == "gemini" {
		primary, secondary = gemini, openAI
	}
	for _, g := range []llm.Generator{primary, secondary} {
		if g != nil {
			chain = append(chain, g)
		}
	}
	if len(chain) == 0 {
		return nil, nil, errors.New("no text generation provider has an API key")
	}

	var generator llm.Generator = chain
	if len(chain) == 1 {
		generator = chain[0]
	}
	if cfg.RequestsPerSecond > 0 {
		generator = llm.NewThrottled(generator, cfg.RequestsPerSecond, cfg.Burst)
	}
	return generator, closeFn, nil
}

func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	window := ratelimit.Config{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window}
	if cfg.RateLimit.Backend == "redis" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedisLimiter(client, window, "splennet:ratelimit:", nil), func() { client.Close() }, nil
	}

	limiter := ratelimit.NewMemoryLimiter(window, nil)
	ticker := time.NewTicker(5 * time.Minute)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup()
			case <-done:
				return
			}
		}
	}()
	return limiter, func() { ticker.Stop(); close(done) }, nil
}

func newNotifier(cfg *config.Config, logger *zap.Logger) (core.Notifier, func(), error) {
	if cfg.AMQP.URL != "" {
		queue, err := notify.NewQueue(cfg.AMQP.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return notify.NewQueueNotifier(queue), func() { queue.Close() }, nil
	}
	if cfg.SMTP.Host != "" {
		mailer, err := notify.NewMailer(cfg.SMTP)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("No message broker configured, sending notifications inline")
		return notify.NewMailNotifier(mailer, cfg.ClientURL, logger), func() {}, nil
	}
	logger.Warn("No message broker or SMTP server configured, notifications are only logged")
	return notify.NewLogNotifier(logger), func() {}, nil
}
