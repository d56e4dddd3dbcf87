// File: cmd/app/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"langtest-practice/internal/config"
	"langtest-practice/internal/domain/ports/adapter"
	"langtest-practice/internal/domain/ports/repository"
	aiAdapters "langtest-practice/internal/infra/adapters/ai"
	payAdapters "langtest-practice/internal/infra/adapters/payment"
	"langtest-practice/internal/infra/api"
	pg "langtest-practice/internal/infra/db/postgres"
	"langtest-practice/internal/infra/db/sqlite"
	"langtest-practice/internal/infra/logging"
	"langtest-practice/internal/infra/metrics"
	red "langtest-practice/internal/infra/redis"
	"langtest-practice/internal/infra/sched"
	"langtest-practice/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type stores struct {
	accounts repository.AccountRepository
	usage    repository.UsageRepository
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	close    func()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI and payments when unconfigured)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Storage ----
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("database")
	}
	defer st.close()

	// ---- Redis (optional) ----
	var (
		claims  repository.DemoClaimer
		limiter repository.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		claims = red.NewDemoClaimStore(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis not configured; rate limits disabled, demo holds use the account store only")
	}

	// ---- AI ----
	ai, err := buildAI(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai adapter")
	}

	// ---- Payments ----
	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}

	// ---- Use cases ----
	entUC := usecase.NewEntitlementUseCase(st.accounts, logger)
	usageUC := usecase.NewUsageUseCase(st.accounts, st.usage, st.tm, logger)
	accountUC := usecase.NewAccountUseCase(st.accounts, entUC, logger)
	billingUC := usecase.NewBillingUseCase(st.accounts, st.payments, st.tm, gateway, entUC, logger)
	taskUC := usecase.NewTaskUseCase(entUC, usageUC, ai, claims, limiter, usecase.TaskConfig{
		WritingModel:   cfg.AI.DefaultModel,
		SpeakingModel:  cfg.AI.SpeakingModel,
		Timeout:        cfg.AI.Timeout,
		MaxInputTokens: cfg.AI.MaxInputTokens,
		RateLimit:      cfg.Limits.AIRequestsPerMinute,
		RateWindow:     time.Minute,
	}, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	srv := api.NewServer(accountUC, taskUC, billingUC, auth, api.Options{
		AllowedOrigin:  cfg.HTTP.AllowedOrigin,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		LoginPerMinute: cfg.Limits.LoginRequestsPerMinute,
		Limiter:        limiter,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Expiry worker ----
	if cfg.Scheduler.ExpirySweepInterval > 0 {
		worker := sched.NewExpiryWorker(cfg.Scheduler.ExpirySweepInterval, entUC, logger)
		go func() { _ = worker.Run(ctx) }()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return sqliteStores(db), nil
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
		return postgresStores(pool), nil
	}
}

func postgresStores(pool *pgxpool.Pool) *stores {
	return &stores{
		accounts: pg.NewPostgresAccountRepo(pool),
		usage:    pg.NewPostgresUsageRepo(pool),
		payments: pg.NewPostgresPaymentRepo(pool),
		tm:       pg.NewTxManager(pool),
		close:    pool.Close,
	}
}

func sqliteStores(db *sql.DB) *stores {
	return &stores{
		accounts: sqlite.NewAccountRepo(db),
		usage:    sqlite.NewUsageRepo(db),
		payments: sqlite.NewPaymentRepo(db),
		tm:       sqlite.NewTxManager(db),
		close:    func() { _ = db.Close() },
	}
}

// buildAI registers every provider with a key and routes by model name.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	providers := map[string]adapter.AIServiceAdapter{}
	defaultProvider := ""
	if cfg.AI.GeminiKey != "" {
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		providers["gemini"] = g
		defaultProvider = "gemini"
	}
	if cfg.AI.OpenAIKey != "" {
		o, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		providers["openai"] = o
		if defaultProvider == "" {
			defaultProvider = "openai"
		}
	}
	if len(providers) == 0 {
		if !cfg.Runtime.Dev {
			return nil, errors.New("no AI provider configured")
		}
		logger.Warn().Msg("no AI provider configured; using noop adapter")
		return aiAdapters.NewNoopAIAdapter(logger), nil
	}
	logger.Info().Str("default_provider", defaultProvider).Str("model", cfg.AI.DefaultModel).Msg("AI adapter ready")
	multi := aiAdapters.NewMultiAIAdapter(defaultProvider, providers, nil)
	return aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit), nil
}

// buildGateway returns nil when payments are off outside dev mode; billing
// then answers ErrPaymentsDisabled.
func buildGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	if cfg.PaymentsEnabled() {
		return payAdapters.NewStripeGateway(cfg.Payment.Stripe)
	}
	if cfg.Runtime.Dev {
		logger.Warn().Msg("stripe not configured; using noop payment gateway")
		return payAdapters.NewNoopPaymentGateway(), nil
	}
	logger.Warn().Msg("stripe not configured; payments disabled")
	return nil, nil
}
