// Command server starts the Gold Stream HTTP API.
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

	"github.com/redis/go-redis/v9"

	"github.com/goldstream/goldstream/internal/adapter/cache"
	"github.com/goldstream/goldstream/internal/adapter/hasher"
	"github.com/goldstream/goldstream/internal/adapter/httpserver"
	"github.com/goldstream/goldstream/internal/adapter/mail"
	"github.com/goldstream/goldstream/internal/adapter/observability"
	"github.com/goldstream/goldstream/internal/adapter/rates"
	"github.com/goldstream/goldstream/internal/adapter/repo/postgres"
	"github.com/goldstream/goldstream/internal/adapter/token"
	"github.com/goldstream/goldstream/internal/app"
	"github.com/goldstream/goldstream/internal/config"
	"github.com/goldstream/goldstream/internal/domain"
	"github.com/goldstream/goldstream/internal/usecase"
)

// redisAdapter narrows *redis.Client to the readiness interface.
type redisAdapter struct{ *redis.Client }

func (r redisAdapter) Ping(ctx context.Context) app.RedisPingResult { return r.Client.Ping(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Database: wait for reachability, then run migrations before anything
	// starts serving.
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.WaitReady(ctx, pool, cfg.DBConnectTimeout); err != nil {
		slog.Error("db not reachable", slog.Any("error", err))
		os.Exit(1)
	}
	applied, err := postgres.Migrate(cfg.DBURL)
	if err != nil {
		slog.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("migrations applied", slog.Int("count", applied))

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() { _ = rdb.Close() }()

	// Repositories
	userRepo := postgres.NewUserRepo(pool)
	operatorRepo := postgres.NewOperatorRepo(pool)
	blacklistRepo := postgres.NewBlacklistRepo(pool)
	dreamRepo := postgres.NewDreamRepo(pool)
	donationRepo := postgres.NewDonationRepo(pool)
	currencyRepo := postgres.NewCurrencyRepo(pool)
	settingsRepo := postgres.NewSettingsRepo(pool)
	catalogRepo := postgres.NewCatalogRepo(pool)
	notificationRepo := postgres.NewNotificationRepo(pool)

	// Adapters
	redisCache := cache.New(rdb)
	passwordHasher := hasher.New()
	tokens := token.New([]byte(cfg.JWTKey), cfg.AccessLifetime, cfg.RefreshLifetime)
	mailer := mail.NewLogMailer(logger)
	rateSource := rates.New(cfg.CurrencyAPIURL, cfg.CurrencyAPIKey, 10*time.Second)

	// Reference data
	sd := seeder{Currencies: currencyRepo, Catalog: catalogRepo, Operators: operatorRepo, Hasher: passwordHasher}
	if err := sd.run(ctx, cfg.SeedFile); err != nil {
		slog.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Usecases
	authSvc := usecase.NewAuthService(userRepo, operatorRepo, blacklistRepo, currencyRepo,
		redisCache, mailer, tokens, passwordHasher, usecase.AuthConfig{
			RegistrationAttempts: cfg.RegistrationAttempts,
			RegistrationWindow:   cfg.RegistrationWindow,
			ResetLifetime:        cfg.ResetLifetime,
			TrialDays:            cfg.TrialDays,
		})
	userSvc := usecase.NewUserService(userRepo, dreamRepo, currencyRepo, redisCache, domain.LevelBronze)
	dreamSvc := usecase.NewDreamService(dreamRepo, userRepo, donationRepo, currencyRepo, usecase.DreamConfig{
		NeedToDonateNum:  cfg.NeedToDonateNum,
		MaxDreamCount:    cfg.MaxDreamCount,
		DonationLifetime: cfg.DonationLifetime,
	})
	donationSvc := usecase.NewDonationService(donationRepo, dreamRepo, userRepo, currencyRepo,
		redisCache, mailer, usecase.DonationConfig{
			NeedToDonateNum:  cfg.NeedToDonateNum,
			MinimalDonation:  cfg.MinimalDonation,
			MaxDonation:      cfg.MaxDonation,
			DonationLifetime: cfg.DonationLifetime,
		})
	currencySvc := usecase.NewCurrencyService(currencyRepo, settingsRepo, rateSource, cfg.FinanceRatio, logger)
	catalogSvc := usecase.NewCatalogService(catalogRepo)
	notificationSvc := usecase.NewNotificationService(notificationRepo)
	operatorSvc := usecase.NewOperatorService(operatorRepo, userRepo, dreamRepo, settingsRepo, cfg.CharityLimit)

	// Periodic jobs
	stopScheduler, err := app.StartScheduler(cfg, currencySvc, donationSvc, logger)
	if err != nil {
		slog.Error("scheduler failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer stopScheduler()

	dbCheck, redisCheck := app.BuildReadinessChecks(pool, redisAdapter{rdb})

	srv := &httpserver.Server{
		Cfg:           cfg,
		Auth:          authSvc,
		Users:         userSvc,
		Dreams:        dreamSvc,
		Donations:     donationSvc,
		Currencies:    currencySvc,
		Catalog:       catalogSvc,
		Notifications: notificationSvc,
		Operators:     operatorSvc,
		Tokens:        tokens,
		DBCheck:       dbCheck,
		RedisCheck:    redisCheck,
	}

	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
