package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"muscleai_backend/internal/controller"
	"muscleai_backend/internal/middleware"
	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/internal/service"
	"muscleai_backend/pkg/cache"
	"muscleai_backend/pkg/config"
	"muscleai_backend/pkg/cron"
	"muscleai_backend/pkg/database"
	"muscleai_backend/pkg/email"
	"muscleai_backend/pkg/gateway"
	"muscleai_backend/pkg/seed"
	"muscleai_backend/pkg/utils/cloudflare"
	"muscleai_backend/pkg/utils/jwt"
)

const shutdownTimeout = 15 * time.Second

func newLogger(cfg config.ServerConfig) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func setupGateways(cfg *config.Config) (*gateway.Registry, error) {
	var razorpayGW, stripeGW gateway.Gateway
	if cfg.Razorpay.KeyID != "" && cfg.Razorpay.KeySecret != "" {
		razorpayGW = gateway.NewRazorpay(gateway.RazorpayOptions{
			KeyID:         cfg.Razorpay.KeyID,
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
			Pricing:       gateway.INRPricing(cfg.Billing.USDToINR),
		})
	}
	if cfg.Stripe.SecretKey != "" {
		stripeGW = gateway.NewStripe(gateway.StripeOptions{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    cfg.Server.PublicURL + "/functions/v1/payment-callback/stripe",
			CancelURL:     cfg.Server.PublicURL + "/functions/v1/payment-callback/stripe",
		})
	}

	switch cfg.Billing.Gateway {
	case gateway.ProviderRazorpay:
		if razorpayGW == nil {
			return nil, errors.New("razorpay is the billing gateway but is not configured")
		}
		if stripeGW != nil {
			return gateway.NewRegistry(razorpayGW, stripeGW), nil
		}
		return gateway.NewRegistry(razorpayGW), nil
	case gateway.ProviderStripe:
		if stripeGW == nil {
			return nil, errors.New("stripe is the billing gateway but is not configured")
		}
		if razorpayGW != nil {
			return gateway.NewRegistry(stripeGW, razorpayGW), nil
		}
		return gateway.NewRegistry(stripeGW), nil
	}
	return nil, errors.New("unsupported billing gateway " + cfg.Billing.Gateway)
}

func setupMailer(cfg *config.Config, log *slog.Logger) (*email.EmailService, error) {
	var sender email.Sender = email.NewLogSender(log)
	if cfg.Email.Enabled() {
		pm, err := email.NewPostmarkSender(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.From)
		if err != nil {
			return nil, err
		}
		sender = pm
	} else {
		log.Warn("POSTMARK_SERVER_TOKEN not set, emails will only be logged")
	}
	return email.NewEmailService(sender, cfg.Billing.AppName, log)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("could not load configuration", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg.Server)
	slog.SetDefault(log)

	db, err := database.Open(database.Options{
		DSN:          cfg.Database.URL,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		log.Error("could not connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db, log, model.All()...); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store := repository.New(db)
	if err := seed.SeedSubscriptionPlans(ctx, store, log); err != nil {
		log.Error("could not seed subscription plans", "error", err)
		os.Exit(1)
	}

	health := map[string]controller.HealthCheck{"database": store.Ping}

	var streakCache cache.StreakCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Error("could not connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		streakCache = rdb
		health["redis"] = rdb.Health
	} else {
		log.Warn("REDIS_ADDR not set, using in-process streak cache")
		streakCache = cache.NewMemory(cfg.Redis.TTL)
	}

	registry, err := setupGateways(cfg)
	if err != nil {
		log.Error("could not configure payment gateways", "error", err)
		os.Exit(1)
	}

	mailer, err := setupMailer(cfg, log)
	if err != nil {
		log.Error("could not initialize email service", "error", err)
		os.Exit(1)
	}

	var photos service.PhotoStorage
	if cfg.Storage.Enabled() {
		r2, err := cloudflare.NewR2Storage(ctx, cfg.Storage)
		if err != nil {
			log.Error("could not initialize photo storage", "error", err)
			os.Exit(1)
		}
		photos = r2
	} else {
		log.Warn("R2 storage not configured, analysis photos will not be stored")
	}

	clock := service.Clock(service.SystemClock)
	notify := service.NewNotificationService(store, mailer, log, clock)
	expiry := service.NewExpiryService(store, notify, cfg.Billing.RenewalGrace, log, clock)
	quota := service.NewQuotaService(store, expiry, log, clock)
	streaks := service.NewStreakService(store, streakCache, notify, log, clock)
	reminders := service.NewReminderService(store, notify, log, clock)

	h := controller.New(controller.Services{
		Subscriptions: service.NewSubscriptionService(store, registry, notify, expiry, service.SubscriptionOptions{
			Policy:      cfg.Billing.CancellationPolicy,
			CycleDays:   cfg.Billing.CycleDays,
			AppName:     cfg.Billing.AppName,
			CallbackURL: cfg.Server.PublicURL + "/functions/v1/payment-callback",
		}, log, clock),
		Reconciler:    service.NewReconciler(store, registry, notify, cfg.Billing.CycleDays, log, clock),
		Quota:         quota,
		Streaks:       streaks,
		Notifications: notify,
		Expiry:        expiry,
		Analyses:      service.NewAnalysisService(store, quota, streaks, photos, log, clock),
		Accounts:      service.NewAccountService(store, log),
	}, health, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.Billing.AppName,
		ErrorHandler: middleware.ErrorHandler(log),
		// Analysis photos arrive as multipart uploads.
		BodyLimit: 10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.Metrics())

	verifier := jwt.NewVerifier(cfg.Auth.JWTSecret)
	controller.Routes(app, h, middleware.Auth(verifier, store, log))

	scheduler := cron.NewScheduler(log)
	if err := scheduler.Add("subscription-expiry", cfg.Cron.ExpirySchedule, 10*time.Minute, cron.SubscriptionExpiry(expiry, log)); err != nil {
		log.Error("could not schedule job", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Add("streak-reminder", cfg.Cron.ReminderSchedule, 30*time.Minute, cron.StreakReminder(reminders, log, service.SystemClock)); err != nil {
		log.Error("could not schedule job", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	go func() {
		log.Info("server is running", "port", cfg.Server.Port, "gateway", registry.Primary().Name(), "env", cfg.Server.Environment)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Error("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
