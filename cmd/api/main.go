package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/natours/internal/http/handlers"
	"github.com/diagnosis/natours/internal/http/middleware"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/internal/http/router"
	"github.com/diagnosis/natours/internal/jobs"
	"github.com/diagnosis/natours/internal/platform/mailer"
	"github.com/diagnosis/natours/internal/repo"
	"github.com/diagnosis/natours/internal/repo/memory"
	"github.com/diagnosis/natours/internal/repo/mongodb"
	"github.com/diagnosis/natours/internal/repo/postgres"
	"github.com/diagnosis/natours/internal/repo/redisstore"
	"github.com/diagnosis/natours/internal/service"
	"github.com/diagnosis/natours/pkg/auth"
	"github.com/diagnosis/natours/pkg/config"
	"github.com/diagnosis/natours/pkg/database"
	"github.com/diagnosis/natours/pkg/events"
	"github.com/diagnosis/natours/pkg/logger"
	pkgmw "github.com/diagnosis/natours/pkg/middleware"
	"github.com/joho/godotenv"
)

func main() {
	// .env first, then config.env; missing files are fine
	_ = godotenv.Load()
	_ = godotenv.Load("config.env")

	cfg := config.Load()
	logger.Init(os.Stdout, cfg.Server.Environment, cfg.Server.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checks := map[string]pkgmw.HealthCheck{}

	hasher := service.NewArgon2Hasher(cfg.Auth.Argon2Memory, cfg.Auth.Argon2Iterations, cfg.Auth.Argon2Parallelism)
	hook := service.PasswordHook(hasher, cfg.Auth.PasswordChangeSkew, nil)

	// Credential store
	var users repo.UsersRepo
	var pgIdempotency *postgres.IdempotencyRepoImpl
	if cfg.Database.URL != "" {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		users = postgres.NewUsersRepo(pool, hook)
		pgIdempotency = postgres.NewIdempotencyRepo(pool)
		checks["postgres"] = pool.Ping
	} else {
		if cfg.IsProduction() {
			logger.Error("DATABASE_URL is required in production")
			os.Exit(1)
		}
		logger.Warn("DATABASE_URL not set, using in-memory user store")
		users = memory.NewUsersRepo(hook)
	}

	// Event bus
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		publisher = nc
	}
	defer publisher.Close()

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("Failed to create token issuer", "error", err)
		os.Exit(1)
	}

	authSvc := service.NewAuthService(users, issuer, hasher, mailer.FromConfig(cfg.Email), publisher, cfg.Auth.PasswordResetTTL)
	userSvc := service.NewUserService(users, publisher)
	errs := response.NewWriter(!cfg.IsProduction())

	deps := router.Deps{
		Auth: handlers.NewAuthHandler(authSvc, errs, handlers.CookieOptions{
			TTL:    cfg.Auth.CookieTTL,
			Secure: cfg.IsProduction(),
		}, cfg.Server.PublicURL),
		Users:          handlers.NewUserHandler(userSvc, errs),
		Authn:          authSvc,
		Errs:           errs,
		HealthChecks:   checks,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.Server.CORSOrigins,
	}

	// Tours and reviews
	client, err := database.ConnectMongo(ctx, cfg.Mongo.URI)
	switch {
	case err != nil && cfg.IsProduction():
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	case err != nil:
		logger.Warn("MongoDB unavailable, tour and review routes disabled", "error", err)
	default:
		defer database.DisconnectMongo(client)

		db := client.Database(cfg.Mongo.Database)
		tours := mongodb.NewToursRepo(db)
		reviews := mongodb.NewReviewsRepo(db)
		if err := tours.EnsureIndexes(ctx); err != nil {
			logger.Error("Failed to create tour indexes", "error", err)
			os.Exit(1)
		}
		if err := reviews.EnsureIndexes(ctx); err != nil {
			logger.Error("Failed to create review indexes", "error", err)
			os.Exit(1)
		}
		deps.Tours = handlers.NewTourHandler(tours, errs, publisher)
		deps.Reviews = handlers.NewReviewHandler(reviews, errs, publisher)
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	// Rate limiting and idempotency
	var counter middleware.Counter = middleware.NewMemoryCounter()
	if cfg.Redis.URL != "" {
		rdb, err := database.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		counter = redisstore.NewRateCounter(rdb)
		deps.Idempotency = redisstore.NewIdempotencyStore(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else if pgIdempotency != nil {
		deps.Idempotency = pgIdempotency
	}
	deps.RateLimiter = middleware.NewRateLimiter(counter, middleware.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	}, errs)

	// Scheduled jobs
	scheduler := jobs.NewScheduler()
	if err := scheduler.Add(cfg.Jobs.ResetCleanupSchedule, jobs.NewResetTokenCleanupJob(users)); err != nil {
		logger.Error("Invalid job schedule", "schedule", cfg.Jobs.ResetCleanupSchedule, "error", err)
		os.Exit(1)
	}
	if pgIdempotency != nil {
		if err := scheduler.Add("@hourly", jobs.NewIdempotencyCleanupJob(pgIdempotency)); err != nil {
			logger.Error("Invalid job schedule", "error", err)
			os.Exit(1)
		}
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.New(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down natours API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		scheduler.Stop(ctx)
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting natours API", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	<-done
}
