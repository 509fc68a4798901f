package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/wellness-admin/internal/config"
	"github.com/iliyamo/wellness-admin/internal/database"
	"github.com/iliyamo/wellness-admin/internal/handler"
	"github.com/iliyamo/wellness-admin/internal/jobs"
	"github.com/iliyamo/wellness-admin/internal/middleware"
	"github.com/iliyamo/wellness-admin/internal/platform"
	"github.com/iliyamo/wellness-admin/internal/queue"
	"github.com/iliyamo/wellness-admin/internal/repository"
	"github.com/iliyamo/wellness-admin/internal/router"
	"github.com/iliyamo/wellness-admin/internal/service"
	"github.com/iliyamo/wellness-admin/internal/session"
	"github.com/iliyamo/wellness-admin/internal/wizard"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx) // .env + environment
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.App, os.Stdout)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	journal := repository.NewJournalRepo(db)

	// Redis is optional: without it sessions live in memory and the cache
	// and rate limiter pass through.
	rdb := config.NewRedisClient(cfg.Redis)
	var (
		store  session.Store
		purger jobs.Purger
	)
	if rdb != nil {
		defer rdb.Close()
		store = session.NewRedisStore(rdb, "sess")
	} else {
		logger.Warn("redis unavailable; using in-memory sessions, cache and rate limit disabled")
		mem := session.NewMemoryStore()
		store, purger = mem, mem
	}
	cache := middleware.NewResponseCache(cfg.Cache, rdb)

	client, err := platform.New(platform.Options{
		BaseURL: cfg.Platform.BaseURL,
		Timeout: cfg.Platform.Timeout,
		RPS:     cfg.Platform.RPS,
		Burst:   cfg.Platform.Burst,
	})
	if err != nil {
		return err
	}

	loc := cfg.App.Location()
	workflow := service.NewWorkflow(service.Deps{
		Dial:      func(token string) service.Platform { return client.WithToken(token) },
		Journal:   journal,
		Publisher: &service.AMQPPublisher{URL: cfg.RabbitMQURL, Queue: cfg.AuditQueue, Logger: logger},
		Cache:     cache,
		Logger:    logger,
		Location:  loc,
	})
	auth := service.NewAuth(client, store, cfg.JWT.Secret, cfg.JWT.AccessTTL)

	issuances := wizard.NewRegistry[*wizard.IssuanceWizard]()
	reservations := wizard.NewRegistry[*wizard.ReservationWizard]()

	sched, err := jobs.Start(ctx, &jobs.Janitor{
		Wizards: map[string]jobs.Sweeper{
			"issuance":    issuances,
			"reservation": reservations,
		},
		Journal:    journal,
		Sessions:   purger,
		IdleTTL:    cfg.Jobs.WizardIdleTTL,
		StaleAfter: cfg.Jobs.JournalStale,
		Logger:     logger,
	}, cfg.Jobs.SweepInterval)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	consumer := &queue.Consumer{URL: cfg.RabbitMQURL, Queue: cfg.AuditQueue, LogPath: cfg.AuditLog, Logger: logger}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("audit consumer stopped", "err", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if id := middleware.OperatorID(c); id > 0 {
				attrs = append(attrs, "operator_id", id)
			}
			if v.Error != nil {
				logger.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
	// The limiter sits behind JWTAuth so its key carries the operator.
	limiter := middleware.NewTokenBucket(cfg.RateLimit, rdb, logger)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, cfg.JWT.Secret, logger), limiter)
	v1 := router.Protected(e, cfg.JWT.Secret, store, limiter)
	router.RegisterAdmin(v1, handler.NewAdminHandler(workflow, logger), cache.Middleware())
	router.RegisterWizards(v1,
		handler.NewIssuanceWizardHandler(workflow, issuances, logger),
		handler.NewReservationWizardHandler(workflow, reservations, logger),
	)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.Port
		logger.Info("listening", "addr", addr, "env", cfg.App.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
