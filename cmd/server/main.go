package main // Entry point package

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

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/zapshift/parcel-service/internal/config"
	"github.com/zapshift/parcel-service/internal/database"
	"github.com/zapshift/parcel-service/internal/handler"
	"github.com/zapshift/parcel-service/internal/middleware"
	"github.com/zapshift/parcel-service/internal/payment"
	"github.com/zapshift/parcel-service/internal/queue"
	"github.com/zapshift/parcel-service/internal/repository"
	"github.com/zapshift/parcel-service/internal/router"
	"github.com/zapshift/parcel-service/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// stores is the record store pair selected by STORE_DRIVER.
type stores struct {
	parcels  repository.ParcelStore
	payments repository.PaymentStore
	close    func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := database.OpenMongo(cfg.MongoURI)
		if err != nil {
			return stores{}, fmt.Errorf("open mongo: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, fmt.Errorf("mongo indexes: %w", err)
		}
		return stores{
			parcels:  repository.NewMongoParcelRepo(db),
			payments: repository.NewMongoPaymentRepo(client, db),
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil
	case config.StoreMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return stores{parcels: mem, payments: mem, close: func() {}}, nil
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return stores{}, fmt.Errorf("open mysql: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		return stores{
			parcels:  repository.NewParcelRepo(db),
			payments: repository.NewPaymentRepo(db),
			close:    func() { _ = db.Close() },
		}, nil
	}
}

func run(ctx context.Context, cfg config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	var (
		gateway  payment.Gateway
		verifier payment.WebhookVerifier
	)
	if cfg.PaymentMock {
		slog.Warn("PAYMENT_MOCK is set; checkout sessions are simulated")
		gateway = payment.NewMockGateway()
	} else {
		sg := payment.NewStripeGateway(cfg.StripeSecret, cfg.StripeWebhookSecret)
		gateway = sg
		if cfg.StripeWebhookSecret != "" {
			verifier = sg
		}
	}

	var publisher service.EventPublisher
	if cfg.EventsEnabled {
		publisher = service.NewAMQPPublisher(cfg.AMQPURL)
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogDir: cfg.EventLogDir}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("payment consumer stopped", "err", err)
			}
		}()
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	cacheCfg := config.LoadCacheConfig()
	cache := router.Cache{
		Read:       middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate: middleware.InvalidateCache(cacheCfg, rdb),
	}

	parcels := service.NewParcelService(st.parcels)
	payments := service.NewPaymentService(st.parcels, st.payments, gateway, publisher, service.PaymentSettings{
		Currency:   cfg.Currency,
		SiteDomain: cfg.SiteDomain,
	})
	paymentHandler := handler.NewPaymentHandler(payments)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(slog.Default()))
	e.Use(echomw.CORS())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterParcels(e, handler.NewParcelHandler(parcels), cache)
	router.RegisterPayments(e, paymentHandler, cache)
	if cfg.JWTSecret != "" {
		router.RegisterAdmin(e, paymentHandler, cfg.JWTSecret)
	} else {
		slog.Info("JWT_SECRET not set; admin routes disabled")
	}
	if verifier != nil {
		router.RegisterWebhooks(e, handler.NewWebhookHandler(verifier, payments), cache)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "env", cfg.Env, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
