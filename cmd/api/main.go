package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/booking"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/catalog"
	"github.com/ariefcatur/marketplace-core/internal/config"
	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/httpx"
	"github.com/ariefcatur/marketplace-core/internal/inventory"
	"github.com/ariefcatur/marketplace-core/internal/logging"
	"github.com/ariefcatur/marketplace-core/internal/orders"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/ariefcatur/marketplace-core/internal/session"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.Validate(); err != nil {
		zap.L().Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		zap.L().Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.Postgres.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			zap.L().Fatal("migrate", zap.Error(err))
		}
	}

	// Redis (optional)
	rh, err := redisx.New(cfg.Redis)
	if err != nil {
		zap.L().Fatal("redis", zap.Error(err))
	}
	defer func() { _ = rh.Close() }()

	c, err := cache.New(rh, cfg.Redis.LocalSize)
	if err != nil {
		zap.L().Fatal("cache", zap.Error(err))
	}

	// Sessions
	durable, err := session.NewPostgresBackend(ctx, db, cfg.Session.TableName, cfg.Session.AutoCreateTable)
	if err != nil {
		zap.L().Fatal("session table", zap.Error(err))
	}
	var remote session.Backend
	if rh.Enabled() {
		remote = session.NewRedisBackend(rh)
	}
	sessStore := session.NewTiered(cfg.Session.Store, remote, durable, cfg.Session.TTL)
	defer sessStore.Close()
	cookies := session.NewCookieStore(sessStore, &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Session.TTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}, []byte(cfg.Session.Secret))

	// Change notifications
	em, stopEvents := events.NewEmitter(ctx, cfg.Kafka.Brokers, cfg.ServiceName)

	// Engines
	loc, _ := time.LoadLocation(cfg.Booking.TimeZone)
	stock := inventory.NewService(db, c, em, cfg.Inventory.Batch)
	router := httpx.NewRouter(&httpx.Handlers{
		Catalog: catalog.New(db, c, cfg.Catalog.CacheTTL),
		Bookings: booking.New(db, c, em, booking.Options{
			Location:   loc,
			PendingTTL: cfg.Booking.PendingTTL,
			SweepBatch: cfg.Booking.SweepBatch,
		}),
		Orders:      orders.New(db, c, em, stock),
		Inventory:   stock,
		Sessions:    cookies,
		SessionName: cfg.Session.CookieName,
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		zap.L().Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("redis", rh.Enabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zap.L().Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	stopEvents()
}
