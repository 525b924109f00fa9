package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/booking"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/config"
	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/logging"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/ariefcatur/marketplace-core/internal/session"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Booking.TimeZone)
	if err != nil {
		zap.L().Fatal("BOOKING_TIME_ZONE", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		zap.L().Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

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

	em, stopEvents := events.NewEmitter(ctx, cfg.Kafka.Brokers, cfg.ServiceName+"-worker")
	bookings := booking.New(db, c, em, booking.Options{
		Location:   loc,
		PendingTTL: cfg.Booking.PendingTTL,
		SweepBatch: cfg.Booking.SweepBatch,
	})

	sched := cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))
	if err := bookings.RegisterSweeper(sched, cfg.Booking.SweepSchedule); err != nil {
		zap.L().Fatal("schedule booking sweep", zap.Error(err))
	}

	durable, err := session.NewPostgresBackend(ctx, db, cfg.Session.TableName, cfg.Session.AutoCreateTable)
	if err != nil {
		zap.S().Errorf("session table: %s, pruning disabled", err.Error())
	} else if _, err := sched.AddFunc(cfg.Session.PruneSchedule, func() {
		defer func() {
			if err := recover(); err != nil {
				zap.S().Error(err)
			}
		}()
		n, err := durable.PruneExpired(context.Background())
		if err != nil {
			zap.L().Warn("prune sessions", zap.Error(err))
			return
		}
		zap.L().Debug("pruned sessions", zap.Int64("removed", n))
	}); err != nil {
		zap.L().Fatal("schedule session prune", zap.Error(err))
	}

	sched.Start()
	zap.L().Info("worker started",
		zap.String("booking_sweep", cfg.Booking.SweepSchedule),
		zap.String("session_prune", cfg.Session.PruneSchedule))

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zap.L().Info("shutting down worker")
	<-sched.Stop().Done()
	stopEvents()
}
