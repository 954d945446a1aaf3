// Sweeper is the maintenance daemon: it periodically terminates expired
// sessions, rejects expired handovers, purges terminated sessions past
// retention, and drains the audit spill buffer.
// Set DATABASE_URL; KAFKA_BROKERS and AUDIT_SPILL_PATH are optional.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shiftwise/backend/internal/audit"
	auditrepo "shiftwise/backend/internal/audit/repository"
	"shiftwise/backend/internal/audit/spill"
	"shiftwise/backend/internal/config"
	"shiftwise/backend/internal/db"
	floorrepo "shiftwise/backend/internal/floor/repository"
	handoverrepo "shiftwise/backend/internal/handover/repository"
	"shiftwise/backend/internal/notify"
	sessionrepo "shiftwise/backend/internal/session/repository"
	sessionservice "shiftwise/backend/internal/session/service"
	shiftrepo "shiftwise/backend/internal/shift/repository"
	shiftservice "shiftwise/backend/internal/shift/service"
	staffrepo "shiftwise/backend/internal/staff/repository"
	"shiftwise/backend/internal/sweep"
	"shiftwise/backend/pkg/logger"
)

const spillDrainBatch = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("sweeper: DATABASE_URL is required")
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()
	zlog = logger.Named(zlog, "sweeper")

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("open database", zap.Error(err))
	}
	defer sqlDB.Close()

	var (
		spillStore *spill.Store
		spiller    audit.Spiller
	)
	if cfg.AuditSpillPath != "" {
		spillStore, err = spill.Open(cfg.AuditSpillPath)
		if err != nil {
			zlog.Fatal("open audit spill", zap.Error(err))
		}
		defer spillStore.Close()
		spiller = spillStore
	}
	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(sqlDB), spiller, zlog)

	dispatcher, err := notify.NewKafkaDispatcher(cfg.KafkaBrokersList(), cfg.NotifyKafkaTopic)
	if err != nil {
		zlog.Fatal("kafka dispatcher", zap.Error(err))
	}
	if dispatcher != nil {
		defer dispatcher.Close()
	}

	registry := sessionservice.NewRegistry(
		sessionrepo.NewPostgresRepository(sqlDB),
		staffrepo.NewPostgresRepository(sqlDB),
		auditLog,
		sessionservice.Config{
			MaxSessionsPerUser:    cfg.MaxSessionsPerUser,
			InactivityTimeout:     cfg.InactivityTimeout(),
			AbsoluteTimeout:       cfg.AbsoluteTimeout(),
			WarningThreshold:      cfg.WarningThreshold(),
			EvictOldestOnOverflow: cfg.EvictOldestOnOverflow,
			Retention:             cfg.SessionRetention(),
		},
		zlog,
	)
	coordinator := shiftservice.NewCoordinator(
		shiftrepo.NewPostgresRepository(sqlDB),
		handoverrepo.NewPostgresRepository(sqlDB),
		staffrepo.NewPostgresRepository(sqlDB),
		floorrepo.NewPostgresReader(sqlDB),
		registry,
		auditLog,
		dispatcherOrNop(dispatcher),
		shiftservice.Config{
			HandoverTimeout:              cfg.HandoverTimeout(),
			AutomaticHandoverOnReLogin:   cfg.AutomaticHandoverOnReLogin,
			PreserveAuxiliarySessionData: cfg.PreserveAuxiliarySessionData,
		},
		zlog,
	)

	jobs := []sweep.Job{
		{Name: "expired-sessions", Run: func(ctx context.Context) (int, error) {
			res, err := registry.SweepExpiredSessions(ctx)
			return res.Terminated + int(res.Purged), err
		}},
		{Name: "expired-handovers", Run: coordinator.SweepExpiredHandovers},
	}
	if spillStore != nil {
		jobs = append(jobs, sweep.Job{Name: "audit-spill", Run: func(ctx context.Context) (int, error) {
			return auditLog.DrainSpill(ctx, spillDrainBatch)
		}})
	}

	runner, err := sweep.NewRunner(cfg.SweepSchedule, time.Minute, zlog, jobs...)
	if err != nil {
		zlog.Fatal("sweep runner", zap.Error(err))
	}

	runner.RunOnce(context.Background())
	runner.Start()
	zlog.Info("sweeper running", zap.String("schedule", cfg.SweepSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	zlog.Info("sweeper shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	runner.Stop(stopCtx)
}

func dispatcherOrNop(d *notify.KafkaDispatcher) notify.Dispatcher {
	if d == nil {
		return notify.Nop{}
	}
	return d
}
