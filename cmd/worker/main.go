package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/finvera/finvera/internal/app"
	"github.com/finvera/finvera/internal/audit"
	"github.com/finvera/finvera/internal/auth"
	jobmetrics "github.com/finvera/finvera/internal/jobs"
	"github.com/finvera/finvera/internal/platform/db"
	"github.com/finvera/finvera/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	handlers := &jobs.Handlers{
		Logger:   logger,
		Metrics:  jobmetrics.NewMetrics(nil),
		Sender:   &jobs.LogInvitationSender{Logger: logger},
		Audit:    audit.NewRepository(pool),
		Sessions: auth.NewService(auth.NewRepository(pool)),
	}

	purgeAuditTask, err := jobs.NewPurgeAuditTask(cfg.AuditRetentionDays)
	if err != nil {
		logger.Error("build audit purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendInvitation, Handler: handlers.HandleSendInvitation},
			{Type: jobs.TaskTypePurgeAudit, Handler: handlers.HandlePurgeAudit},
			{Type: jobs.TaskTypePurgeSessions, Handler: handlers.HandlePurgeSessions},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 3 * * *", Task: purgeAuditTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 3 * * *", Task: jobs.NewPurgeSessionsTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
