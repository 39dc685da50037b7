package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/billdesk/internal/app"
	"github.com/odyssey-erp/billdesk/internal/billapi"
	jobmetrics "github.com/odyssey-erp/billdesk/internal/jobs"
	"github.com/odyssey-erp/billdesk/internal/masterdata"
	"github.com/odyssey-erp/billdesk/internal/platform/cache"
	"github.com/odyssey-erp/billdesk/jobs"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	apiClient := billapi.NewClient(cfg.BillingAPIURL, cfg.BillingAPIToken, cfg.BillingAPITimeout)
	directory := masterdata.NewDirectory(apiClient, masterdata.NewCache(redisClient, cfg.MasterDataCacheTTL), logger)

	warmupJob := jobs.NewMasterDataWarmupJob(directory, logger, jobmetrics.NewMetrics(prometheus.DefaultRegisterer))
	warmupTask, err := jobs.NewMasterDataWarmupTask("cron")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMasterDataWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.WarmupCron, Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
