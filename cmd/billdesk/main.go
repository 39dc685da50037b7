package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/billdesk/cmd/billdesk/cli"
	"github.com/odyssey-erp/billdesk/internal/app"
	"github.com/odyssey-erp/billdesk/internal/billapi"
	"github.com/odyssey-erp/billdesk/internal/masterdata"
	"github.com/odyssey-erp/billdesk/internal/observability"
	"github.com/odyssey-erp/billdesk/internal/platform/cache"
	"github.com/odyssey-erp/billdesk/internal/platform/db"
	"github.com/odyssey-erp/billdesk/internal/purchasebills"
	"github.com/odyssey-erp/billdesk/internal/shared"
	"github.com/odyssey-erp/billdesk/jobs"
	"github.com/odyssey-erp/billdesk/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		defer func() {
			_ = jobsCLI.Close()
		}()
		if err := jobsCLI.Run(ctx, os.Stdout, os.Args[2:]); err != nil {
			logger.Error("jobs", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

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

	metrics := observability.NewMetrics()
	deps := purchasebills.Deps{
		Metrics:       purchasebills.NewMetrics(metrics.Registerer()),
		Logger:        logger,
		Debounce:      cfg.PriceLookupDebounce,
		LookupTimeout: cfg.BillingAPITimeout,
	}

	if cfg.AuditEnabled() {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.EnsureAuditSchema(ctx, pool); err != nil {
			logger.Error("prepare audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Audit = shared.NewAuditLogger(pool)
	} else {
		logger.Info("PG_DSN not set, audit trail disabled")
	}

	apiClient := billapi.NewClient(cfg.BillingAPIURL, cfg.BillingAPIToken, cfg.BillingAPITimeout)
	if err := apiClient.Ping(ctx); err != nil {
		logger.Warn("billing api ping", slog.String("url", cfg.BillingAPIURL), slog.Any("error", err))
	}

	directory := masterdata.NewDirectory(apiClient, masterdata.NewCache(redisClient, cfg.MasterDataCacheTTL), logger)
	deps.API = apiClient
	deps.Catalog = directory

	workspaces := purchasebills.NewWorkspaces(deps, cfg.WorkspaceIdleTTL)

	sessionManager := shared.NewSessionManager(redisClient, "billdesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	sessionManager.OnDestroy(workspaces.Drop)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	lang, err := language.Parse(cfg.PrintLocale)
	if err != nil {
		logger.Warn("invalid print locale, using en-US", slog.String("locale", cfg.PrintLocale), slog.Any("error", err))
		lang = language.AmericanEnglish
	}
	reportClient := report.NewClient(cfg.GotenbergURL, 30*time.Second)
	printer, err := report.NewBillPrinter(reportClient, lang)
	if err != nil {
		logger.Error("init bill printer", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		Metrics:             metrics,
		PurchaseBillHandler: purchasebills.NewHandler(logger, workspaces, printer),
		MasterDataHandler:   masterdata.NewHandler(logger, directory),
		ReportHandler:       report.NewHandler(reportClient, logger),
		JobHandler:          jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
