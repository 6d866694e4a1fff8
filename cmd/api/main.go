package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/timesheet/internal/api"
	"github.com/timmy/timesheet/internal/config"
	"github.com/timmy/timesheet/internal/logger"
	"github.com/timmy/timesheet/internal/notify"
	"github.com/timmy/timesheet/internal/repository"
	"github.com/timmy/timesheet/internal/service"
	"github.com/timmy/timesheet/internal/storage"
)

func main() {
	log := logger.New(logger.LoadFromEnv())
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access database handle: %v", err)
	}
	defer sqlDB.Close()
	store := repository.NewStore(db)

	ctx := logger.SetComponent(log.WithContext(context.Background()), "main")

	objectStorage, err := storage.NewStorage(&storage.Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		logger.Fatal("Failed to ensure storage bucket: %v", err)
	}

	// Background workers stop when bgCtx is canceled.
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	queue := notify.NewQueue(cfg.Notify.QueueSize)
	dispatcher := notify.NewDispatcher(queue, notify.NewSender(notify.WebhookConfig{
		URL:        cfg.Notify.WebhookURL,
		RetryCount: cfg.Notify.RetryCount,
		RetryWait:  cfg.Notify.RetryWait,
		Timeout:    cfg.Notify.Timeout,
	}))
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(bgCtx)
	}()

	registry := service.NewJobRegistry(cfg.Jobs.Retention)
	registry.StartSweeper(bgCtx, cfg.Jobs.SweepInterval)

	renderer, err := service.NewExcelRenderer(service.RenderConfig{
		Title:          cfg.Document.Title,
		LogoPath:       cfg.Document.LogoPath,
		CompanyName:    cfg.Document.CompanyName,
		CompanyAddress: cfg.Document.CompanyAddress,
		CompanyContact: cfg.Document.CompanyContact,
	})
	if err != nil {
		logger.Fatal("Failed to initialize renderer: %v", err)
	}
	fetcher := service.NewSignatureFetcher(objectStorage, service.SignatureConfig{
		MaxAttempts: cfg.Signature.MaxAttempts,
		RetryDelay:  cfg.Signature.RetryDelay,
	})
	documents := service.NewDocumentService(store, objectStorage, fetcher, renderer, cfg.Document.KeyPrefix)
	orchestrator := service.NewOrchestrator(registry, documents, cfg.Jobs.Timeout)
	confirmation := service.NewConfirmationService(store, queue, cfg.Confirmation.AtomicBatch)
	timesheets := service.NewTimesheetService(store, confirmation, registry, orchestrator)

	router := api.SetupRouter(cfg, api.RouterDeps{
		Timesheets: timesheets,
		DB:         sqlDB,
		Logger:     log,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.CtxInfo(ctx, "Starting API server: port=%d, mode=%s, storage=%s", cfg.Server.Port, cfg.Server.Mode, cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.CtxInfo(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.CtxError(ctx, "Server forced to shutdown: %v", err)
	}
	orchestrator.Shutdown(shutdownCtx)
	stopBackground()
	<-dispatcherDone

	logger.CtxInfo(ctx, "Server exited")
}
