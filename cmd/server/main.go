package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/config"
	"github.com/mamadbah2/fruitstock/internal/repository"
	"github.com/mamadbah2/fruitstock/internal/repository/cache"
	"github.com/mamadbah2/fruitstock/internal/repository/memory"
	"github.com/mamadbah2/fruitstock/internal/repository/mongodb"
	"github.com/mamadbah2/fruitstock/internal/repository/s3images"
	"github.com/mamadbah2/fruitstock/internal/repository/sheets"
	"github.com/mamadbah2/fruitstock/internal/scheduler"
	"github.com/mamadbah2/fruitstock/internal/server/handlers"
	"github.com/mamadbah2/fruitstock/internal/server/middleware"
	"github.com/mamadbah2/fruitstock/internal/server/router"
	"github.com/mamadbah2/fruitstock/internal/service/inventory"
	reportingsvc "github.com/mamadbah2/fruitstock/internal/service/reporting"
	"github.com/mamadbah2/fruitstock/pkg/clients/cloudinary"
	whatsappclient "github.com/mamadbah2/fruitstock/pkg/clients/whatsapp"
	"github.com/mamadbah2/fruitstock/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.App.Env, cfg.App.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	store, closeStore, err := openStore(startupCtx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init document store", zap.Error(err))
	}
	defer closeStore()

	var inventoryOpts []inventory.Option
	if cfg.Redis.Enabled() {
		client, err := cache.Connect(startupCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			baseLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		inventoryOpts = append(inventoryOpts,
			inventory.WithCountsCache(cache.NewCountsCache(client, cfg.Redis.CountsTTL, baseLogger.Named("repo.cache"))))
		baseLogger.Info("redis counts cache enabled")
	}

	images, err := openImageStore(startupCtx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init image store", zap.Error(err))
	}
	if images != nil {
		inventoryOpts = append(inventoryOpts, inventory.WithImageStore(images))
		baseLogger.Info("spoilage image uploads enabled", zap.String("driver", cfg.Images.Driver))
	} else {
		baseLogger.Warn("no image store configured, spoilage images disabled")
	}

	inventorySvc := inventory.NewService(store, baseLogger.Named("svc.inventory"), inventoryOpts...)

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid reporting timezone", zap.String("timezone", cfg.Reporting.Timezone), zap.Error(err))
	}

	reportingOpts := []reportingsvc.Option{reportingsvc.WithLocation(loc)}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(startupCtx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		reportingOpts = append(reportingOpts, reportingsvc.WithSheetsExport(sheetsRepo, cfg.Sheets.ReportRange))
	} else {
		baseLogger.Warn("google sheets not configured, stock report export disabled")
	}
	reportingSvc := reportingsvc.NewService(store, baseLogger.Named("svc.reporting"), reportingOpts...)

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, baseLogger.Named("middleware.ratelimit"))
	}

	catalogHandler := handlers.NewCatalogHandler(inventorySvc, reportingSvc, baseLogger.Named("handlers.catalog"))
	engine, err := router.New(catalogHandler, limiter, baseLogger.Named("router"))
	if err != nil {
		baseLogger.Fatal("failed to init router", zap.Error(err))
	}

	// Initialize Scheduler
	var schedOpts []scheduler.Option
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		schedOpts = append(schedOpts, scheduler.WithDigestRecipient(whatsClient, cfg.WhatsApp.ManagerNumber, reportingsvc.Digest))
	}
	sched := scheduler.NewScheduler(cfg.Reporting.CronSchedule, loc, reportingSvc, baseLogger.Named("scheduler"), schedOpts...)
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, log.Named("repo.mongodb"))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoRepo.Close(closeCtx); err != nil {
			log.Error("failed to close mongodb connection", zap.Error(err))
		}
	}
	return mongoRepo, closeFn, nil
}

func openImageStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (inventory.ImageStore, error) {
	switch cfg.Images.Driver {
	case config.ImagesCloudinary:
		return cloudinary.NewClient(cfg.Cloudinary), nil
	case config.ImagesS3:
		return s3images.NewStore(ctx, cfg.S3, log.Named("repo.s3images"))
	default:
		return nil, nil
	}
}
