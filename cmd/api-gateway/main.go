package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mileage-api/api/swagger"
	"github.com/noah-isme/mileage-api/internal/handler"
	"github.com/noah-isme/mileage-api/internal/repository"
	"github.com/noah-isme/mileage-api/internal/service"
	"github.com/noah-isme/mileage-api/pkg/cache"
	"github.com/noah-isme/mileage-api/pkg/config"
	"github.com/noah-isme/mileage-api/pkg/database"
	"github.com/noah-isme/mileage-api/pkg/jobs"
	"github.com/noah-isme/mileage-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mileage-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mileage-api/pkg/middleware/requestid"
	"github.com/noah-isme/mileage-api/pkg/storage"
)

// @title Mileage API
// @version 1.0.0
// @description Daily odometer submissions, status tiers and supervisor review.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
		logr.Info("database migrations applied")
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	fileStore, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		logr.Fatal("failed to prepare storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	mileageRepo := repository.NewMileageRepository(db, metricsSvc)
	imageRepo := repository.NewMileageImageRepository(db)
	profileRepo := repository.NewTrainerProfileRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Summary.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	policy := service.NewMileagePolicy(profileRepo)
	mileageSvc := service.NewMileageService(
		mileageRepo,
		imageRepo,
		policy,
		service.NewStatusEngine(cfg.Mileage.WarningKM, cfg.Mileage.AlertKM),
		fileStore,
		signer,
		userRepo,
		cacheSvc,
		metricsSvc,
		logr,
		service.MileageServiceConfig{
			MaxImageBytes: cfg.Mileage.MaxImageBytes,
			MaxEdits:      cfg.Mileage.MaxEdits,
			APIPrefix:     cfg.APIPrefix,
			SummaryTTL:    cfg.Summary.CacheTTL,
			Location:      cfg.Location(),
		},
	)
	cleanupQueue := jobs.NewQueue("mileage-blob-cleanup", service.BlobCleanupHandler(fileStore, logr), jobs.QueueConfig{Workers: 1, Logger: logr})
	cleanupQueue.Start(context.Background())
	metricsSvc.TrackQueueDepth("mileage-blob-cleanup", cleanupQueue.Pending)
	mileageSvc.UseCleanupQueue(cleanupQueue)

	exportSvc := service.NewExportService(mileageRepo, policy, userRepo, service.ExportConfig{}, logr, nil, nil, nil)
	exportSvc.UseImageCounter(imageRepo)

	handlers := routeHandlers{
		auth:    handler.NewAuthHandler(authSvc),
		mileage: handler.NewMileageHandler(mileageSvc, exportSvc, validate),
		metrics: handler.NewMetricsHandler(metricsSvc, db),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	registerRoutes(r, cfg, authSvc, userRepo, metricsSvc, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cleanupQueue.Stop()
	if err := cacheRepo.Close(); err != nil {
		logr.Warn("failed to close redis", zap.Error(err))
	}
	logr.Info("server stopped")
}
