package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mileage-api/internal/repository"
	"github.com/noah-isme/mileage-api/internal/service"
	"github.com/noah-isme/mileage-api/pkg/cache"
	"github.com/noah-isme/mileage-api/pkg/config"
	"github.com/noah-isme/mileage-api/pkg/database"
	"github.com/noah-isme/mileage-api/pkg/logger"
	"github.com/noah-isme/mileage-api/pkg/storage"
)

func main() {
	var (
		batchSize  int
		pruneBlobs bool
		orphanTTL  time.Duration
		jsonOut    bool
	)

	flag.IntVar(&batchSize, "batch", 500, "Records fetched per batch")
	flag.BoolVar(&pruneBlobs, "prune-blobs", false, "Also delete stored photos no record references")
	flag.DurationVar(&orphanTTL, "orphan-ttl", 24*time.Hour, "Minimum age of an unreferenced photo before it is pruned")
	flag.BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summary cache will not be invalidated", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	fileStore, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		logr.Fatal("failed to prepare storage", zap.Error(err))
	}

	mileageRepo := repository.NewMileageRepository(db, nil)
	svc := service.NewMileageService(
		mileageRepo,
		repository.NewMileageImageRepository(db),
		service.NewMileagePolicy(repository.NewTrainerProfileRepository(db)),
		service.NewStatusEngine(cfg.Mileage.WarningKM, cfg.Mileage.AlertKM),
		fileStore,
		nil,
		nil,
		service.NewCacheService(cacheRepo, nil, cfg.Summary.CacheTTL, logr, redisClient != nil),
		nil,
		logr,
		service.MileageServiceConfig{Location: cfg.Location()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := svc.Recalculate(ctx, batchSize)
	if err != nil {
		logr.Fatal("recalculation aborted", zap.Error(err))
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		for _, d := range report.Deltas {
			fmt.Printf("%s: %s\n", d.RecordID, service.DescribeDelta(d))
		}
		fmt.Printf("Scanned %d, updated %d, failed %d in %s\n", report.Scanned, report.Updated, report.Failed, report.Duration.Round(time.Millisecond))
	}

	if pruneBlobs {
		removed, err := svc.PruneBlobs(ctx, orphanTTL)
		if err != nil {
			logr.Fatal("blob pruning failed", zap.Error(err))
		}
		fmt.Printf("Pruned %d orphaned photo(s)\n", len(removed))
	}

	if report.Failed > 0 {
		os.Exit(1)
	}
}
