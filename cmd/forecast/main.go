package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/cache/redis"
	"github.com/qa-forecast/backend/internal/metrics"
	"github.com/qa-forecast/backend/internal/pipeline"
	"github.com/qa-forecast/backend/internal/storage/sqlite"
	"github.com/qa-forecast/backend/pkg/config"
	appLogger "github.com/qa-forecast/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting QA yield forecast pipeline")
	metrics.Init()

	db, err := sqlite.NewClient(cfg.Warehouse.Path)
	if err != nil {
		appLogger.Fatal("Failed to create warehouse client", zap.Error(err))
	}
	defer db.Close()

	err = db.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cache.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, db, cache)
	runErr := p.Run(ctx)

	status := "success"
	if runErr != nil {
		status = "failure"
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()

	if cfg.Metrics.PushGateway != "" {
		if err := metrics.Push(cfg.Metrics.PushGateway, cfg.Metrics.Job, p.RunID()); err != nil {
			appLogger.Warn("Failed to push metrics", zap.Error(err))
		}
	}

	if runErr != nil {
		appLogger.Sync()
		appLogger.Fatal("Pipeline failed", zap.Error(runErr))
	}
}
