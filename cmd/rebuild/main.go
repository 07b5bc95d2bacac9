package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/serieshub/channels/internal/cache"
	"github.com/serieshub/channels/internal/db"
	"github.com/serieshub/channels/internal/popularity"
	"github.com/serieshub/channels/pkg/config"
	"github.com/serieshub/channels/pkg/logging"
	"github.com/serieshub/channels/pkg/telemetry"
)

// Operator tool: run one popularity rebuild and exit. The same pass the
// scheduler runs daily, for when a deploy or data fix should not wait.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Channels popularity rebuild")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Initialize Redis cache (optional)
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	repo := db.NewRepository(database.DB)
	aggregator := popularity.NewAggregator(
		db.NewArticleRepository(repo),
		db.NewSeriesRepository(repo),
		db.NewCommentRepository(repo),
		db.NewSubscriptionRepository(repo),
		redisCache,
		nil,
		cfg.Popularity,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	snapshot, err := aggregator.RebuildAll(ctx)
	if err != nil {
		logger.Fatal("Rebuild failed", zap.Error(err))
	}

	logger.Info("Rebuild finished",
		zap.Int("items_scored", snapshot.ItemsScored),
		zap.Int("series_ranked", len(snapshot.Items)),
		zap.Time("computed_at", snapshot.ComputedAt))
}
