package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/serieshub/channels/internal/api"
	"github.com/serieshub/channels/internal/cache"
	"github.com/serieshub/channels/internal/channels"
	"github.com/serieshub/channels/internal/counter"
	"github.com/serieshub/channels/internal/db"
	"github.com/serieshub/channels/internal/events"
	"github.com/serieshub/channels/internal/notifier"
	"github.com/serieshub/channels/internal/popularity"
	"github.com/serieshub/channels/pkg/config"
	"github.com/serieshub/channels/pkg/logging"
	"github.com/serieshub/channels/pkg/telemetry"
)

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
	logger.Info("Starting Channels API Server")

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

	// Domain event bus
	bus := events.NewBus()
	defer bus.Close()

	// Repositories
	repo := db.NewRepository(database.DB)
	articles := db.NewArticleRepository(repo)
	series := db.NewSeriesRepository(repo)
	categories := db.NewCategoryRepository(repo)
	comments := db.NewCommentRepository(repo)
	subscriptions := db.NewSubscriptionRepository(repo)
	favorites := db.NewFavoriteSetRepository(repo)
	viewLog := db.NewViewLogRepository(repo)
	notifications := db.NewNotificationRepository(repo)

	// Engagement counter store
	counters := counter.NewStore(articles, series, viewLog, favorites, subscriptions, bus, cfg.Channels.TrackingWindow())

	// Popularity aggregation
	aggregator := popularity.NewAggregator(articles, series, comments, subscriptions, redisCache, bus, cfg.Popularity)
	scheduler := popularity.NewScheduler(aggregator, cfg.Popularity)

	// Feed composition
	composer := channels.NewComposer(articles, series, categories, aggregator, counters, cfg.Channels)

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Popularity scheduler stopped", zap.Error(err))
		}
	}()

	eventNotifier := notifier.NewNotifier(notifications, bus)
	go func() {
		if err := eventNotifier.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Notifier stopped", zap.Error(err))
		}
	}()

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	router := api.NewRouter(composer, counters, aggregator, redisCache, cfg.Channels)
	router.SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
