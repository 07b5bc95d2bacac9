package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/serieshub/channels/internal/cache"
	"github.com/serieshub/channels/internal/channels"
	"github.com/serieshub/channels/internal/counter"
	"github.com/serieshub/channels/internal/models"
	"github.com/serieshub/channels/pkg/config"
	"github.com/serieshub/channels/pkg/logging"
)

// FeedComposer assembles the row-based feed response
type FeedComposer interface {
	Compose(ctx context.Context, keys []string, viewerID int64) ([]channels.Row, error)
}

// EngagementStore is the mutation surface the API exposes
type EngagementStore interface {
	RecordView(ctx context.Context, articleID, userID int64) (bool, error)
	TargetFor(itemType string, itemID int64) (counter.FavoriteTarget, error)
}

// Rebuilder triggers a full popularity recomputation
type Rebuilder interface {
	RebuildAll(ctx context.Context) (*models.PopularitySnapshot, error)
}

// Router sets up API routes
type Router struct {
	composer  FeedComposer
	counters  EngagementStore
	rebuilder Rebuilder
	cache     *cache.Cache
	cfg       config.ChannelsConfig
	logger    *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(composer FeedComposer, counters EngagementStore, rebuilder Rebuilder, redisCache *cache.Cache, cfg config.ChannelsConfig) *Router {
	return &Router{
		composer:  composer,
		counters:  counters,
		rebuilder: rebuilder,
		cache:     redisCache,
		cfg:       cfg,
		logger:    logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	group := engine.Group("/channels")
	group.GET("/rows", r.rowsHandler)
	group.POST("/view", r.viewHandler)
	group.POST("/favorite", r.favoriteHandler)
	group.POST("/rebuild", r.rebuildHandler)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "OK",
		"service": "channels-api",
	})
}
