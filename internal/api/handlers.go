package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/serieshub/channels/internal/cache"
	"github.com/serieshub/channels/internal/channels"
	"github.com/serieshub/channels/internal/counter"
)

// rowsHandler serves the composed feed. Anonymous responses are cached
// briefly under the requested row set; identified requests carry
// per-viewer flags and always compose fresh.
func (r *Router) rowsHandler(c *gin.Context) {
	viewer := viewerID(c)

	raw := c.Query("rows")
	keys := channels.DefaultRowKeys
	if raw != "" {
		keys = strings.Split(raw, ",")
	}

	cacheKey := "rows:" + cache.HashKey(strings.Join(keys, ","))
	if viewer == 0 {
		var cached []channels.Row
		if err := r.cache.GetJSON(cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	rows, err := r.composer.Compose(c.Request.Context(), keys, viewer)
	if err != nil {
		r.logger.Error("Failed to compose feed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "failed to compose feed")
		return
	}

	if viewer == 0 {
		if err := r.cache.SetJSON(cacheKey, rows, r.cfg.ResponseCacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			r.logger.Warn("Failed to cache feed response", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, rows)
}

type viewRequest struct {
	ItemID int64 `json:"item_id" binding:"required"`
}

func (r *Router) viewHandler(c *gin.Context) {
	viewer, ok := requireViewer(c)
	if !ok {
		return
	}

	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "item_id is required")
		return
	}

	recorded, err := r.counters.RecordView(c.Request.Context(), req.ItemID, viewer)
	if err != nil {
		if errors.Is(err, counter.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "item not found")
			return
		}
		r.logger.Error("Failed to record view",
			zap.Int64("item_id", req.ItemID),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "failed to record view")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "recorded": recorded})
}

type favoriteRequest struct {
	ItemID   int64  `json:"item_id" binding:"required"`
	ItemType string `json:"item_type" binding:"required"`
}

// favoriteHandler toggles an item's favorite state. For series the
// toggle is a subscription; the response uses the same favorited field
// either way.
func (r *Router) favoriteHandler(c *gin.Context) {
	viewer, ok := requireViewer(c)
	if !ok {
		return
	}

	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "item_id and item_type are required")
		return
	}

	target, err := r.counters.TargetFor(req.ItemType, req.ItemID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "unknown item type")
		return
	}

	favorited, err := target.Toggle(c.Request.Context(), viewer)
	if err != nil {
		if errors.Is(err, counter.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "item not found")
			return
		}
		r.logger.Error("Failed to toggle favorite",
			zap.Int64("item_id", req.ItemID),
			zap.String("item_type", req.ItemType),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "failed to toggle favorite")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "favorited": favorited})
}

// rebuildHandler is the operator's manual rebuild trigger. It blocks
// until the pass completes and reports the counts.
func (r *Router) rebuildHandler(c *gin.Context) {
	snapshot, err := r.rebuilder.RebuildAll(c.Request.Context())
	if err != nil {
		r.logger.Error("Manual rebuild failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "rebuild failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"items_scored":  snapshot.ItemsScored,
		"series_ranked": len(snapshot.Items),
	})
}
