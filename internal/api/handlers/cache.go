package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/services"
)

// CacheServiceInterface defines the cache maintenance operations
type CacheServiceInterface interface {
	SeedMarket(ctx context.Context) (*services.SeedReport, error)
	Clear(ctx context.Context) (*services.ClearReport, error)
	Stats() cache.Stats
}

// CacheHandler handles prediction cache maintenance endpoints
type CacheHandler struct {
	service CacheServiceInterface
	logger  *logrus.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(service CacheServiceInterface, logger *logrus.Logger) *CacheHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &CacheHandler{service: service, logger: logger}
}

// ClearCache deletes every cached prediction
// @Summary Clear the predictions cache
// @Tags cache
// @Produce json
// @Router /api/v1/cache [delete]
func (h *CacheHandler) ClearCache(c *gin.Context) {
	report, err := h.service.Clear(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to clear predictions cache")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to clear cache",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

// SeedMarket force-refreshes the seed BUY opportunities
func (h *CacheHandler) SeedMarket(c *gin.Context) {
	report, err := h.service.SeedMarket(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to seed market data")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to seed market data",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

// GetCacheStats returns result cache hit/miss counters
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.service.Stats(),
	})
}
