package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// MarketServiceInterface defines the catalogue and overview operations
type MarketServiceInterface interface {
	ListCars(ctx context.Context) ([]models.CarListing, error)
	Overview(ctx context.Context) (*models.MarketOverview, error)
}

// MarketHandler serves the vehicle catalogue and the market overview
type MarketHandler struct {
	service MarketServiceInterface
	logger  *logrus.Logger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(service MarketServiceInterface, logger *logrus.Logger) *MarketHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &MarketHandler{service: service, logger: logger}
}

// GetCars lists the vehicles available for analysis
func (h *MarketHandler) GetCars(c *gin.Context) {
	cars, err := h.service.ListCars(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list cars")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list cars",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    cars,
		"count":   len(cars),
	})
}

// GetMarketOverview returns the averaged price, top BUY signals and seasonality
func (h *MarketHandler) GetMarketOverview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build market overview")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to build market overview",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    overview,
	})
}
