package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/middleware"
	"github.com/irfndi/carprice-ai-go/internal/models"
	"github.com/irfndi/carprice-ai-go/internal/services"
	"github.com/irfndi/carprice-ai-go/internal/valuation"
)

// RecommendationServiceInterface defines the prediction operations the handler needs
type RecommendationServiceInterface interface {
	Predict(ctx context.Context, q models.VehicleQuery) (*models.Prediction, error)
}

// RecommendationHandler serves buy-signal predictions
type RecommendationHandler struct {
	service RecommendationServiceInterface
	logger  *logrus.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(service RecommendationServiceInterface, logger *logrus.Logger) *RecommendationHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &RecommendationHandler{service: service, logger: logger}
}

// predictQuery is the query-string form of models.VehicleQuery. Mileage is a
// pointer so an explicit mileage=0 is told apart from an absent parameter.
type predictQuery struct {
	models.ItemKey
	Mileage   *int   `form:"mileage"`
	Condition string `form:"condition"`
	Region    string `form:"region"`
}

func (p predictQuery) vehicle() models.VehicleQuery {
	q := models.VehicleQuery{
		ItemKey:   p.ItemKey,
		Mileage:   services.DefaultMileage,
		Condition: p.Condition,
		Region:    p.Region,
	}
	if p.Mileage != nil {
		q.Mileage = *p.Mileage
	}
	return services.WithDefaults(q)
}

// Predict returns the BUY/WAIT/NEUTRAL signal for a vehicle
// @Summary Analyse a vehicle
// @Tags predict
// @Param make query string true "Make"
// @Param model query string true "Model"
// @Param year query int true "Model year"
// @Param mileage query int false "Mileage" default(50000)
// @Param condition query string false "Condition" default(good)
// @Param region query string false "Region" default(california)
// @Produce json
// @Router /api/v1/predict [get]
func (h *RecommendationHandler) Predict(c *gin.Context) {
	var params predictQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid query parameters: " + err.Error(),
		})
		return
	}
	q := params.vehicle()
	middleware.AddSpanAttribute(c, "vehicle.item", q.ItemKey.String())

	prediction, err := h.service.Predict(c.Request.Context(), q)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrInvalidQuery):
			status = http.StatusBadRequest
		case errors.Is(err, valuation.ErrValuationFailed):
			status = http.StatusBadGateway
		}
		middleware.RecordError(c, err, "prediction failed")
		h.logger.WithFields(logrus.Fields{
			"make":   q.Make,
			"model":  q.Model,
			"year":   q.Year,
			"status": status,
			"error":  err.Error(),
		}).Warn("Prediction request failed")
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	middleware.AddSpanAttribute(c, "prediction.cached", prediction.Cached)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    prediction,
	})
}
