package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/carprice-ai-go/internal/api/handlers"
	"github.com/irfndi/carprice-ai-go/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes.
type Handlers struct {
	Health         *handlers.HealthHandler
	Recommendation *handlers.RecommendationHandler
	Market         *handlers.MarketHandler
	Cache          *handlers.CacheHandler
}

// NewRouter builds the gin engine with recovery, tracing, request logging
// and CORS, then mounts the routes.
func NewRouter(serviceName string, allowedOrigins []string, h Handlers, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(allowedOrigins))

	SetupRoutes(router, h)
	return router
}

// SetupRoutes mounts the health checks and the v1 API on router.
func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.HealthCheck)
	router.GET("/live", h.Health.LivenessCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cars", h.Market.GetCars)
		v1.GET("/predict", h.Recommendation.Predict)
		v1.GET("/market-overview", h.Market.GetMarketOverview)

		cache := v1.Group("/cache")
		{
			cache.DELETE("", h.Cache.ClearCache)
			cache.GET("/stats", h.Cache.GetCacheStats)
		}
		v1.POST("/seed-market", h.Cache.SeedMarket)
	}
}
