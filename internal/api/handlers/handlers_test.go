package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/models"
	"github.com/irfndi/carprice-ai-go/internal/services"
	"github.com/irfndi/carprice-ai-go/internal/valuation"
)

// MockRecommendationService is a mock implementation of RecommendationServiceInterface
type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) Predict(ctx context.Context, q models.VehicleQuery) (*models.Prediction, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

// MockMarketService is a mock implementation of MarketServiceInterface
type MockMarketService struct {
	mock.Mock
}

func (m *MockMarketService) ListCars(ctx context.Context) ([]models.CarListing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CarListing), args.Error(1)
}

func (m *MockMarketService) Overview(ctx context.Context) (*models.MarketOverview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketOverview), args.Error(1)
}

// MockCacheService is a mock implementation of CacheServiceInterface
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) SeedMarket(ctx context.Context) (*services.SeedReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SeedReport), args.Error(1)
}

func (m *MockCacheService) Clear(ctx context.Context) (*services.ClearReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ClearReport), args.Error(1)
}

func (m *MockCacheService) Stats() cache.Stats {
	return m.Called().Get(0).(cache.Stats)
}

// MockHealthService is a mock implementation of HealthServiceInterface
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) Check(ctx context.Context) services.HealthReport {
	return m.Called(ctx).Get(0).(services.HealthReport)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func perform(router *gin.Engine, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRecommendationHandler_PredictAppliesDefaults(t *testing.T) {
	svc := new(MockRecommendationService)
	handler := NewRecommendationHandler(svc, quietLogger())
	router := gin.New()
	router.GET("/predict", handler.Predict)

	expected := models.VehicleQuery{
		ItemKey:   models.ItemKey{Make: "honda", Model: "civic", Year: 2018},
		Mileage:   50000,
		Condition: "good",
		Region:    "california",
	}
	prediction := models.NewPrediction(expected, models.AnalysisResult{
		Recommendation: models.Recommendation{Signal: models.SignalBuy, PredictedPrice: 15200},
		Explanation:    "Below median.",
	})
	svc.On("Predict", mock.Anything, expected).Return(&prediction, nil)

	w, body := perform(router, http.MethodGet, "/predict?make=honda&model=civic&year=2018")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "BUY", data["recommendation"])
	assert.Equal(t, "civic", data["model"])
	assert.Equal(t, float64(50000), data["mileage"])
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_PredictKeepsZeroMileage(t *testing.T) {
	svc := new(MockRecommendationService)
	handler := NewRecommendationHandler(svc, quietLogger())
	router := gin.New()
	router.GET("/predict", handler.Predict)

	expected := models.VehicleQuery{
		ItemKey:   models.ItemKey{Make: "tesla", Model: "model 3", Year: 2024},
		Mileage:   0,
		Condition: "excellent",
		Region:    "texas",
	}
	prediction := models.NewPrediction(expected, models.AnalysisResult{
		Recommendation: models.Recommendation{Signal: models.SignalNeutral, PredictedPrice: 38900},
	})
	svc.On("Predict", mock.Anything, expected).Return(&prediction, nil)

	w, body := perform(router, http.MethodGet, "/predict?make=tesla&model=model+3&year=2024&mileage=0&condition=excellent&region=texas")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["mileage"])
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_PredictErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"invalid query", fmt.Errorf("%w: year failed required", services.ErrInvalidQuery), http.StatusBadRequest},
		{"valuation failure", fmt.Errorf("analysis failed: %w: model server down", valuation.ErrValuationFailed), http.StatusBadGateway},
		{"reasoning failure", errors.New("analysis failed: reasoning service failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRecommendationService)
			svc.On("Predict", mock.Anything, mock.Anything).Return(nil, tt.err)
			handler := NewRecommendationHandler(svc, quietLogger())
			router := gin.New()
			router.GET("/predict", handler.Predict)

			w, body := perform(router, http.MethodGet, "/predict?make=toyota&model=camry&year=2018&mileage=45000")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestRecommendationHandler_PredictBadParams(t *testing.T) {
	svc := new(MockRecommendationService)
	handler := NewRecommendationHandler(svc, quietLogger())
	router := gin.New()
	router.GET("/predict", handler.Predict)

	w, body := perform(router, http.MethodGet, "/predict?make=toyota&model=camry&year=latest")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	svc.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestMarketHandler_GetCars(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("ListCars", mock.Anything).Return([]models.CarListing{
		{Make: "ford", Model: "f-150", Year: 2018},
		{Make: "honda", Model: "civic", Year: 2018},
	}, nil)
	handler := NewMarketHandler(svc, quietLogger())
	router := gin.New()
	router.GET("/cars", handler.GetCars)

	w, body := perform(router, http.MethodGet, "/cars")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	cars := body["data"].([]interface{})
	assert.Equal(t, "ford", cars[0].(map[string]interface{})["make"])
}

func TestMarketHandler_GetCarsError(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("ListCars", mock.Anything).Return(nil, errors.New("db down"))
	handler := NewMarketHandler(svc, quietLogger())
	router := gin.New()
	router.GET("/cars", handler.GetCars)

	w, body := perform(router, http.MethodGet, "/cars")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to list cars", body["error"])
}

func TestMarketHandler_GetMarketOverview(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("Overview", mock.Anything).Return(&models.MarketOverview{
		AveragePriceThisMonth: 19643.75,
		MoMChangePct:          0.3,
		PriceSource:           "industry",
		TopBuys:               []models.Prediction{},
		SeasonalityData:       models.MonthlySeasonality,
		SeasonalitySource:     "industry",
		UpdatedAt:             "2025-06",
	}, nil)
	handler := NewMarketHandler(svc, quietLogger())
	router := gin.New()
	router.GET("/market-overview", handler.GetMarketOverview)

	w, body := perform(router, http.MethodGet, "/market-overview")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, 19643.75, data["avg_price_this_month"])
	assert.Equal(t, "industry", data["price_source"])
	assert.Len(t, data["seasonality_data"], 12)
}

func TestMarketHandler_GetMarketOverviewError(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("Overview", mock.Anything).Return(nil, errors.New("redis down"))
	handler := NewMarketHandler(svc, quietLogger())
	router := gin.New()
	router.GET("/market-overview", handler.GetMarketOverview)

	w, _ := perform(router, http.MethodGet, "/market-overview")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCacheHandler(t *testing.T) {
	svc := new(MockCacheService)
	svc.On("Clear", mock.Anything).Return(&services.ClearReport{Deleted: 4, Message: "Predictions cache cleared"}, nil)
	svc.On("SeedMarket", mock.Anything).Return(&services.SeedReport{
		Seeded:          8,
		TotalBuySignals: 11,
		Message:         "Refreshed 8 seed entries. 11 total BUY signals in cache.",
	}, nil)
	svc.On("Stats").Return(cache.Stats{Hits: 3, Misses: 1})

	handler := NewCacheHandler(svc, quietLogger())
	router := gin.New()
	router.DELETE("/cache", handler.ClearCache)
	router.POST("/seed-market", handler.SeedMarket)
	router.GET("/cache/stats", handler.GetCacheStats)

	w, body := perform(router, http.MethodDelete, "/cache")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), body["data"].(map[string]interface{})["deleted"])

	w, body = perform(router, http.MethodPost, "/seed-market")
	assert.Equal(t, http.StatusOK, w.Code)
	seed := body["data"].(map[string]interface{})
	assert.Equal(t, float64(8), seed["seeded"])
	assert.Equal(t, float64(11), seed["total_buy_signals"])

	w, body = perform(router, http.MethodGet, "/cache/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["data"].(map[string]interface{})["hits"])
}

func TestCacheHandler_Errors(t *testing.T) {
	svc := new(MockCacheService)
	svc.On("Clear", mock.Anything).Return(nil, errors.New("store down"))
	svc.On("SeedMarket", mock.Anything).Return(nil, errors.New("store down"))

	handler := NewCacheHandler(svc, quietLogger())
	router := gin.New()
	router.DELETE("/cache", handler.ClearCache)
	router.POST("/seed-market", handler.SeedMarket)

	w, body := perform(router, http.MethodDelete, "/cache")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to clear cache", body["error"])

	w, body = perform(router, http.MethodPost, "/seed-market")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to seed market data", body["error"])
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		report         services.HealthReport
		expectedStatus int
	}{
		{
			name:           "all services healthy",
			report:         services.HealthReport{Status: "ok", DB: "connected", Services: map[string]string{"postgres": "connected"}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "redis down",
			report:         services.HealthReport{Status: "degraded", DB: "connected", Services: map[string]string{"redis": "error: refused"}},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockHealthService)
			svc.On("Check", mock.Anything).Return(tt.report)
			handler := NewHealthHandler(svc, "1.0.0")
			router := gin.New()
			router.GET("/health", handler.HealthCheck)

			w, body := perform(router, http.MethodGet, "/health")

			require.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.report.Status, body["status"])
			assert.Equal(t, "connected", body["db"])
			assert.Equal(t, "1.0.0", body["version"])
		})
	}
}

func TestHealthHandler_LivenessCheck(t *testing.T) {
	handler := NewHealthHandler(new(MockHealthService), "1.0.0")
	router := gin.New()
	router.GET("/live", handler.LivenessCheck)

	w, body := perform(router, http.MethodGet, "/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])
}
