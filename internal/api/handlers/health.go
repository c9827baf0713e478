package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/carprice-ai-go/internal/services"
)

var startTime = time.Now()

// HealthServiceInterface defines the dependency check
type HealthServiceInterface interface {
	Check(ctx context.Context) services.HealthReport
}

type HealthHandler struct {
	service HealthServiceInterface
	version string
}

type HealthResponse struct {
	services.HealthReport
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

func NewHealthHandler(service HealthServiceInterface, version string) *HealthHandler {
	return &HealthHandler{service: service, version: version}
}

// HealthCheck pings the database and cache; any failure yields 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	report := h.service.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status != services.StatusOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthResponse{
		HealthReport: report,
		Timestamp:    time.Now(),
		Version:      h.version,
		Uptime:       time.Since(startTime).String(),
	})
}

// LivenessCheck reports that the process is responsive.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
