package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/service"
)

// HealthHandler reports the state of the backing services.
type HealthHandler struct {
	healthService *service.HealthService
}

// NewHealthHandler creates a new health handler instance
func NewHealthHandler(healthService *service.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status, healthy := h.healthService.Check(c.Request.Context())
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
