package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

// Pinger is a dependency the health check can probe
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports service and dependency status
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates the health handler; db may be nil
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck handles the health check endpoint; ?check=db also pings the database
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	log := logger.FromContext(c)

	// Basic response
	response := map[string]interface{}{
		"status":  "ok",
		"time":    time.Now().Format(time.RFC3339),
		"version": prometheus.Version,
	}

	// Check database connection if requested
	if c.QueryParam("check") == "db" && h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			log.Error("Database ping error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			response["db_error"] = "Failed to ping database"
			return c.JSON(http.StatusInternalServerError, response)
		}

		// Database is healthy
		response["db_status"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}

// MetricsHandler serves the Prometheus metrics
func MetricsHandler(c echo.Context) error {
	prometheus.GetPrometheusHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}
