package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Jerry-OC/mission-control/pkg/database"
)

// HealthChecker handles health check endpoints
type HealthChecker struct {
	db        database.DB
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db database.DB, version string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (h *HealthChecker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", h.Health)
	e.GET("/api/v1/health/live", h.Live)
	e.GET("/api/v1/health/ready", h.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status
func (h *HealthChecker) Health(c echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	if h.db != nil {
		start := time.Now()
		err := h.db.PingContext(c.Request().Context())
		latency := time.Since(start)

		if err != nil {
			status.Status = "unhealthy"
			status.Checks["database"] = &CheckResult{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			status.Checks["database"] = &CheckResult{
				Status:  "healthy",
				Latency: latency.String(),
			}
		}
	} else {
		status.Status = "unhealthy"
		status.Checks["database"] = &CheckResult{
			Status:  "unhealthy",
			Message: "database not configured",
		}
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, status)
}

// Live returns the liveness status (is the service running)
func (h *HealthChecker) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (h *HealthChecker) Ready(c echo.Context) error {
	if h.ready.Load() {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
