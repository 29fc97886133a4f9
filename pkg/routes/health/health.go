package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renewables/repd-reconcile/internal/database"
	"github.com/renewables/repd-reconcile/pkg/catalogue"
	"github.com/renewables/repd-reconcile/pkg/models"
)

// Checker handles health check endpoints
type Checker struct {
	db        database.DB
	catalogue *catalogue.Catalogue
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(db database.DB, cat *catalogue.Catalogue, version string) *Checker {
	return &Checker{
		db:        db,
		catalogue: cat,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthy", c.Healthy)
	e.GET("/health/live", c.Live)
	e.GET("/health/ready", c.Ready)
}

// Healthy reports overall service health, the database connection state
// and the number of projects loaded into the catalogue.
func (c *Checker) Healthy(ctx echo.Context) error {
	response := models.HealthResponse{
		Status:   "ok",
		Database: "connected",
		Version:  c.version,
		Uptime:   time.Since(c.startTime).Round(time.Second).String(),
	}

	if c.catalogue != nil {
		response.ProjectCount = c.catalogue.Len()
	}

	if c.db == nil {
		response.Status = "degraded"
		response.Database = "not configured"
	} else if err := c.db.PingContext(ctx.Request().Context()); err != nil {
		response.Status = "degraded"
		response.Database = "unreachable"
	}

	httpStatus := http.StatusOK
	if response.Status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, response)
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
