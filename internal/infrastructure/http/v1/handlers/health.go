// Package handlers provides the ops HTTP handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockroom/internal/infrastructure/storage/postgres"
)

// Pinger checks storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer reports the number of cached entries.
type Sizer interface {
	Len() int
}

// PoolStatser reports connection pool usage.
type PoolStatser interface {
	Stats() postgres.PoolStats
}

// HealthConfig wires HealthHandler.
type HealthConfig struct {
	App         string
	Version     string
	Driver      string
	Store       Pinger
	Cache       Sizer
	Pool        PoolStatser // nil for the memory store
	PingTimeout time.Duration
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	cfg HealthConfig
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 2 * time.Second
	}
	return &HealthHandler{cfg: cfg}
}

// Live handles the liveness check.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles the readiness check: the store must answer a ping.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.PingTimeout)
	defer cancel()

	if err := h.cfg.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{"storage": "unhealthy: " + err.Error()},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{"storage": "healthy"},
	})
}

// Info returns build information, cache size and pool usage.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     h.cfg.App,
		"version": h.cfg.Version,
		"storage": h.cfg.Driver,
	}
	if h.cfg.Cache != nil {
		body["cache"] = map[string]any{"entries": h.cfg.Cache.Len()}
	}
	if h.cfg.Pool != nil {
		body["database"] = h.cfg.Pool.Stats()
	}
	c.JSON(http.StatusOK, body)
}
