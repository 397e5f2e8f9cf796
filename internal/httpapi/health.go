// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/gateway/internal/cache"
	"github.com/rapidaai/gateway/internal/registry"
)

// Health wires the /health family of endpoints (spec.md §6), grounded on
// the teacher's `HealthCheckRoutes(cfg, engine, logger, postgres)` shape.
type Health struct {
	reg   *registry.Registry
	cache cache.Cache
}

// NewHealth constructs the health controller.
func NewHealth(reg *registry.Registry, c cache.Cache) *Health {
	return &Health{reg: reg, cache: c}
}

// Health implements GET /health: a minimal liveness probe.
func (h *Health) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready implements GET /health/ready: ready only when at least one
// registered provider is healthy or degraded; providers not yet probed
// count as not ready.
func (h *Health) Ready(c *gin.Context) {
	records := h.reg.GetAll()
	if len(records) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "no providers registered"})
		return
	}
	for _, r := range records {
		if r.HealthStatus == registry.StatusHealthy || r.HealthStatus == registry.StatusDegraded {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "all providers unhealthy"})
}

// Live implements GET /health/live: the process itself is always live
// once it can answer HTTP at all.
func (h *Health) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "live"})
}

// Detailed implements GET /health/detailed: per-provider health status.
func (h *Health) Detailed(c *gin.Context) {
	records := h.reg.GetAll()
	providers := make([]gin.H, 0, len(records))
	for _, r := range records {
		entry := gin.H{
			"name":   r.Name,
			"status": r.HealthStatus,
		}
		if r.LastHealthCheck != nil {
			entry["last_health_check"] = r.LastHealthCheck
		}
		providers = append(providers, entry)
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		if err := h.cache.HealthCheck(c.Request.Context()); err != nil {
			cacheStatus = "unhealthy"
		} else {
			cacheStatus = "healthy"
		}
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers, "cache": cacheStatus})
}

// Metrics implements GET /health/metrics: cache stats plus the number of
// registered providers, a lightweight companion to the Prometheus /metrics
// endpoint.
func (h *Health) Metrics(c *gin.Context) {
	var cacheStats cache.Stats
	if h.cache != nil {
		cacheStats = h.cache.GetStats()
	}
	c.JSON(http.StatusOK, gin.H{
		"providers_registered": len(h.reg.List()),
		"cache":                cacheStats,
	})
}
