// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package httpapi wires the gin HTTP/WS controller glue spec.md §6
// describes, grounded on the teacher's route-registration pattern
// (`router/healthcheck.go`, `router/assistant.go`:
// `func XRoutes(cfg, engine, logger, deps...)`, handlers constructed via
// `xApi.New(cfg, logger, deps...)`).
package httpapi

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/gateway/internal/auth"
	"github.com/rapidaai/gateway/internal/commons"
)

// authMiddleware gates every /v1/* route behind the single opt-in header
// spec.md §6 describes.
func authMiddleware(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !gate.Allow(c.GetHeader("Authorization"), c.GetHeader(gate.HeaderName())) {
			writeError(c, commons.NewError(commons.ErrAuthentication, "missing or invalid credentials"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// rateLimiter is a fixed-window limiter per client key, grounded on
// spec.md §6's RATE_LIMIT_WINDOW_MS/RATE_LIMIT_MAX_REQUESTS envelope.
type rateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	buckets map[string]*bucket
}

type bucket struct {
	count     int
	resetAt   time.Time
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{window: window, max: max, buckets: make(map[string]*bucket)}
}

func (rl *rateLimiter) allow(key string) (bool, time.Duration) {
	if rl.max <= 0 {
		return true, 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{count: 0, resetAt: now.Add(rl.window)}
		rl.buckets[key] = b
	}
	b.count++
	if b.count > rl.max {
		return false, b.resetAt.Sub(now)
	}
	return true, 0
}

func rateLimitMiddleware(rl *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if h := c.GetHeader("x-api-key"); h != "" {
			key = h
		}
		allowed, retryAfter := rl.allow(key)
		if !allowed {
			secs := int(retryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			err := commons.NewError(commons.ErrRateLimit, "rate limit exceeded").WithRetryAfter(retryAfter)
			c.Header("Retry-After", strconv.Itoa(secs))
			writeError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// writeError writes the client-facing envelope of spec.md §6 with status
// code equal to error.statusCode.
func writeError(c *gin.Context, err error) {
	env := commons.AsEnvelope(err)
	if env.Error.RetryAfter() > 0 {
		c.Header("Retry-After", strconv.Itoa(int(env.Error.RetryAfter().Seconds())))
	}
	c.JSON(env.Error.StatusCode, env)
}
