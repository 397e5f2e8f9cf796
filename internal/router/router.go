// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package router implements the stateless-per-call provider selection
// policy of spec.md §4.4, C4: given a non-empty eligible set and a
// criteria bag, pick one adapter.
package router

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rapidaai/gateway/internal/adapter"
	"github.com/rapidaai/gateway/internal/commons"
)

// Strategy names recognized by the router (spec.md §4.4).
type Strategy string

const (
	CostOptimized Strategy = "cost_optimized"
	Performance   Strategy = "performance"
	RoundRobin    Strategy = "round_robin"
	HealthBased   Strategy = "health_based"
	Weighted      Strategy = "weighted"
)

// HealthStatus mirrors registry.HealthStatus without importing registry,
// keeping the router decoupled from the registry's storage concerns.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
	Unknown   HealthStatus = "unknown"
)

// Candidate is one eligible provider record handed to the router.
type Candidate struct {
	Name         string
	Adapter      adapter.Adapter
	HealthStatus HealthStatus
}

// Criteria carries the per-call selection inputs (spec.md §4.4).
type Criteria struct {
	Model    string
	Strategy Strategy
}

// Config tunes the optional selection cache (spec.md §4.4, the
// "optimized" router variant this spec adopts as canonical per spec.md
// §9 Open Questions).
type Config struct {
	CacheTTL time.Duration // 0 means the 60s default; a negative value disables caching
}

// Router selects one adapter from an eligible set per call. It holds only
// the round-robin counters and selection cache — all health/cost/metrics
// data is read fresh from the Candidate on every call, keeping selection
// stateless-per-call as spec.md requires.
type Router struct {
	cfg Config

	mu       sync.Mutex
	counters map[string]int // keyed by model (or "default") for round_robin
	cache    map[cacheKey]cacheEntry
}

type cacheKey struct {
	strategy Strategy
	model    string
	names    string // sorted, joined eligible provider names
}

type cacheEntry struct {
	providerName string
	expiresAt    time.Time
}

// New constructs a Router.
func New(cfg Config) *Router {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	return &Router{
		cfg:      cfg,
		counters: make(map[string]int),
		cache:    make(map[cacheKey]cacheEntry),
	}
}

// Select picks one candidate per the named strategy, or returns a
// MODEL_NOT_FOUND-flavored error if candidates is empty.
func (r *Router) Select(candidates []Candidate, criteria Criteria) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, commons.NewError(commons.ErrModelNotFound, "no eligible provider for model "+criteria.Model)
	}

	key := r.cacheKeyFor(criteria, candidates)
	if cached, ok := r.lookupCache(key, candidates); ok {
		return cached, nil
	}

	var chosen Candidate
	switch criteria.Strategy {
	case Performance:
		chosen = r.selectPerformance(candidates)
	case RoundRobin:
		chosen = r.selectRoundRobin(candidates, criteria.Model)
	case HealthBased:
		chosen = r.selectHealthBased(candidates, criteria.Model)
	case Weighted:
		chosen = r.selectWeighted(candidates)
	case CostOptimized:
		fallthrough
	default:
		chosen = r.selectCostOptimized(candidates, criteria.Model)
	}

	r.storeCache(key, chosen)
	return chosen, nil
}

// selectCostOptimized picks the minimal input+output cost; falls back to
// round-robin when cost is unknown for every candidate (spec.md §4.4.1).
func (r *Router) selectCostOptimized(candidates []Candidate, model string) Candidate {
	best := -1
	bestCost := 0.0
	anyKnown := false
	for i, c := range candidates {
		cost, ok := c.Adapter.GetCostInfo(model)
		if !ok || cost == nil {
			continue
		}
		total := cost.InputCost + cost.OutputCost
		if !anyKnown || total < bestCost {
			anyKnown = true
			bestCost = total
			best = i
		}
	}
	if !anyKnown {
		return r.selectRoundRobin(candidates, model)
	}
	return candidates[best]
}

// selectPerformance minimizes avgResponseTime / max(successRate, 0.1)
// (spec.md §4.4.2).
func (r *Router) selectPerformance(candidates []Candidate) Candidate {
	best := 0
	bestScore := performanceScore(candidates[0])
	for i := 1; i < len(candidates); i++ {
		score := performanceScore(candidates[i])
		if score < bestScore {
			bestScore = score
			best = i
		}
	}
	return candidates[best]
}

func performanceScore(c Candidate) float64 {
	m := c.Adapter.GetMetrics()
	rate := m.SuccessRate()
	if rate < 0.1 {
		rate = 0.1
	}
	return float64(m.AvgResponseTime) / rate
}

// selectRoundRobin keys the counter by model, defaulting to "default"
// (spec.md §4.4.3).
func (r *Router) selectRoundRobin(candidates []Candidate, model string) Candidate {
	key := model
	if key == "" {
		key = "default"
	}
	r.mu.Lock()
	idx := r.counters[key] % len(candidates)
	r.counters[key]++
	r.mu.Unlock()
	return candidates[idx]
}

// selectHealthBased filters to healthy, falling back to degraded then
// any, round-robin within the chosen subset (spec.md §4.4.4).
func (r *Router) selectHealthBased(candidates []Candidate, model string) Candidate {
	if subset := filterStatus(candidates, Healthy); len(subset) > 0 {
		return r.selectRoundRobin(subset, model)
	}
	if subset := filterStatus(candidates, Degraded); len(subset) > 0 {
		return r.selectRoundRobin(subset, model)
	}
	return r.selectRoundRobin(candidates, model)
}

func filterStatus(candidates []Candidate, status HealthStatus) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.HealthStatus == status {
			out = append(out, c)
		}
	}
	return out
}

// selectWeighted picks by weighted random: weight = successRate *
// healthMultiplier, floored at 0.01 (spec.md §4.4.5).
func (r *Router) selectWeighted(candidates []Candidate) Candidate {
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, c := range candidates {
		w := c.Adapter.GetMetrics().SuccessRate() * healthMultiplier(c.HealthStatus)
		if w < 0.01 {
			w = 0.01
		}
		weights[i] = w
		total += w
	}
	pick := rand.Float64() * total
	cursor := 0.0
	for i, w := range weights {
		cursor += w
		if pick <= cursor {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

func healthMultiplier(status HealthStatus) float64 {
	switch status {
	case Healthy:
		return 1.0
	case Degraded:
		return 0.5
	default:
		return 0.1
	}
}

func (r *Router) cacheKeyFor(criteria Criteria, candidates []Candidate) cacheKey {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	sort.Strings(names)
	return cacheKey{strategy: criteria.Strategy, model: criteria.Model, names: strings.Join(names, ",")}
}

// cacheable restricts the selection cache to the deterministic strategies
// (spec.md §9 Open Questions): caching round_robin, health_based, or
// weighted would freeze a rotation or random pick for CacheTTL.
func cacheable(s Strategy) bool {
	return s == CostOptimized || s == Performance || s == ""
}

func (r *Router) lookupCache(key cacheKey, candidates []Candidate) (Candidate, bool) {
	if r.cfg.CacheTTL <= 0 || !cacheable(key.strategy) {
		return Candidate{}, false
	}
	r.mu.Lock()
	entry, ok := r.cache[key]
	r.mu.Unlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Candidate{}, false
	}
	for _, c := range candidates {
		if c.Name == entry.providerName {
			if c.HealthStatus == Unhealthy {
				return Candidate{}, false
			}
			return c, true
		}
	}
	return Candidate{}, false
}

func (r *Router) storeCache(key cacheKey, chosen Candidate) {
	if r.cfg.CacheTTL <= 0 || !cacheable(key.strategy) {
		return
	}
	r.mu.Lock()
	r.cache[key] = cacheEntry{providerName: chosen.Name, expiresAt: time.Now().Add(r.cfg.CacheTTL)}
	r.mu.Unlock()
}
