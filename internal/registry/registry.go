// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package registry owns provider adapter instances, runs periodic health
// probes, and publishes a model→provider index (spec.md §4.2, C2).
package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/gateway/internal/adapter"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/commons/metrics"
	"github.com/rapidaai/gateway/pkg/types"
)

// HealthStatus mirrors the ProviderRecord.healthStatus enumeration of
// spec.md §3.
type HealthStatus string

const (
	StatusUnknown   HealthStatus = "unknown"
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDestroyed HealthStatus = "destroyed"
)

// Record is the registry's per-adapter bookkeeping entry (ProviderRecord,
// spec.md §3).
type Record struct {
	Name            string
	Adapter         adapter.Adapter
	RegisteredAt    time.Time
	LastHealthCheck *time.Time
	HealthStatus    HealthStatus
	initialized     bool
}

// HealthCallback is invoked on every health status transition, replacing
// the reference system's back-pointer from registry into orchestrator
// with a one-way notification (spec.md §9 "Circular reference...").
type HealthCallback func(name string, status HealthStatus)

// InitSummary is the Promise.allSettled-style batch result of InitializeAll.
type InitSummary struct {
	Total      int
	Successful int
	Failed     int
	Errors     []error
}

// Registry is the shared, mutex-protected provider directory of spec.md
// §4.2. All operations are atomic with respect to each other.
type Registry struct {
	logger commons.Logger

	mu       sync.RWMutex
	records  map[string]*Record
	modelIdx map[string]string // modelID -> provider name

	healthCheckInterval time.Duration
	healthCheckTimeout  time.Duration
	callbacks           []HealthCallback

	probeCancel context.CancelFunc
	probeDone   chan struct{}
}

// Config tunes the registry's health-probe loop.
type Config struct {
	HealthCheckInterval time.Duration // default 30s
	HealthCheckTimeout  time.Duration // default 5s
}

// New constructs an empty Registry. The probe loop starts lazily on the
// first Register call (spec.md §4.2).
func New(logger commons.Logger, cfg Config) *Registry {
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = 5 * time.Second
	}
	return &Registry{
		logger:              logger,
		records:             make(map[string]*Record),
		modelIdx:            make(map[string]string),
		healthCheckInterval: cfg.HealthCheckInterval,
		healthCheckTimeout:  cfg.HealthCheckTimeout,
	}
}

// SetHealthStatusCallback registers fn to be called on every status
// transition (spec.md §4.2).
func (r *Registry) SetHealthStatusCallback(fn HealthCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Register adds or replaces a provider adapter under name. Starts the
// probe loop when this is the first registration.
func (r *Registry) Register(name string, a adapter.Adapter) error {
	if name == "" {
		return commons.NewError(commons.ErrValidation, "provider name must not be empty")
	}
	if a == nil {
		return commons.NewError(commons.ErrValidation, "adapter must not be nil")
	}

	r.mu.Lock()
	_, replacing := r.records[name]
	first := len(r.records) == 0
	if replacing {
		r.logger.Warnf("registry: replacing existing registration for provider %q", name)
	}
	r.records[name] = &Record{
		Name:         name,
		Adapter:      a,
		RegisteredAt: time.Now(),
		HealthStatus: StatusUnknown,
	}
	r.mu.Unlock()

	if first {
		r.startProbeLoop()
	}
	return nil
}

// Unregister destroys the adapter best-effort, removes its record, and
// stops the probe loop once the registry is empty.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	rec, ok := r.records[name]
	if ok {
		delete(r.records, name)
		for model, provider := range r.modelIdx {
			if provider == name {
				delete(r.modelIdx, model)
			}
		}
	}
	empty := len(r.records) == 0
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := rec.Adapter.Destroy(ctx); err != nil {
		r.logger.Warnf("registry: destroy failed for provider %q: %v", name, err)
	}
	if empty {
		r.stopProbeLoop()
	}
	return nil
}

// Get returns the record for name, or nil if unregistered.
func (r *Registry) Get(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// GetAll returns a snapshot of all records.
func (r *Registry) GetAll() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// List returns the registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.records))
	for name := range r.records {
		out = append(out, name)
	}
	return out
}

// IsRegistered reports whether name has an active record.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[name]
	return ok
}

// GetAvailableModels returns the union of models across adapters whose
// health is not unhealthy and which are initialized (spec.md §4.2).
func (r *Registry) GetAvailableModels(ctx context.Context) []types.ModelDescriptor {
	r.mu.RLock()
	records := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.HealthStatus != StatusUnhealthy && rec.initialized {
			records = append(records, rec)
		}
	}
	r.mu.RUnlock()

	var out []types.ModelDescriptor
	for _, rec := range records {
		models, err := rec.Adapter.ListSupportedModels(ctx)
		if err != nil {
			r.logger.Warnf("registry: listing models for %q failed: %v", rec.Name, err)
			continue
		}
		out = append(out, models...)
	}
	return out
}

// GetModelInfo looks up the descriptor for modelID across all providers.
func (r *Registry) GetModelInfo(ctx context.Context, modelID string) (*types.ModelDescriptor, bool) {
	for _, rec := range r.GetAll() {
		models, err := rec.Adapter.ListSupportedModels(ctx)
		if err != nil {
			continue
		}
		for _, m := range models {
			if m.ID == modelID {
				md := m
				return &md, true
			}
		}
	}
	return nil, false
}

// GetProviderForModel returns the adapter serving modelID, or nil if
// unknown (spec.md §4.2, model→provider is a function per §3).
func (r *Registry) GetProviderForModel(modelID string) (adapter.Adapter, bool) {
	r.mu.RLock()
	name, ok := r.modelIdx[modelID]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	rec := r.records[name]
	r.mu.RUnlock()
	if rec == nil {
		return nil, false
	}
	return rec.Adapter, true
}

// InitializeAll initializes every registered adapter in parallel with
// Promise.allSettled-style semantics: one failure does not fail the
// batch (spec.md §4.2), grounded on the errgroup fan-out pattern of
// websocketExecutor.Initialize.
func (r *Registry) InitializeAll(ctx context.Context) InitSummary {
	records := r.GetAll()
	summary := InitSummary{Total: len(records)}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(context.Background())
	_ = gCtx // each adapter init is independent; a single failure must not cancel the others

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := rec.Adapter.Initialize(ctx); err != nil {
				mu.Lock()
				summary.Failed++
				summary.Errors = append(summary.Errors, err)
				mu.Unlock()
				r.logger.Errorf("registry: initialize failed for provider %q: %v", rec.Name, err)
				return nil
			}

			models, err := rec.Adapter.ListSupportedModels(ctx)
			if err != nil {
				mu.Lock()
				summary.Failed++
				summary.Errors = append(summary.Errors, err)
				mu.Unlock()
				return nil
			}

			r.mu.Lock()
			rec.initialized = true
			for _, m := range models {
				r.modelIdx[m.ID] = rec.Name
			}
			r.mu.Unlock()

			mu.Lock()
			summary.Successful++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

// Destroy stops the probe loop and destroys every adapter in parallel.
func (r *Registry) Destroy(ctx context.Context) {
	r.stopProbeLoop()

	records := r.GetAll()
	g, _ := errgroup.WithContext(ctx)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := rec.Adapter.Destroy(ctx); err != nil {
				r.logger.Warnf("registry: destroy failed for provider %q: %v", rec.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	r.records = make(map[string]*Record)
	r.modelIdx = make(map[string]string)
	r.mu.Unlock()
}

func (r *Registry) startProbeLoop() {
	r.mu.Lock()
	if r.probeCancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.probeCancel = cancel
	r.probeDone = make(chan struct{})
	r.mu.Unlock()

	go r.probeLoop(ctx)
}

func (r *Registry) stopProbeLoop() {
	r.mu.Lock()
	cancel := r.probeCancel
	done := r.probeDone
	r.probeCancel = nil
	r.probeDone = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// probeLoop ticks every healthCheckInterval (first tick immediate) and
// probes all adapters concurrently (spec.md §4.2).
func (r *Registry) probeLoop(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		if r.probeDone != nil {
			close(r.probeDone)
		}
		r.mu.Unlock()
	}()

	r.probeAll(ctx)
	ticker := time.NewTicker(r.healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probeAll(ctx)
		}
	}
}

func (r *Registry) probeAll(ctx context.Context) {
	records := r.GetAll()
	g, _ := errgroup.WithContext(ctx)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			r.probeOne(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Registry) probeOne(ctx context.Context, rec *Record) {
	probeCtx, cancel := context.WithTimeout(ctx, r.healthCheckTimeout)
	defer cancel()

	start := time.Now()
	status, err := rec.Adapter.HealthCheck(probeCtx)
	latency := time.Since(start)

	newStatus := StatusHealthy
	if err != nil || status.Status != "healthy" {
		newStatus = StatusUnhealthy
		r.logger.Warnf("registry: health probe failed for provider %q: %v", rec.Name, err)
	}
	metrics.ObserveHealthCheck(rec.Name, newStatus == StatusHealthy, latency, err)

	r.mu.Lock()
	oldStatus := rec.HealthStatus
	rec.HealthStatus = newStatus
	now := time.Now()
	rec.LastHealthCheck = &now
	callbacks := append([]HealthCallback(nil), r.callbacks...)
	r.mu.Unlock()

	if oldStatus == StatusUnhealthy && newStatus == StatusHealthy {
		r.logger.Infof("registry: provider %q recovered to healthy", rec.Name)
	}
	if oldStatus != newStatus {
		for _, cb := range callbacks {
			cb(rec.Name, newStatus)
		}
	}
}
