// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package metrics registers the gateway's prometheus/client_golang gauges,
// counters, and histograms: one vector per concern, labeled by provider
// and/or model so a single dashboard query can slice either axis.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ProviderHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_provider_healthy",
			Help: "Provider health status (1 healthy, 0 unhealthy).",
		},
		[]string{"provider"},
	)

	ProviderHealthCheckLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_provider_health_check_latency_ms",
			Help:    "Provider health probe latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"provider"},
	)

	ProviderHealthCheckFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_provider_health_check_failures_total",
			Help: "Total provider health probe failures.",
		},
		[]string{"provider"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total gateway requests by operation, provider and outcome.",
		},
		[]string{"operation", "provider", "model", "outcome"},
	)

	RequestLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_latency_ms",
			Help:    "End-to-end gateway request latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"operation", "provider", "model"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 half_open, 2 open).",
		},
		[]string{"provider"},
	)

	CircuitBreakerTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_trips_total",
			Help: "Total circuit breaker trips into the open state.",
		},
		[]string{"provider"},
	)

	ConcurrencyInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_concurrency_in_flight",
			Help: "In-flight requests admitted per provider.",
		},
		[]string{"provider"},
	)

	ConcurrencyQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_concurrency_queue_depth",
			Help: "Requests waiting in the admission queue per provider.",
		},
		[]string{"provider"},
	)

	ConcurrencyRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_concurrency_rejected_total",
			Help: "Requests rejected because the admission queue was full.",
		},
		[]string{"provider"},
	)

	RouterSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_router_selections_total",
			Help: "Provider selections made by the router, by strategy.",
		},
		[]string{"strategy", "provider", "model"},
	)

	FailoverAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_failover_attempts_total",
			Help: "Failover attempts made by the orchestrator after a failed provider call.",
		},
		[]string{"model", "from_provider", "to_provider"},
	)

	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tokens_total",
			Help: "Tokens accounted per provider/model/direction (prompt|completion).",
		},
		[]string{"provider", "model", "direction"},
	)

	RealtimeSessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_realtime_sessions_active",
			Help: "Active realtime transcription sessions per provider.",
		},
		[]string{"provider"},
	)

	RealtimeAudioSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_realtime_audio_seconds_total",
			Help: "Total seconds of PCM16 audio accepted into realtime sessions.",
		},
		[]string{"provider"},
	)

	RealtimeTranscriptEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_realtime_transcript_events_total",
			Help: "Normalized realtime transcript events emitted, by type.",
		},
		[]string{"provider", "event_type"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderHealthy,
		ProviderHealthCheckLatencyMs,
		ProviderHealthCheckFailuresTotal,
		RequestsTotal,
		RequestLatencyMs,
		CircuitBreakerState,
		CircuitBreakerTripsTotal,
		ConcurrencyInFlight,
		ConcurrencyQueueDepth,
		ConcurrencyRejectedTotal,
		RouterSelectionsTotal,
		FailoverAttemptsTotal,
		TokensTotal,
		RealtimeSessionsActive,
		RealtimeAudioSecondsTotal,
		RealtimeTranscriptEventsTotal,
	)
}

// ObserveHealthCheck records a provider health probe outcome.
func ObserveHealthCheck(provider string, healthy bool, latency time.Duration, err error) {
	if provider == "" {
		provider = "unknown"
	}
	if healthy {
		ProviderHealthy.WithLabelValues(provider).Set(1)
	} else {
		ProviderHealthy.WithLabelValues(provider).Set(0)
	}
	if latency > 0 {
		ProviderHealthCheckLatencyMs.WithLabelValues(provider).Observe(float64(latency.Milliseconds()))
	}
	if err != nil {
		ProviderHealthCheckFailuresTotal.WithLabelValues(provider).Inc()
	}
}

// ObserveRequest records a completed gateway request.
func ObserveRequest(operation, provider, model, outcome string, latency time.Duration) {
	RequestsTotal.WithLabelValues(operation, provider, model, outcome).Inc()
	RequestLatencyMs.WithLabelValues(operation, provider, model).Observe(float64(latency.Milliseconds()))
}

// CircuitState enumerates the breaker states exported on the
// gateway_circuit_breaker_state gauge.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitHalfOpen
	CircuitOpen
)

// SetCircuitState publishes the current breaker state for a provider.
func SetCircuitState(provider string, state CircuitState) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
