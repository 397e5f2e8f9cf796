// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package telemetry wraps go.opentelemetry.io/otel behind the gateway's own
// Tracer()/StartSpan()/span.EndSpan() call shape, the same three-call
// pattern used throughout the assistant executor.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InitProvider installs a process-wide otel SDK TracerProvider tagged
// with serviceName, sampling every span (no collector is wired by
// default — spans are recorded but not exported). Returns a shutdown
// func for graceful process exit.
func InitProvider(serviceName string) func(context.Context) error {
	res := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

const instrumentationName = "github.com/rapidaai/gateway"

// Span wraps an otel span with the EndSpan/RecordError helpers the gateway
// components call instead of reaching for the otel API directly.
type Span struct {
	otel trace.Span
}

// EndSpan closes the span. stage is recorded as an attribute so a single
// span can be annotated with the logical step it represents before closing.
func (s *Span) EndSpan(ctx context.Context, stage string) {
	if stage != "" {
		s.otel.SetAttributes(attribute.String("stage", stage))
	}
	s.otel.End()
}

// RecordError marks the span as failed and attaches the error.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.otel.RecordError(err)
	s.otel.SetStatus(codes.Error, err.Error())
}

// SetAttributes forwards to the underlying otel span.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.otel.SetAttributes(attrs...)
}

// Tracer returns the gateway's package-scoped tracer from the globally
// registered TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a new span rooted at ctx and returns the derived context
// alongside the wrapped Span. Callers defer span.EndSpan(ctx, stage).
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, *Span, trace.Span) {
	ctx, raw := Tracer().Start(ctx, name, opts...)
	return ctx, &Span{otel: raw}, raw
}

// CorrelationID extracts the active trace ID from ctx, or "" when no span
// is recording.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
