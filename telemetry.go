package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logSpanProcessor writes finished spans to the debug log.
type logSpanProcessor struct {
	log *log.Logger
}

func (logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if !p.log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	fields := log.Fields{
		"span":        s.Name(),
		"trace_id":    s.SpanContext().TraceID().String(),
		"span_id":     s.SpanContext().SpanID().String(),
		"duration_ms": float64(s.EndTime().Sub(s.StartTime()).Microseconds()) / 1000,
		"status":      s.Status().Code.String(),
	}
	if parent := s.Parent(); parent.IsValid() {
		fields["parent_id"] = parent.SpanID().String()
	}
	for _, kv := range s.Attributes() {
		fields[string(kv.Key)] = kv.Value.AsInterface()
	}
	p.log.WithFields(fields).Debug("span")
}

func (logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (logSpanProcessor) ForceFlush(context.Context) error { return nil }

// setupTracing installs a global tracer provider and returns its shutdown.
func setupTracing(logger *log.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(logSpanProcessor{log: logger}),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
