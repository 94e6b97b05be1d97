// Package observability wires OpenTelemetry tracing and metering for the
// registry sweeps and the operational tooling. Hot paths are never traced;
// spans cover Free and Report style operations only.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer and meter name used by this module.
const InstrumentationName = "github.com/microsoft/Trill-sub013"

var (
	mu       sync.RWMutex
	tracer   trace.Tracer
	meter    metric.Meter
	duration metric.Float64Histogram
)

// Tracer returns the module tracer. Before InitTracing it is the global
// provider's tracer, which is a no-op unless the process installed one.
func Tracer() trace.Tracer {
	mu.RLock()
	t := tracer
	mu.RUnlock()
	if t == nil {
		return otel.Tracer(InstrumentationName)
	}
	return t
}

// Meter returns the module meter from the global meter provider.
func Meter() metric.Meter {
	mu.RLock()
	m := meter
	mu.RUnlock()
	if m == nil {
		return otel.Meter(InstrumentationName)
	}
	return m
}

// Span wraps a trace span and records its duration on End.
type Span struct {
	span       trace.Span
	name       string
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span named operation on t, or on Tracer() when t is nil.
func StartSpan(ctx context.Context, t trace.Tracer, operation string) (context.Context, *Span) {
	if t == nil {
		t = Tracer()
	}
	ctx, span := t.Start(ctx, operation)
	return ctx, &Span{
		span:      span,
		name:      operation,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span. Attributes are flushed on End.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span.
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Fail marks the span as failed.
func (s *Span) Fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End ends the span and records its duration.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}

	if h := durationHistogram(); h != nil {
		h.Record(context.Background(), time.Since(s.startTime).Seconds(),
			metric.WithAttributes(attribute.String("operation", s.name)))
	}

	s.span.End()
}

func durationHistogram() metric.Float64Histogram {
	mu.RLock()
	h := duration
	mu.RUnlock()
	if h != nil {
		return h
	}

	mu.Lock()
	defer mu.Unlock()
	if duration == nil {
		m := meter
		if m == nil {
			m = otel.Meter(InstrumentationName)
		}
		h, err := m.Float64Histogram("trill.operation.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of traced pool operations"))
		if err != nil {
			return nil
		}
		duration = h
	}
	return duration
}
