package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// ClueLogger delegates to goa.design/clue/log. It reads formatting and
// debug settings from the context set up via log.Context, matching the
// logging convention used throughout the example pack's goa-ai services.
type ClueLogger struct{}

// NewClueLogger constructs a Logger backed by clue/log. Core packages never
// import clue directly; only this adapter does, so swapping the logging
// backend never touches orchestrator/tool/dedupe code.
func NewClueLogger() Logger { return ClueLogger{} }

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvFielders(keyvals)...)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvFielders(keyvals)...)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}, kvFielders(keyvals)...)
	log.Warn(ctx, fielders...)
}

func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvFielders(keyvals)...)...)
}

func kvFielders(keyvals []any) []log.Fielder {
	out := make([]log.Fielder, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		if key == "" {
			continue
		}
		out = append(out, log.KV{K: key, V: keyvals[i+1]})
	}
	return out
}

// OtelTracer delegates span creation to the OpenTelemetry global trace
// provider. Configure the provider (OTLP exporter, sampler) independently
// via the standard otel SDK setup; this type only needs a tracer name.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer constructs a Tracer using the named OTEL tracer.
func NewOtelTracer(name string) Tracer {
	return OtelTracer{tracer: otel.Tracer(name)}
}

func (t OtelTracer) StartSpan(ctx context.Context, name string, attrs ...KV) (context.Context, Span) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toOtelAttrs(attrs)...))
	return spanCtx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s otelSpan) SetAttributes(attrs ...KV) {
	s.span.SetAttributes(toOtelAttrs(attrs)...)
}

func toOtelAttrs(attrs []KV) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case int:
			out = append(out, attribute.Int(a.Key, v))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case float64:
			out = append(out, attribute.Float64(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		default:
			out = append(out, attribute.String(a.Key, fmtValue(v)))
		}
	}
	return out
}

func fmtValue(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// OtelMetrics delegates to the OpenTelemetry global meter provider.
type OtelMetrics struct {
	meter      metric.Meter
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOtelMetrics constructs a Metrics recorder using the named OTEL meter.
func NewOtelMetrics(name string) *OtelMetrics {
	return &OtelMetrics{
		meter:      otel.Meter(name),
		counters:   map[string]metric.Int64Counter{},
		histograms: map[string]metric.Float64Histogram{},
	}
}

func (m *OtelMetrics) IncCounter(ctx context.Context, name string, value int64, attrs ...KV) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		var err error
		c, err = m.meter.Int64Counter(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.counters[name] = c
	}
	m.mu.Unlock()
	c.Add(ctx, value, metric.WithAttributes(toOtelAttrs(attrs)...))
}

func (m *OtelMetrics) RecordHistogram(ctx context.Context, name string, value float64, attrs ...KV) {
	m.mu.Lock()
	h, ok := m.histograms[name]
	if !ok {
		var err error
		h, err = m.meter.Float64Histogram(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.histograms[name] = h
	}
	m.mu.Unlock()
	h.Record(ctx, value, metric.WithAttributes(toOtelAttrs(attrs)...))
}
