package telemetry

import "context"

// NoopLogger discards every log call. It is the default Logger when a
// caller does not configure one.
type NoopLogger struct{}

func (NoopLogger) Debug(context.Context, string, ...any) {}
func (NoopLogger) Info(context.Context, string, ...any)  {}
func (NoopLogger) Warn(context.Context, string, ...any)  {}
func (NoopLogger) Error(context.Context, string, ...any) {}

// NoopTracer starts spans that do nothing. It is the default Tracer.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, _ string, _ ...KV) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                  {}
func (noopSpan) SetError(error)        {}
func (noopSpan) SetAttributes(...KV)   {}

// NoopMetrics discards every metric recording. It is the default Metrics.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(context.Context, string, int64, ...KV)     {}
func (NoopMetrics) RecordHistogram(context.Context, string, float64, ...KV) {}
