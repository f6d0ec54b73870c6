package gate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observer is notified of every rule result and gate verdict. Observers run
// synchronously on the validating goroutine and must be safe for concurrent
// use.
type Observer interface {
	ObserveResult(ctx context.Context, r Result)
	ObserveVerdict(ctx context.Context, v Verdict)
}

// Sink receives a summary of every completed report. It matches the memory
// collaborator's Store method; ttlSeconds is the retention in seconds.
type Sink interface {
	Store(ctx context.Context, key string, value any, ttlSeconds int) (bool, error)
}

// DefaultResultTTL is how long report summaries are retained by the sink.
const DefaultResultTTL = 24 * time.Hour

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHistoryLimit sets the capacity of the result ring.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.history = NewHistory(n) }
}

// WithDefaultTimeout sets the predicate timeout for rules that do not set one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithSink stores a summary of every report from ValidateAll.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithResultTTL sets the retention passed to the sink.
func WithResultTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.resultTTL = d
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRunID overrides the run id generator.
func WithRunID(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newRunID = fn
		}
	}
}

// WithTracer sets the tracer. The global tracer provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithMeter sets the meter for engine metrics. The global meter provider is
// used otherwise.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) {
		if m != nil {
			e.meter = m
		}
	}
}
