package trellis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MiddlewarePriority is the transformer priority the middleware interceptor
// runs at. It is high so that user transformers have already wrapped the
// factory when the hooks are attached.
const MiddlewarePriority = 1 << 20

// Middleware provides hooks around every factory call of a compiled injector.
// Middleware can be used for logging, metrics, tracing, testing, etc.
type Middleware interface {
	// BeforeConstruct is called before the factory of key runs.
	// Return error to abort construction.
	BeforeConstruct(key Key) error

	// AfterConstruct is called after the factory ran.
	// Called even if construction failed (instance and err may both be set).
	AfterConstruct(key Key, instance any, err error) error
}

// TimedMiddleware is middleware that needs the duration of each factory
// call. The interceptor calls AfterConstructTimed instead of AfterConstruct
// for it, with the time measured around that very call.
type TimedMiddleware interface {
	Middleware
	AfterConstructTimed(key Key, instance any, err error, elapsed time.Duration) error
}

// middlewareChain manages multiple middleware.
type middlewareChain struct {
	middleware []Middleware
}

// beforeConstruct calls BeforeConstruct on all middleware.
func (m *middlewareChain) beforeConstruct(key Key) error {
	for _, mw := range m.middleware {
		if err := mw.BeforeConstruct(key); err != nil {
			return err
		}
	}

	return nil
}

// afterConstruct calls AfterConstruct on all middleware.
func (m *middlewareChain) afterConstruct(key Key, instance any, err error, elapsed time.Duration) error {
	for _, mw := range m.middleware {
		var mwErr error
		if timed, ok := mw.(TimedMiddleware); ok {
			mwErr = timed.AfterConstructTimed(key, instance, err, elapsed)
		} else {
			mwErr = mw.AfterConstruct(key, instance, err)
		}

		if mwErr != nil {
			return mwErr
		}
	}

	return nil
}

// Transform wraps the factory of every binding with the hooks.
func (m *middlewareChain) Transform(_ []Scope, key Key, binding *Binding) *Binding {
	factory := binding.factory

	return &Binding{
		dependencies: binding.dependencies,
		factory: func(args []any) (any, error) {
			if err := m.beforeConstruct(key); err != nil {
				return nil, err
			}

			start := time.Now()
			instance, err := factory(args)

			if mwErr := m.afterConstruct(key, instance, err, time.Since(start)); mwErr != nil && err == nil {
				return nil, mwErr
			}

			return instance, err
		},
		location: binding.location,
	}
}

// Interceptor returns the transformer that applies middleware to every
// binding. Compile registers it at MiddlewarePriority for the middleware of
// all installed modules, so it normally does not need to be used directly.
func Interceptor(middleware ...Middleware) BindingTransformer {
	return &middlewareChain{middleware: append([]Middleware(nil), middleware...)}
}

// FuncMiddleware wraps functions as Middleware.
type FuncMiddleware struct {
	BeforeConstructFunc func(key Key) error
	AfterConstructFunc  func(key Key, instance any, err error) error
}

// BeforeConstruct implements Middleware.
func (f *FuncMiddleware) BeforeConstruct(key Key) error {
	if f.BeforeConstructFunc != nil {
		return f.BeforeConstructFunc(key)
	}

	return nil
}

// AfterConstruct implements Middleware.
func (f *FuncMiddleware) AfterConstruct(key Key, instance any, err error) error {
	if f.AfterConstructFunc != nil {
		return f.AfterConstructFunc(key, instance, err)
	}

	return nil
}

// LoggingMiddleware logs every construction at debug level and every failed
// one at warn level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return &FuncMiddleware{
		AfterConstructFunc: func(key Key, instance any, err error) error {
			if err != nil {
				logger.Warn("construction failed", zap.Stringer("key", key), zap.Error(err))

				return nil
			}

			logger.Debug("constructed",
				zap.Stringer("key", key),
				zap.Bool("refused", instance == nil),
			)

			return nil
		},
	}
}

// metricsMiddleware records construction counts and durations.
type metricsMiddleware struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// MetricsMiddleware creates a middleware recording trellis.construction.total
// and trellis.construction.duration on meter.
func MetricsMiddleware(meter metric.Meter) (Middleware, error) {
	total, err := meter.Int64Counter("trellis.construction.total",
		metric.WithDescription("Total number of factory calls"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("trellis.construction.duration",
		metric.WithDescription("Duration of factory calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsMiddleware{total: total, duration: duration}, nil
}

func (m *metricsMiddleware) BeforeConstruct(Key) error { return nil }

// AfterConstruct counts a factory call whose duration is unknown.
func (m *metricsMiddleware) AfterConstruct(key Key, instance any, err error) error {
	m.total.Add(context.Background(), 1, outcomeAttributes(key, instance, err))

	return nil
}

func (m *metricsMiddleware) AfterConstructTimed(key Key, instance any, err error, elapsed time.Duration) error {
	attrs := outcomeAttributes(key, instance, err)

	ctx := context.Background()
	m.total.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)

	return nil
}

func outcomeAttributes(key Key, instance any, err error) metric.MeasurementOption {
	outcome := "ok"

	switch {
	case err != nil:
		outcome = "error"
	case instance == nil:
		outcome = "refused"
	}

	return metric.WithAttributes(
		attribute.String("key", key.String()),
		attribute.String("outcome", outcome),
	)
}
