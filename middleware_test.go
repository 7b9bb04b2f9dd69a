package trellis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware_Hooks(t *testing.T) {
	var events []string

	mw := &FuncMiddleware{
		BeforeConstructFunc: func(key Key) error {
			events = append(events, "before "+key.String())

			return nil
		},
		AfterConstructFunc: func(key Key, instance any, err error) error {
			events = append(events, "after "+key.String())

			return nil
		},
	}

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(newDatabase)).
		Bind(CacheKey, To1(newCache, Require(DatabaseKey))).
		Use(mw))
	require.NoError(t, err)

	_, err = inj.GetInstance(CacheKey)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before *trellis.Cache",
		"after *trellis.Cache",
	}, events[2:])
	assert.Equal(t, []string{
		"before *trellis.Database",
		"after *trellis.Database",
	}, events[:2])

	// cached instances do not run the factory again
	_, err = inj.GetInstance(CacheKey)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestMiddleware_BeforeAborts(t *testing.T) {
	denied := errors.New("denied")

	var factoryCalls int

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(func() (*Database, error) {
			factoryCalls++

			return newDatabase()
		})).
		Use(&FuncMiddleware{
			BeforeConstructFunc: func(Key) error { return denied },
		}))
	require.NoError(t, err)

	_, err = inj.GetInstance(DatabaseKey)
	assert.ErrorIs(t, err, denied)
	assert.ErrorIs(t, err, ErrCannotConstruct)
	assert.Equal(t, 0, factoryCalls)
}

func TestMiddleware_AfterSeesFailures(t *testing.T) {
	boom := errors.New("boom")

	var seen error

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(func() (*Database, error) { return nil, boom })).
		Use(&FuncMiddleware{
			AfterConstructFunc: func(_ Key, _ any, err error) error {
				seen = err

				return errors.New("ignored, construction already failed")
			},
		}))
	require.NoError(t, err)

	_, err = inj.GetInstance(DatabaseKey)
	assert.ErrorIs(t, err, boom)
	assert.Same(t, boom, seen)
}

func TestMiddleware_FromSeveralModules(t *testing.T) {
	calls := 0
	count := &FuncMiddleware{
		BeforeConstructFunc: func(Key) error {
			calls++

			return nil
		},
	}

	// one interceptor for all middleware, so no transformer ambiguity
	inj, err := Compile(
		NewModule().Bind(DatabaseKey, To(newDatabase)).Use(count),
		NewModule().Use(count),
	)
	require.NoError(t, err)

	_, err = inj.GetInstance(DatabaseKey)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMiddleware_EmptyFuncMiddleware(t *testing.T) {
	mw := &FuncMiddleware{}

	assert.NoError(t, mw.BeforeConstruct(DatabaseKey))
	assert.NoError(t, mw.AfterConstruct(DatabaseKey, nil, nil))
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(newDatabase)).
		Bind(CacheKey, To(func() (*Cache, error) { return nil, errors.New("no cache") })).
		Use(LoggingMiddleware(zap.New(core))))
	require.NoError(t, err)

	_, err = inj.GetInstance(DatabaseKey)
	require.NoError(t, err)

	_, err = inj.GetInstance(CacheKey)
	require.Error(t, err)

	constructed := logs.FilterMessage("constructed").All()
	require.Len(t, constructed, 1)
	assert.Equal(t, "*trellis.Database", constructed[0].ContextMap()["key"])

	failed := logs.FilterMessage("construction failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
}

func TestMetricsMiddleware(t *testing.T) {
	mw, err := MetricsMiddleware(noop.NewMeterProvider().Meter("trellis"))
	require.NoError(t, err)

	_, ok := mw.(TimedMiddleware)
	assert.True(t, ok)

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(newDatabase)).
		Bind(CacheKey, To1(newCache, Require(DatabaseKey))).
		Use(mw))
	require.NoError(t, err)

	_, err = inj.GetInstance(CacheKey)
	require.NoError(t, err)
}

func TestMetricsMiddleware_DurationPerCall(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	mw, err := MetricsMiddleware(provider.Meter("trellis"))
	require.NoError(t, err)

	var calls int32

	firstStarted := make(chan struct{})

	inj, err := Compile(NewModule().
		Bind(SessionKey, To(func() (*Session, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(firstStarted)
				time.Sleep(40 * time.Millisecond)
			} else {
				time.Sleep(200 * time.Millisecond)
			}

			return &Session{}, nil
		}), RequestScope).
		Use(mw))
	require.NoError(t, err)

	first, err := inj.EnterScope(RequestScope)
	require.NoError(t, err)

	second, err := inj.EnterScope(RequestScope)
	require.NoError(t, err)

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		_, err := first.GetInstance(SessionKey)
		assert.NoError(t, err)
	}()

	<-firstStarted
	time.Sleep(20 * time.Millisecond)

	// the second construction starts later and ends after the first one
	go func() {
		defer wg.Done()

		_, err := second.GetInstance(SessionKey)
		assert.NoError(t, err)
	}()

	wg.Wait()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	histogram := histogramData(t, rm, "trellis.construction.duration")
	require.Len(t, histogram.DataPoints, 1)

	point := histogram.DataPoints[0]
	assert.Equal(t, uint64(2), point.Count)

	minimum, ok := point.Min.Value()
	require.True(t, ok)
	assert.GreaterOrEqual(t, minimum, 0.04)

	maximum, ok := point.Max.Value()
	require.True(t, ok)
	assert.GreaterOrEqual(t, maximum, 0.2)
}

func histogramData(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			histogram, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)

			return histogram
		}
	}

	t.Fatalf("metric %s was not recorded", name)

	return metricdata.Histogram[float64]{}
}

func TestTimedMiddleware_ReceivesElapsed(t *testing.T) {
	timed := &recordingTimedMiddleware{}

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(func() (*Database, error) {
			time.Sleep(5 * time.Millisecond)

			return newDatabase()
		})).
		Use(timed))
	require.NoError(t, err)

	_, err = inj.GetInstance(DatabaseKey)
	require.NoError(t, err)

	require.Len(t, timed.elapsed, 1)
	assert.GreaterOrEqual(t, timed.elapsed[0], 5*time.Millisecond)
	assert.Zero(t, timed.untimed)
}

type recordingTimedMiddleware struct {
	elapsed []time.Duration
	untimed int
}

func (r *recordingTimedMiddleware) BeforeConstruct(Key) error { return nil }

func (r *recordingTimedMiddleware) AfterConstruct(Key, any, error) error {
	r.untimed++

	return nil
}

func (r *recordingTimedMiddleware) AfterConstructTimed(_ Key, _ any, _ error, elapsed time.Duration) error {
	r.elapsed = append(r.elapsed, elapsed)

	return nil
}

func TestCompile_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	_, err := CompileWith([]Option{WithLogger(zap.New(core))},
		NewModule().Bind(DatabaseKey, To(newDatabase)))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("injector compiled").Len())

	_, err = CompileWith([]Option{WithLogger(zap.New(core))},
		NewModule().Bind(CacheKey, To1(newCache, Require(DatabaseKey))))
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("binding graph validation failed").Len())
}
