package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tbourn/solar-support-backend/internal/config"
)

func enabledConfig() config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "solar-support-test",
		SampleRatio: 1,
		Environment: "test",
	}
}

// keepGlobals restores the otel globals and the seams after the test.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	exp, res := newExporter, newResource
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
		newExporter, newResource = exp, res
	})
}

func inMemory(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	mem := tracetest.NewInMemoryExporter()
	newExporter = func(context.Context, config.OTELConfig) (sdktrace.SpanExporter, error) { return mem, nil }
	return mem
}

func TestSetupOTel_Disabled(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	cfg := enabledConfig()
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, "v0")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetupOTel_ExportsSpansWithResource(t *testing.T) {
	keepGlobals(t)
	mem := inMemory(t)

	shutdown, err := SetupOTel(context.Background(), enabledConfig(), "v1.4.0")
	require.NoError(t, err)

	defer func() { _ = shutdown(context.Background()) }()

	_, span := otel.Tracer("services/TicketService").Start(context.Background(), "Create")
	span.End()
	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := mem.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Create", spans[0].Name)

	attrs := spans[0].Resource.Set()
	for _, want := range []struct {
		key attribute.Key
		val string
	}{
		{semconv.ServiceNameKey, "solar-support-test"},
		{semconv.ServiceVersionKey, "v1.4.0"},
		{semconv.DeploymentEnvironmentKey, "test"},
	} {
		v, ok := attrs.Value(want.key)
		require.True(t, ok, string(want.key))
		assert.Equal(t, want.val, v.AsString())
	}
}

func TestSetupOTel_PropagatesTraceContext(t *testing.T) {
	keepGlobals(t)
	inMemory(t)

	shutdown, err := SetupOTel(context.Background(), enabledConfig(), "v1")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("test").Start(context.Background(), "chat")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestSetupOTel_RealExporterIsLazy(t *testing.T) {
	keepGlobals(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, insecure := range []bool{true, false} {
		cfg := enabledConfig()
		cfg.Insecure = insecure
		shutdown, err := SetupOTel(ctx, cfg, "v1")
		require.NoError(t, err)
		_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
		assert.True(t, ok)
		_ = shutdown(context.Background())
	}
}

func TestSetupOTel_Failures(t *testing.T) {
	t.Run("exporter", func(t *testing.T) {
		keepGlobals(t)
		before := otel.GetTracerProvider()
		newExporter = func(context.Context, config.OTELConfig) (sdktrace.SpanExporter, error) {
			return nil, errors.New("collector unreachable")
		}
		_, err := SetupOTel(context.Background(), enabledConfig(), "v1")
		require.EqualError(t, err, "collector unreachable")
		assert.Equal(t, before, otel.GetTracerProvider())
	})

	t.Run("resource", func(t *testing.T) {
		keepGlobals(t)
		before := otel.GetTracerProvider()
		inMemory(t)
		newResource = func(context.Context, config.OTELConfig, string) (*resource.Resource, error) {
			return nil, errors.New("bad resource")
		}
		_, err := SetupOTel(context.Background(), enabledConfig(), "v1")
		require.EqualError(t, err, "bad resource")
		assert.Equal(t, before, otel.GetTracerProvider())
	})
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", samplerFor(1).Description())
	assert.Equal(t, "AlwaysOnSampler", samplerFor(3).Description())
	assert.Equal(t, "AlwaysOffSampler", samplerFor(0).Description())
	assert.Equal(t, "AlwaysOffSampler", samplerFor(-1).Description())
	assert.Equal(t, "TraceIDRatioBased{0.25}", samplerFor(0.25).Description())
}
