package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// recordSpans routes spans to an in-memory exporter for the test.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	UseTracerProvider(tp)
	t.Cleanup(func() {
		UseTracerProvider(nil)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

// ============================================================================
// Configuration Tests
// ============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "oncrpc", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Profiling.Enabled)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, stop())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes([]string{"cpu", "INUSE_SPACE", "goroutines"})
	require.NoError(t, err)
	assert.Len(t, types, 3)

	_, err = ParseProfileTypes([]string{"cpu", "heapz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heapz")
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1.0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

// ============================================================================
// No-op Behavior Tests
// ============================================================================

func TestNoOpWithoutInit(t *testing.T) {
	UseTracerProvider(nil)
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	span.End()

	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
		RecordError(ctx, nil)
		RecordError(ctx, errors.New("test error"))
		SetAttributes(ctx, RPCXID(1))
	})

	assert.Equal(t, "", TraceID(ctx))
	assert.Equal(t, "", SpanID(ctx))
}

// ============================================================================
// RPC Span Tests
// ============================================================================

func TestStartRPCSpan(t *testing.T) {
	exporter := recordSpans(t)

	ctx, span := StartRPCSpan(context.Background(), 0xdeadbeef, 100003, 3, 0, "AUTH_UNIX", ConnID("c1"))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	RecordError(ctx, errors.New("rpc auth error"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	got := spans[0]
	assert.Equal(t, SpanRPCCall, got.Name)
	assert.Equal(t, trace.SpanKindClient, got.SpanKind)
	assert.Equal(t, codes.Error, got.Status.Code)

	attrs := attrMap(got.Attributes)
	assert.Equal(t, int64(0xdeadbeef), attrs[AttrRPCXID].AsInt64())
	assert.Equal(t, int64(100003), attrs[AttrRPCProgram].AsInt64())
	assert.Equal(t, int64(3), attrs[AttrRPCVersion].AsInt64())
	assert.Equal(t, int64(0), attrs[AttrRPCProcedure].AsInt64())
	assert.Equal(t, "AUTH_UNIX", attrs[AttrRPCAuthType].AsString())
	assert.Equal(t, "c1", attrs[AttrConnID].AsString())
}

func TestStartDialSpan(t *testing.T) {
	exporter := recordSpans(t)

	_, span := StartDialSpan(context.Background(), "10.0.0.1:2049", LocalPort(812))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanRPCDial, spans[0].Name)

	attrs := attrMap(spans[0].Attributes)
	assert.Equal(t, "10.0.0.1:2049", attrs[AttrServerAddr].AsString())
	assert.Equal(t, int64(812), attrs[AttrLocalPort].AsInt64())
}
