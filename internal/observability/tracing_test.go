package observability

import (
	"context"
	"errors"
	"testing"

	"agora/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "agora-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan(t *testing.T) {
	ctx, finish := StartSpan(context.Background(), "unit", attribute.String("k", "v"))
	assert.NotNil(t, ctx)
	finish(errors.New("boom"))
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "agora-test", Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")
}

func TestTracingFromConfig(t *testing.T) {
	cfg := &config.Config{
		Env:                "staging",
		TracingEnabled:     true,
		TracingExporter:    "otlp",
		OTLPEndpoint:       "collector:4318",
		TracingSampleRatio: 0.25,
	}
	tc := TracingFromConfig(cfg, "agora-worker")
	assert.Equal(t, "agora-worker", tc.ServiceName)
	assert.Equal(t, "staging", tc.Environment)
	assert.True(t, tc.Enabled)
	assert.Equal(t, "otlp", tc.Exporter)
	assert.Equal(t, "collector:4318", tc.OTLPEndpoint)
	assert.InDelta(t, 0.25, tc.SamplerRatio, 1e-9)
	assert.NotEmpty(t, tc.ServiceVersion)
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0.5).Description(), "TraceIDRatioBased{0.5}")
}
