package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	s := SettingsFromEnv()
	assert.True(t, s.Enabled)
	assert.Equal(t, "localhost:4318", s.Endpoint)
	assert.Equal(t, defaultServiceName, s.ServiceName)
	assert.Equal(t, 0.25, s.SampleRatio)
}

func TestSettingsRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLE_RATIO", "7")

	s := SettingsFromEnv()
	assert.False(t, s.Enabled)
	assert.Equal(t, 1.0, s.SampleRatio)
}

func TestInitTracerDisabledIsNoop(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	shutdown := InitTracer()
	assert.NoError(t, shutdown(context.Background()))
}
