package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Disabled(t *testing.T) {
	cfg := Config{Enabled: false, Endpoint: "localhost:4318"}

	shutdown, err := Setup(context.Background(), cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_DefaultEndpoint(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Endpoint:    "", // Empty should use default
		Environment: "test",
		ServiceName: "kiosk-test",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg)

	// Should not fail even with empty Endpoint
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetup_CollectorUnavailable_GracefulDegradation(t *testing.T) {
	// Point at a collector that does not exist. Exporter creation is lazy,
	// so Setup must still succeed; spans fail to export silently.
	cfg := Config{
		Enabled:     true,
		Endpoint:    "localhost:1",
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestTracer_ReturnsUsableTracer(t *testing.T) {
	tracer := Tracer("kiosk-test")
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test.span")
	span.End()
}

func TestDefaultEndpoint_Value(t *testing.T) {
	assert.Equal(t, "localhost:4318", DefaultEndpoint)
}
