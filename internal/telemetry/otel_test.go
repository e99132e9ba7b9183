package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/billguard/internal/common"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), common.TelemetryConfig{ServiceName: "billguard"}, "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	// exporters connect lazily, so no collector needs to be listening
	shutdown, err := Setup(context.Background(), common.TelemetryConfig{
		OTLPEndpoint: "http://127.0.0.1:4317",
		ServiceName:  "billguard-test",
	}, "test", nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
