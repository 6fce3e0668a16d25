package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/config"
)

func TestInit_DisabledReturnsNoopProviders(t *testing.T) {
	p, err := Init(config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, p)

	// Shutdown on noop providers is a no-op.
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdown_NilReceiver(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}
