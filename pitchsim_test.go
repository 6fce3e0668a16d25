package pitchsim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/pitchsim/types"
)

func TestNew_DefaultWiringRunsEndToEnd(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	report, err := engine.Run(context.Background(), RunConfig{
		Persona:           "interested",
		MaxTurns:          20,
		DeadlockThreshold: 5,
		CallTimeout:       time.Second,
	})
	require.NoError(t, err)

	assert.True(t, report.FinalStatus.IsTerminal())
	assert.Equal(t, len(report.Turns), report.TotalTurns)
	assert.NotEmpty(t, report.SessionID)
	// 默认接了启发式教练,每一轮都应有评分
	for _, turn := range report.Turns {
		assert.NotNil(t, turn.CoachScore)
	}
}

func TestNew_CustomArms(t *testing.T) {
	engine, err := New(WithArms([]string{"probe_needs", "close_deal"}))
	require.NoError(t, err)
	defer engine.Close()

	assert.ElementsMatch(t, []string{"probe_needs", "close_deal"}, engine.Router().Arms())
}

func TestNew_RejectsEmptyArms(t *testing.T) {
	_, err := New(WithArms(nil))
	assert.Error(t, err)
}

func TestEngine_RunStatusIsAlwaysTerminal(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	for _, persona := range []string{"price_sensitive", "skeptical", "silent_type", "interested", "comparison_shopper"} {
		report, err := engine.Run(context.Background(), RunConfig{
			Persona:           persona,
			MaxTurns:          10,
			DeadlockThreshold: 4,
			CallTimeout:       time.Second,
		})
		require.NoError(t, err, persona)
		assert.NotEqual(t, types.RunRunning, report.FinalStatus, persona)
		assert.LessOrEqual(t, report.TotalTurns, 10, persona)
	}
}
