package bandit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/pitchsim/types"
)

func newTestRouter(t *testing.T, arms []string) *Router {
	t.Helper()
	r, err := New(Config{Arms: arms, Dim: 4, Alpha: 0.5, Lambda: 1.0}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Arms: nil, Dim: 4, Alpha: 0.5, Lambda: 1.0}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Arms: []string{"a"}, Dim: 0, Alpha: 0.5, Lambda: 1.0}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Arms: []string{"a"}, Dim: 4, Alpha: 0.5, Lambda: 0}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Arms: []string{"a", "a"}, Dim: 4, Alpha: 0.5, Lambda: 1.0}, nil, nil)
	assert.Error(t, err, "duplicate arms rejected")
}

func TestNew_HybridRejected(t *testing.T) {
	_, err := New(Config{Arms: []string{"a"}, Dim: 4, Alpha: 0.5, Lambda: 1.0, Variant: VariantHybrid}, nil, nil)
	assert.ErrorIs(t, err, ErrHybridUnsupported)
}

func TestChoose_FreshRouterScoreZeroDistinctIDs(t *testing.T) {
	r := newTestRouter(t, []string{"probe", "pitch"})
	ctx := context.Background()
	rctx := RouteContext{IntentConfidence: 0.7, Stage: types.StateDiscovery, HasIntent: true}

	d1 := r.Choose(ctx, rctx, nil)
	assert.Equal(t, 0.0, d1.Score, "theta is zero initially, expected reward must be 0")
	assert.NotEmpty(t, d1.DecisionID)
	assert.Greater(t, d1.UCB, 0.0, "confidence term is positive for a non-zero feature vector")
	assert.True(t, d1.Exploration)

	d2 := r.Choose(ctx, rctx, nil)
	assert.NotEqual(t, d1.DecisionID, d2.DecisionID, "consecutive choices produce distinct decision ids")
}

func TestChoose_EmptyCandidateIntersectionFallsBack(t *testing.T) {
	r := newTestRouter(t, []string{"probe", "pitch"})
	d := r.Choose(context.Background(), RouteContext{}, []string{"nonexistent"})

	assert.Equal(t, "probe", d.Arm, "falls back to first configured arm")
	assert.Equal(t, 0.0, d.Score)
	assert.True(t, d.Exploration)
	assert.NotEmpty(t, d.DecisionID)
}

func TestChoose_CandidateRestriction(t *testing.T) {
	r := newTestRouter(t, []string{"probe", "pitch", "close"})
	d := r.Choose(context.Background(), RouteContext{Stage: types.StateClosing}, []string{"close"})
	assert.Equal(t, "close", d.Arm)
	assert.Len(t, d.AllScores, 1)
}

func TestChoose_TieBreaksByEnumerationOrder(t *testing.T) {
	r := newTestRouter(t, []string{"b_arm", "a_arm"})
	// Fresh router: both arms score identically, first configured wins.
	d := r.Choose(context.Background(), RouteContext{Stage: types.StatePitch}, nil)
	assert.Equal(t, "b_arm", d.Arm)
}

func TestRecordFeedback_UpdatesModel(t *testing.T) {
	r := newTestRouter(t, []string{"probe", "pitch"})
	ctx := context.Background()
	rctx := RouteContext{IntentConfidence: 1.0, Stage: types.StateDiscovery}

	d := r.Choose(ctx, rctx, nil)
	ok := r.RecordFeedback(ctx, d.DecisionID, 1.0, nil)
	require.True(t, ok)

	theta, solved := r.Theta(d.Arm)
	require.True(t, solved)
	assert.Greater(t, norm2(theta), 0.0, "positive reward moves theta away from zero")

	stats := r.Stats()
	assert.Equal(t, int64(1), stats[d.Arm].Pulls)
	assert.Equal(t, 1.0, stats[d.Arm].TotalReward)
	assert.Equal(t, 1.0, stats[d.Arm].AvgReward)
}

func TestRecordFeedback_UnknownIDReturnsFalse(t *testing.T) {
	r := newTestRouter(t, []string{"probe"})
	ok := r.RecordFeedback(context.Background(), "no-such-id", 0.5, nil)
	assert.False(t, ok)
}

func TestRecordFeedback_ConsumedExactlyOnce(t *testing.T) {
	r := newTestRouter(t, []string{"probe"})
	ctx := context.Background()
	d := r.Choose(ctx, RouteContext{}, nil)

	assert.True(t, r.RecordFeedback(ctx, d.DecisionID, 0.5, nil))
	assert.False(t, r.RecordFeedback(ctx, d.DecisionID, 0.5, nil), "second consumption must fail")
}

func TestRecordFeedback_RewardClamped(t *testing.T) {
	r := newTestRouter(t, []string{"probe"})
	ctx := context.Background()

	d := r.Choose(ctx, RouteContext{IntentConfidence: 1.0}, nil)
	require.True(t, r.RecordFeedback(ctx, d.DecisionID, 5.0, nil))

	stats := r.Stats()
	assert.Equal(t, 1.0, stats["probe"].TotalReward, "reward above 1 is clamped")
}

func TestChoose_LearnsFromRewards(t *testing.T) {
	r := newTestRouter(t, []string{"good", "bad"})
	ctx := context.Background()
	rctx := RouteContext{IntentConfidence: 0.8, Stage: types.StatePitch, HasIntent: true}

	// Reward "good" heavily, punish "bad".
	for i := 0; i < 50; i++ {
		d := r.Choose(ctx, rctx, nil)
		reward := -1.0
		if d.Arm == "good" {
			reward = 1.0
		}
		require.True(t, r.RecordFeedback(ctx, d.DecisionID, reward, nil))
	}

	// Exploitation should now overwhelmingly favor "good".
	wins := 0
	for i := 0; i < 20; i++ {
		d := r.Choose(ctx, rctx, nil)
		if d.Arm == "good" {
			wins++
			require.True(t, r.RecordFeedback(ctx, d.DecisionID, 1.0, nil))
		} else {
			require.True(t, r.RecordFeedback(ctx, d.DecisionID, -1.0, nil))
		}
	}
	assert.Greater(t, wins, 15)
}

func TestMemoryPendingStore_TTLExpiry(t *testing.T) {
	s := NewMemoryPendingStore(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, PendingDecision{ID: "d1", Arm: "a", CreatedAt: time.Now()}))

	time.Sleep(40 * time.Millisecond)
	_, ok, err := s.Take(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok, "expired decisions are not retrievable")
}

func TestFeatureVector_Encoding(t *testing.T) {
	f := featureVector(RouteContext{
		IntentConfidence: 1.5, // clamped to 1
		Stage:            types.StatePitch,
		NeedsTool:        true,
		RiskFlags:        9, // 9/3 clamped to 1
		RecentToolCall:   false,
		HasIntent:        true,
	}, 10)

	assert.Equal(t, []float64{1, 0, 0, 1, 0, 0, 1, 1, 0, 1}, f)

	// Pad and truncate to the configured dim.
	assert.Len(t, featureVector(RouteContext{}, 16), 16)
	assert.Len(t, featureVector(RouteContext{}, 4), 4)
}

func TestFeatureVector_TerminalStageAllZeroOneHot(t *testing.T) {
	f := featureVector(RouteContext{Stage: types.StateCompleted}, 10)
	for i := 1; i <= 5; i++ {
		assert.Zero(t, f[i])
	}
}
