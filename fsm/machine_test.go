package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/types"
)

func TestFire_OpeningToDiscovery(t *testing.T) {
	m := NewMachine([]Rule{{
		Name:     "opening_to_discovery",
		From:     types.StateOpening,
		To:       types.StateDiscovery,
		Trigger:  types.TriggerRapportEstablished,
		Priority: 10,
	}}, zap.NewNop())

	c := m.NewContext("s-1")
	require.Equal(t, types.StateOpening, c.CurrentState)

	ok, msg := m.Fire(c, types.TriggerRapportEstablished, "customer warmed up", 0.9)
	assert.True(t, ok, msg)
	assert.Equal(t, types.StateDiscovery, c.CurrentState)
	require.Len(t, c.Transitions, 1)
	assert.Equal(t, types.StateOpening, c.Transitions[0].From)
	assert.Equal(t, types.StateDiscovery, c.Transitions[0].To)
	assert.Equal(t, 0.9, c.Transitions[0].Confidence)
}

func TestFire_GuardBlocksUntilQuestionsAsked(t *testing.T) {
	m := NewDefaultMachine(nil)
	c := m.NewContext("s-2")
	c.CurrentState = types.StateDiscovery
	c.QuestionsAsked = 2

	ok, msg := m.Fire(c, types.TriggerNeedsIdentified, "needs captured", 1.0)
	assert.False(t, ok)
	assert.Contains(t, msg, "conditions not met")
	assert.Equal(t, types.StateDiscovery, c.CurrentState, "rejected transition must not mutate")
	assert.Empty(t, c.Transitions)

	c.QuestionsAsked = 3
	ok, _ = m.Fire(c, types.TriggerNeedsIdentified, "needs captured", 1.0)
	assert.True(t, ok)
	assert.Equal(t, types.StatePitch, c.CurrentState)
}

func TestFire_NoRuleVsGuardsFailed(t *testing.T) {
	m := NewDefaultMachine(nil)
	c := m.NewContext("s-3")

	// Opening has no rule for CommitmentMade at all
	ok, msg := m.Fire(c, types.TriggerCommitmentMade, "", 1.0)
	assert.False(t, ok)
	assert.Contains(t, msg, "no rule")
	assert.Empty(t, c.Transitions)
}

func TestFire_BuyingSignalShortcutWinsByPriority(t *testing.T) {
	m := NewDefaultMachine(nil)
	c := m.NewContext("s-4")
	c.CurrentState = types.StateDiscovery
	c.QuestionsAsked = 5

	// BuyingSignal (priority 15) is a distinct trigger; it must fire even
	// with zero questions asked.
	c2 := m.NewContext("s-4b")
	c2.CurrentState = types.StateDiscovery
	ok, _ := m.Fire(c2, types.TriggerBuyingSignal, "early buying signal", 1.0)
	assert.True(t, ok)
	assert.Equal(t, types.StatePitch, c2.CurrentState)
}

func TestFire_HardRejectionFromEveryActiveState(t *testing.T) {
	m := NewDefaultMachine(nil)
	for _, s := range types.ActiveStates {
		c := m.NewContext("s-" + string(s))
		c.CurrentState = s
		ok, _ := m.Fire(c, types.TriggerHardRejection, "customer hung up", 1.0)
		assert.True(t, ok, "hard rejection must fire from %s", s)
		assert.Equal(t, types.StateFailed, c.CurrentState)
	}
}

func TestTerminalStatesHaveNoOutgoingRules(t *testing.T) {
	m := NewDefaultMachine(nil)
	assert.Zero(t, m.OutgoingRules(types.StateCompleted))
	assert.Zero(t, m.OutgoingRules(types.StateFailed))
}

func TestFire_GuardPanicTreatedAsFailed(t *testing.T) {
	rules := []Rule{
		{
			Name:     "panicking",
			From:     types.StateOpening,
			To:       types.StateDiscovery,
			Trigger:  types.TriggerRapportEstablished,
			Guard:    func(c *Context) bool { panic("boom") },
			Priority: 20,
		},
		{
			Name:     "fallback",
			From:     types.StateOpening,
			To:       types.StateDiscovery,
			Trigger:  types.TriggerRapportEstablished,
			Priority: 10,
		},
	}
	m := NewMachine(rules, zap.NewNop())
	c := m.NewContext("s-5")

	// The panicking high-priority rule is skipped; evaluation continues
	// to the next rule.
	ok, _ := m.Fire(c, types.TriggerRapportEstablished, "", 1.0)
	assert.True(t, ok)
	assert.Equal(t, types.StateDiscovery, c.CurrentState)
}

func TestFire_PriorityTieBreakByInsertionOrder(t *testing.T) {
	rules := []Rule{
		{Name: "first", From: types.StateOpening, To: types.StateDiscovery, Trigger: types.TriggerManualOverride, Priority: 10},
		{Name: "second", From: types.StateOpening, To: types.StatePitch, Trigger: types.TriggerManualOverride, Priority: 10},
	}
	m := NewMachine(rules, zap.NewNop())
	c := m.NewContext("s-6")

	ok, _ := m.Fire(c, types.TriggerManualOverride, "", 1.0)
	assert.True(t, ok)
	assert.Equal(t, types.StateDiscovery, c.CurrentState, "same priority resolves by insertion order")
}

func TestAllowedTriggers(t *testing.T) {
	m := NewDefaultMachine(nil)
	c := m.NewContext("s-7")
	c.CurrentState = types.StateDiscovery

	allowed := m.AllowedTriggers(c)
	assert.True(t, allowed[types.TriggerBuyingSignal])
	assert.True(t, allowed[types.TriggerHardRejection])
	assert.False(t, allowed[types.TriggerNeedsIdentified], "guard requires 3 questions")

	c.QuestionsAsked = 3
	allowed = m.AllowedTriggers(c)
	assert.True(t, allowed[types.TriggerNeedsIdentified])
}

func TestRequirements(t *testing.T) {
	m := NewDefaultMachine(nil)
	req, ok := m.Requirements(types.StateDiscovery)
	require.True(t, ok)
	assert.Equal(t, 3, req.MinTurns)

	_, ok = m.Requirements(types.ConversationState("bogus"))
	assert.False(t, ok)
}

type countingRecorder struct{ n int }

func (r *countingRecorder) RecordStateTransition(sessionID, from, to string) { r.n++ }

func TestFire_RecorderInvokedOnSuccessOnly(t *testing.T) {
	m := NewDefaultMachine(nil)
	rec := &countingRecorder{}
	m.SetRecorder(rec)

	c := m.NewContext("s-8")
	m.Fire(c, types.TriggerCommitmentMade, "", 1.0) // rejected
	assert.Zero(t, rec.n)
	m.Fire(c, types.TriggerRapportEstablished, "", 1.0)
	assert.Equal(t, 1, rec.n)
}
