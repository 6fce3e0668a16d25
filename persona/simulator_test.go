package persona

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/pitchsim/types"
)

// fixedSource 每次返回同一个值的随机源，Float64() 恒等于 v/2^63。
type fixedSource struct{ v int64 }

func (s fixedSource) Int63() int64 { return s.v }
func (s fixedSource) Seed(int64)   {}

// fixedRand 返回 Float64() 恒为 f 的 *rand.Rand
func fixedRand(f float64) *rand.Rand {
	return rand.New(fixedSource{v: int64(f * float64(math.MaxInt64))})
}

// seqSource 按脚本顺序产出 Int63 值，耗尽后重复最后一个。
type seqSource struct {
	vals []int64
	i    int
}

func (s *seqSource) Int63() int64 {
	v := s.vals[s.i]
	if s.i < len(s.vals)-1 {
		s.i++
	}
	return v
}

func (s *seqSource) Seed(int64) {}

// seqRand 返回 Float64() 依次产出给定值的 *rand.Rand
func seqRand(fs ...float64) *rand.Rand {
	vals := make([]int64, len(fs))
	for i, f := range fs {
		vals[i] = int64(f * float64(math.MaxInt64))
	}
	return rand.New(&seqSource{vals: vals})
}

func mustGet(t *testing.T, id string) Profile {
	t.Helper()
	p, err := Get(id)
	require.NoError(t, err)
	return p
}

func TestCatalog_ContainsAllPersonas(t *testing.T) {
	ids := IDs()
	assert.Equal(t, []string{PriceSensitive, Skeptical, SilentType, Busy, Interested, ComparisonShopper}, ids)

	for _, p := range Catalog() {
		assert.GreaterOrEqual(t, p.ObjectionRate, 0.0)
		assert.LessOrEqual(t, p.ObjectionRate, 1.0)
		assert.GreaterOrEqual(t, p.EngagementLevel, 0.0)
		assert.LessOrEqual(t, p.EngagementLevel, 1.0)
		assert.NotEmpty(t, p.TypicalObjections)
		assert.NotEmpty(t, p.TypicalResponses)
		assert.Positive(t, p.BuyingThreshold)
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get("saboteur")
	assert.Error(t, err)
}

func TestRespond_ObjectionWhenDrawBelowRate(t *testing.T) {
	p := mustGet(t, PriceSensitive) // objection_rate 0.8
	s := NewSimulator(p, WithRand(fixedRand(0.5)), WithTokenCounter(WordCounter{}))

	reply := s.Respond("Let me tell you about our product.", types.StateOpening)
	assert.True(t, reply.Objection)
	assert.Contains(t, p.TypicalObjections, reply.Content)
	assert.False(t, reply.BuyingSignal, "turn 1 is below the buying threshold")

	stats := s.GetStats()
	assert.Equal(t, 1, stats.TurnCount)
	assert.Len(t, stats.ObjectionsRaised, 1)
}

func TestRespond_PriceKeywordForcesObjection(t *testing.T) {
	p := mustGet(t, PriceSensitive)
	// Draw of 0.9 is above the 0.8 rate, but the price keyword overrides it.
	s := NewSimulator(p, WithRand(fixedRand(0.9)), WithTokenCounter(WordCounter{}))

	reply := s.Respond("Our pricing starts at $99 per seat.", types.StatePitch)
	assert.True(t, reply.Objection)
	assert.Contains(t, p.TypicalObjections, reply.Content)
}

func TestRespond_BusyPersonaCutsOffLongPitch(t *testing.T) {
	p := mustGet(t, Busy)
	s := NewSimulator(p, WithRand(fixedRand(0.99)), WithTokenCounter(WordCounter{}))

	long := ""
	for i := 0; i < busyPatienceTokens+5; i++ {
		long += "word "
	}
	reply := s.Respond(long, types.StatePitch)
	assert.True(t, reply.Objection)
	assert.Contains(t, reply.Content, "too long")
}

func TestRespond_BusyPersonaCanConvertOnLongMessage(t *testing.T) {
	p := mustGet(t, Busy) // engagement 0.3, buying_threshold 5

	// 前四轮短话术不异议(每轮 +0.15),第五轮超长话术强制异议(-0.1)
	// 后兴趣为 0.8 > 0.6 且已达阈值,购买信号抽签 0.1 < 0.3 必中:
	// "太啰嗦"覆盖不应吞掉当轮的购买信号判定。
	s := NewSimulator(p, WithRand(seqRand(
		0.9, 0.0, // 轮 1: 异议抽签未中 + 选取回复
		0.9, 0.0,
		0.9, 0.0,
		0.9, 0.0,
		0.9, 0.1, 0.0, // 轮 5: 强制异议、购买抽签、选取购买信号
	)), WithTokenCounter(WordCounter{}))

	for i := 0; i < 4; i++ {
		reply := s.Respond("Quick question for you?", types.StateDiscovery)
		require.False(t, reply.Objection)
	}

	long := strings.Repeat("word ", busyPatienceTokens+5)
	reply := s.Respond(long, types.StateClosing)
	assert.True(t, reply.BuyingSignal)
	assert.False(t, reply.Objection)
	assert.Contains(t, p.BuyingSignals, reply.Content)
}

func TestRespond_InterestClampedToUnitInterval(t *testing.T) {
	p := mustGet(t, Skeptical) // engagement 0.4, objection_rate 0.7

	// Always objecting: interest decays but never below 0.
	s := NewSimulator(p, WithRand(fixedRand(0.0)), WithTokenCounter(WordCounter{}))
	for i := 0; i < 10; i++ {
		s.Respond("hello", types.StateDiscovery)
	}
	assert.GreaterOrEqual(t, s.GetStats().InterestLevel, 0.0)
	assert.Equal(t, 0.0, s.GetStats().InterestLevel)

	// Never objecting: interest grows but never above 1.
	s2 := NewSimulator(p, WithRand(fixedRand(0.99)), WithTokenCounter(WordCounter{}))
	for i := 0; i < 10; i++ {
		s2.Respond("hello", types.StateDiscovery)
	}
	assert.LessOrEqual(t, s2.GetStats().InterestLevel, 1.0)
}

func TestRespond_BuyingSignalAfterThreshold(t *testing.T) {
	p := mustGet(t, Interested) // rate 0.2, engagement 0.9, threshold 4
	// Draw 0.25: above the objection rate (no objection), below the 0.3
	// buying-signal probability.
	s := NewSimulator(p, WithRand(fixedRand(0.25)), WithTokenCounter(WordCounter{}))

	for turn := 1; turn <= 3; turn++ {
		reply := s.Respond("pitching value", types.StatePitch)
		assert.False(t, reply.BuyingSignal, "turn %d is below the threshold", turn)
	}

	reply := s.Respond("pitching value", types.StatePitch)
	assert.True(t, reply.BuyingSignal)
	assert.False(t, reply.Objection)
	assert.Contains(t, p.BuyingSignals, reply.Content)
	assert.True(t, s.GetStats().ReadyToBuy)
}

func TestRespond_DeterministicWithSeededSource(t *testing.T) {
	p := mustGet(t, ComparisonShopper)

	run := func() []Reply {
		s := NewSimulator(p, WithRand(rand.New(rand.NewSource(42))), WithTokenCounter(WordCounter{}))
		var replies []Reply
		for i := 0; i < 8; i++ {
			replies = append(replies, s.Respond("our offer is better", types.StatePitch))
		}
		return replies
	}

	assert.Equal(t, run(), run(), "same seed must reproduce the same conversation")
}

func TestWordCounter(t *testing.T) {
	assert.Equal(t, 0, WordCounter{}.Count(""))
	assert.Equal(t, 3, WordCounter{}.Count("one  two\tthree"))
}
