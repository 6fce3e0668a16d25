package fsm

import (
	"sort"

	"github.com/BaSui01/pitchsim/types"
)

// Guard 转换守卫谓词。nil 守卫视为无条件通过。
// 守卫只读取上下文，不得修改它。
type Guard func(c *Context) bool

// Rule 一条有守卫、带优先级的转换规则。
// 引擎初始化时创建一次，之后不可变。
type Rule struct {
	From     types.ConversationState
	To       types.ConversationState
	Trigger  types.TransitionTrigger
	Guard    Guard
	Priority int
	Name     string // 诊断用
}

// ruleEngine 持有按优先级降序（同优先级按插入顺序）排序的规则表。
// 纯求值逻辑，自身无状态。
type ruleEngine struct {
	rules []Rule
}

func newRuleEngine(rules []Rule) *ruleEngine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	// 稳定排序：同优先级保持插入顺序
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &ruleEngine{rules: sorted}
}

// matching 返回 from/trigger 匹配的规则，已按优先级降序。
func (e *ruleEngine) matching(from types.ConversationState, trigger types.TransitionTrigger) []Rule {
	var out []Rule
	for _, r := range e.rules {
		if r.From == from && r.Trigger == trigger {
			out = append(out, r)
		}
	}
	return out
}

// fromState 返回以 from 为起点的全部规则。
func (e *ruleEngine) fromState(from types.ConversationState) []Rule {
	var out []Rule
	for _, r := range e.rules {
		if r.From == from {
			out = append(out, r)
		}
	}
	return out
}

// outgoing 统计某状态的出边数量，用于终态校验。
func (e *ruleEngine) outgoing(from types.ConversationState) int {
	return len(e.fromState(from))
}

// DefaultRules 返回默认的销售对话规则表。
//
// HardRejection 以最高优先级 20 充当所有非终态的逃生通道；
// Discovery 阶段的 BuyingSignal 捷径（优先级 15）在与 NeedsIdentified
// 同时匹配时胜出。
func DefaultRules() []Rule {
	rules := []Rule{
		{
			Name:     "opening_to_discovery",
			From:     types.StateOpening,
			To:       types.StateDiscovery,
			Trigger:  types.TriggerRapportEstablished,
			Priority: 10,
		},
		{
			Name:     "discovery_to_pitch",
			From:     types.StateDiscovery,
			To:       types.StatePitch,
			Trigger:  types.TriggerNeedsIdentified,
			Guard:    func(c *Context) bool { return c.QuestionsAsked >= 3 },
			Priority: 10,
		},
		{
			Name:     "discovery_buying_shortcut",
			From:     types.StateDiscovery,
			To:       types.StatePitch,
			Trigger:  types.TriggerBuyingSignal,
			Priority: 15,
		},
		{
			Name:     "pitch_to_objection",
			From:     types.StatePitch,
			To:       types.StateObjection,
			Trigger:  types.TriggerObjectionRaised,
			Priority: 10,
		},
		{
			Name:     "objection_to_pitch",
			From:     types.StateObjection,
			To:       types.StatePitch,
			Trigger:  types.TriggerObjectionResolved,
			Priority: 10,
		},
		{
			Name:     "pitch_to_closing",
			From:     types.StatePitch,
			To:       types.StateClosing,
			Trigger:  types.TriggerInterestConfirmed,
			Guard:    func(c *Context) bool { return c.PitchAttempts >= 1 },
			Priority: 10,
		},
		{
			Name:     "closing_to_completed",
			From:     types.StateClosing,
			To:       types.StateCompleted,
			Trigger:  types.TriggerCommitmentMade,
			Priority: 10,
		},
	}

	// 每个非终态都可被硬拒绝直接终结
	for _, s := range types.ActiveStates {
		rules = append(rules, Rule{
			Name:     "hard_rejection_" + string(s),
			From:     s,
			To:       types.StateFailed,
			Trigger:  types.TriggerHardRejection,
			Priority: 20,
		})
	}

	return rules
}
