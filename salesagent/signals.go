package salesagent

import (
	"strings"

	"github.com/BaSui01/pitchsim/fsm"
	"github.com/BaSui01/pitchsim/types"
)

// 客户消息中的信号关键词。匹配大小写不敏感的子串。
var (
	rejectionKeywords = []string{
		"not interested", "stop calling", "don't contact me",
		"waste of my time", "absolutely not", "take me off your list",
	}
	commitmentKeywords = []string{
		"get started", "next steps", "send me the contract",
		"i'm convinced", "let's do it", "sign", "deal",
	}
	objectionKeywords = []string{
		"expensive", "budget", "competitor", "cheaper", "price",
		"not convinced", "concern", "doubt", "vendor", "heard that",
		"not sure", "maybe not", "don't have time", "get to the point",
		"too long",
	}
	engagementKeywords = []string{
		"tell me more", "listening", "go on", "interesting", "sounds",
		"how", "what", "?",
	}
)

// detected 一次信号检测的结果
type detected struct {
	Trigger    types.TransitionTrigger
	Confidence float64
	Objection  bool
}

// detectSignal 把客户消息归类为状态机触发事件。
// 优先级:硬拒绝 > 成交承诺/购买信号 > 异议 > 按当前阶段推进。
func detectSignal(c *fsm.Context, message string) detected {
	lower := strings.ToLower(message)

	if containsAny(lower, rejectionKeywords) {
		return detected{Trigger: types.TriggerHardRejection, Confidence: 0.95}
	}
	if containsAny(lower, commitmentKeywords) {
		switch c.CurrentState {
		case types.StateClosing:
			return detected{Trigger: types.TriggerCommitmentMade, Confidence: 0.9}
		case types.StateDiscovery:
			return detected{Trigger: types.TriggerBuyingSignal, Confidence: 0.85}
		default:
			return detected{Trigger: types.TriggerInterestConfirmed, Confidence: 0.8}
		}
	}
	if containsAny(lower, objectionKeywords) {
		return detected{Trigger: types.TriggerObjectionRaised, Confidence: 0.75, Objection: true}
	}

	// 无显式信号:按阶段默认推进。
	switch c.CurrentState {
	case types.StateOpening:
		if containsAny(lower, engagementKeywords) {
			return detected{Trigger: types.TriggerRapportEstablished, Confidence: 0.6}
		}
		return detected{Trigger: types.TriggerRapportEstablished, Confidence: 0.4}
	case types.StateDiscovery:
		return detected{Trigger: types.TriggerNeedsIdentified, Confidence: 0.55}
	case types.StatePitch:
		if containsAny(lower, engagementKeywords) {
			return detected{Trigger: types.TriggerInterestConfirmed, Confidence: 0.6}
		}
	case types.StateObjection:
		return detected{Trigger: types.TriggerObjectionResolved, Confidence: 0.5}
	}
	return detected{}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
