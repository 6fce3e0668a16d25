package fsm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/types"
)

// TransitionRecorder 转换指标记录接口，由 internal/metrics.Collector 实现。
type TransitionRecorder interface {
	RecordStateTransition(sessionID, from, to string)
}

// Machine 销售对话状态机。持有不可变规则表，自身无会话状态，
// 可被任意多个会话并发使用（Context 归各会话独占）。
type Machine struct {
	engine   *ruleEngine
	logger   *zap.Logger
	recorder TransitionRecorder
}

// NewMachine 用给定规则表创建状态机
func NewMachine(rules []Rule, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		engine: newRuleEngine(rules),
		logger: logger,
	}
}

// NewDefaultMachine 用默认销售规则表创建状态机
func NewDefaultMachine(logger *zap.Logger) *Machine {
	return NewMachine(DefaultRules(), logger)
}

// SetRecorder 注入转换指标记录器（可选）
func (m *Machine) SetRecorder(r TransitionRecorder) {
	m.recorder = r
}

// NewContext 为一个会话创建初始上下文，起始状态为 Opening
func (m *Machine) NewContext(sessionID string) *Context {
	return &Context{
		SessionID:    sessionID,
		CurrentState: types.StateOpening,
		CreatedAt:    time.Now(),
	}
}

// Fire 尝试用 trigger 驱动一次状态转换。
//
// 匹配当前状态与触发器的规则按优先级降序逐条求值；第一条守卫通过的
// 规则胜出：追加转换记录、更新当前状态并返回 (true, ...)。没有规则
// 匹配时返回 (false, "no rule ...")；有规则匹配但守卫全部失败时返回
// (false, "conditions not met ...")。两种失败都不修改上下文。
func (m *Machine) Fire(c *Context, trigger types.TransitionTrigger, reason string, confidence float64) (bool, string) {
	candidates := m.engine.matching(c.CurrentState, trigger)
	if len(candidates) == 0 {
		msg := fmt.Sprintf("no rule for trigger %q in state %q", trigger, c.CurrentState)
		m.logger.Debug("transition rejected",
			zap.String("session_id", c.SessionID),
			zap.String("state", string(c.CurrentState)),
			zap.String("trigger", string(trigger)),
			zap.String("why", "no_rule"))
		return false, msg
	}

	for _, rule := range candidates {
		if !m.guardHolds(rule, c) {
			continue
		}

		from := c.CurrentState
		c.Transitions = append(c.Transitions, StateTransition{
			From:       from,
			To:         rule.To,
			Trigger:    trigger,
			Timestamp:  time.Now(),
			Reason:     reason,
			Confidence: confidence,
		})
		c.CurrentState = rule.To

		if m.recorder != nil {
			m.recorder.RecordStateTransition(c.SessionID, string(from), string(rule.To))
		}
		m.logger.Debug("transition fired",
			zap.String("session_id", c.SessionID),
			zap.String("rule", rule.Name),
			zap.String("from", string(from)),
			zap.String("to", string(rule.To)),
			zap.String("trigger", string(trigger)),
			zap.Float64("confidence", confidence))

		return true, fmt.Sprintf("transitioned %s -> %s via %s", from, rule.To, trigger)
	}

	msg := fmt.Sprintf("conditions not met for trigger %q in state %q", trigger, c.CurrentState)
	m.logger.Debug("transition rejected",
		zap.String("session_id", c.SessionID),
		zap.String("state", string(c.CurrentState)),
		zap.String("trigger", string(trigger)),
		zap.String("why", "guards_failed"))
	return false, msg
}

// guardHolds 求值守卫。守卫抛出的 panic 被捕获并记录，等同于守卫失败，
// 绝不向上传播。
func (m *Machine) guardHolds(rule Rule, c *Context) (ok bool) {
	if rule.Guard == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("guard panicked, treated as failed",
				zap.String("rule", rule.Name),
				zap.String("session_id", c.SessionID),
				zap.Any("panic", r))
			ok = false
		}
	}()
	return rule.Guard(c)
}

// AllowedTriggers 返回当前状态下守卫可通过的触发器集合
func (m *Machine) AllowedTriggers(c *Context) map[types.TransitionTrigger]bool {
	allowed := make(map[types.TransitionTrigger]bool)
	for _, rule := range m.engine.fromState(c.CurrentState) {
		if allowed[rule.Trigger] {
			continue
		}
		if m.guardHolds(rule, c) {
			allowed[rule.Trigger] = true
		}
	}
	return allowed
}

// OutgoingRules 返回某状态的出边数量，测试用
func (m *Machine) OutgoingRules(s types.ConversationState) int {
	return m.engine.outgoing(s)
}

// StateRequirements 阶段目标的描述性元数据，仅供提示展示，
// 不参与转换判定。
type StateRequirements struct {
	Goal          string `json:"goal"`
	MinTurns      int    `json:"min_turns"`
	ExitCondition string `json:"exit_condition"`
}

var stateRequirements = map[types.ConversationState]StateRequirements{
	types.StateOpening: {
		Goal:          "Build rapport and set the tone",
		MinTurns:      1,
		ExitCondition: "customer engages in conversation",
	},
	types.StateDiscovery: {
		Goal:          "Ask open questions and identify needs",
		MinTurns:      3,
		ExitCondition: "at least three discovery questions asked",
	},
	types.StatePitch: {
		Goal:          "Present the offer mapped to identified needs",
		MinTurns:      1,
		ExitCondition: "customer confirms interest or raises an objection",
	},
	types.StateObjection: {
		Goal:          "Acknowledge and resolve the customer's concern",
		MinTurns:      1,
		ExitCondition: "objection resolved",
	},
	types.StateClosing: {
		Goal:          "Ask for commitment",
		MinTurns:      1,
		ExitCondition: "customer commits or walks away",
	},
	types.StateCompleted: {
		Goal: "Deal won",
	},
	types.StateFailed: {
		Goal: "Deal lost",
	},
}

// Requirements 返回某状态的描述性元数据
func (m *Machine) Requirements(s types.ConversationState) (StateRequirements, bool) {
	req, ok := stateRequirements[s]
	return req, ok
}
