package salesagent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/bandit"
	"github.com/BaSui01/pitchsim/fsm"
	"github.com/BaSui01/pitchsim/sim"
	"github.com/BaSui01/pitchsim/types"
)

// 技巧臂,与 config.DefaultArms 对齐
const (
	ArmBuildRapport    = "build_rapport"
	ArmProbeNeeds      = "probe_needs"
	ArmPitchValue      = "pitch_value"
	ArmHandleObjection = "handle_objection"
	ArmCloseDeal       = "close_deal"
)

// candidateArms 按阶段可用的技巧臂。路由器在该子集内做 UCB 决策。
var candidateArms = map[types.ConversationState][]string{
	types.StateOpening:   {ArmBuildRapport, ArmProbeNeeds},
	types.StateDiscovery: {ArmProbeNeeds, ArmPitchValue},
	types.StatePitch:     {ArmPitchValue, ArmHandleObjection, ArmCloseDeal},
	types.StateObjection: {ArmHandleObjection, ArmBuildRapport},
	types.StateClosing:   {ArmCloseDeal, ArmHandleObjection},
}

// replyTemplates 每个技巧臂的固定话术
var replyTemplates = map[string]string{
	ArmBuildRapport:    "Totally understand. Out of curiosity, what does a typical week look like for your team?",
	ArmProbeNeeds:      "That's helpful context. What's the biggest bottleneck in your current process?",
	ArmPitchValue:      "Here's the thing: teams like yours cut handling time roughly in half within the first month.",
	ArmHandleObjection: "Fair point. Most of our customers raised exactly that before they saw the onboarding numbers.",
	ArmCloseDeal:       "It sounds like we've covered your main requirements. Shall I draw up an agreement so you can review the terms?",
}

// session 单个会话的可变状态。同一会话的调用严格串行,
// 因此内部不加锁;跨会话仅共享路由器。
type session struct {
	fsmCtx  *fsm.Context
	pending []string // 未归因奖励的决策 ID,FIFO
}

// Agent sim.Agent 的参考实现。
type Agent struct {
	machine *fsm.Machine
	router  *bandit.Router
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewAgent 构造参考 Agent。machine、router 不可为空。
func NewAgent(machine *fsm.Machine, router *bandit.Router, logger *zap.Logger) (*Agent, error) {
	if machine == nil {
		return nil, fmt.Errorf("state machine is required")
	}
	if router == nil {
		return nil, fmt.Errorf("bandit router is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		machine:  machine,
		router:   router,
		logger:   logger,
		sessions: make(map[string]*session),
	}, nil
}

// ProcessMessage 处理一条客户消息:检测信号 → 驱动状态机 →
// 路由选择技巧 → 生成应答。实现 sim.Agent。
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, userMessage string) (*sim.AgentResponse, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	sess := a.getOrCreateSession(sessionID)
	c := sess.fsmCtx

	c.AppendMessage(types.RoleCustomer, userMessage)

	sig := detectSignal(c, userMessage)
	if sig.Objection {
		c.RaiseObjection(userMessage)
	}
	if sig.Trigger != "" {
		ok, msg := a.machine.Fire(c, sig.Trigger, "detected from customer message", sig.Confidence)
		if !ok {
			a.logger.Debug("transition rejected",
				zap.String("session_id", sessionID),
				zap.String("trigger", string(sig.Trigger)),
				zap.String("reason", msg),
			)
		}
	}

	if c.CurrentState.IsTerminal() {
		content := "Thanks for your time today."
		if c.CurrentState == types.StateCompleted {
			content = "Fantastic! I'll send the agreement over right away. Welcome aboard!"
		}
		c.AppendMessage(types.RoleSales, content)
		return &sim.AgentResponse{Content: content, CurrentState: string(c.CurrentState)}, nil
	}

	decision := a.router.Choose(ctx, bandit.RouteContext{
		IntentConfidence: sig.Confidence,
		Stage:            c.CurrentState,
		RiskFlags:        len(c.ObjectionsRaised) - len(c.ObjectionsResolved),
		HasIntent:        sig.Trigger != "",
	}, candidateArms[c.CurrentState])

	// pending 可能被带外的 RecordCoachScore 并发消费,读写都走 a.mu。
	a.mu.Lock()
	sess.pending = append(sess.pending, decision.DecisionID)
	a.mu.Unlock()

	a.applyTechnique(c, decision.Arm)
	content := replyTemplates[decision.Arm]
	c.AppendMessage(types.RoleSales, content)

	a.logger.Debug("agent reply",
		zap.String("session_id", sessionID),
		zap.String("state", string(c.CurrentState)),
		zap.String("arm", decision.Arm),
		zap.Bool("exploration", decision.Exploration),
	)
	return &sim.AgentResponse{Content: content, CurrentState: string(c.CurrentState)}, nil
}

// applyTechnique 技巧执行对守卫计数器的影响
func (a *Agent) applyTechnique(c *fsm.Context, arm string) {
	switch arm {
	case ArmProbeNeeds:
		c.QuestionsAsked++
	case ArmPitchValue:
		c.PitchAttempts++
	case ArmHandleObjection:
		c.ObjectionAttempts++
		if n := len(c.ObjectionsRaised); n > len(c.ObjectionsResolved) {
			c.ResolveObjection(c.ObjectionsRaised[n-1])
		}
	case ArmCloseDeal:
		c.ClosingAttempts++
	}
}

// RecordCoachScore 把教练评分(0..10)映射到 [-1,1] 奖励并归因到该
// 会话最早一次未结算的路由决策。没有待结算决策时返回 false。
func (a *Agent) RecordCoachScore(ctx context.Context, sessionID string, score float64) bool {
	a.mu.Lock()
	sess, ok := a.sessions[sessionID]
	if !ok || len(sess.pending) == 0 {
		a.mu.Unlock()
		return false
	}
	decisionID := sess.pending[0]
	sess.pending = sess.pending[1:]
	a.mu.Unlock()

	reward := 2*score/10 - 1
	return a.router.RecordFeedback(ctx, decisionID, reward, map[string]float64{"coach_score": score})
}

// CurrentState 返回会话当前阶段;未知会话返回 false。
func (a *Agent) CurrentState(sessionID string) (types.ConversationState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sess, ok := a.sessions[sessionID]
	if !ok {
		return "", false
	}
	return sess.fsmCtx.CurrentState, true
}

// EndSession 释放一个会话的全部状态
func (a *Agent) EndSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, sessionID)
}

func (a *Agent) getOrCreateSession(sessionID string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, ok := a.sessions[sessionID]
	if !ok {
		sess = &session{fsmCtx: a.machine.NewContext(sessionID)}
		a.sessions[sessionID] = sess
	}
	return sess
}
