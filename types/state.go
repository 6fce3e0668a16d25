package types

// ConversationState 销售对话阶段
type ConversationState string

const (
	StateOpening   ConversationState = "opening"   // Building rapport
	StateDiscovery ConversationState = "discovery" // Identifying needs
	StatePitch     ConversationState = "pitch"     // Presenting the offer
	StateObjection ConversationState = "objection" // Handling pushback
	StateClosing   ConversationState = "closing"   // Asking for commitment
	StateCompleted ConversationState = "completed" // Terminal: deal won
	StateFailed    ConversationState = "failed"    // Terminal: deal lost
)

// AllStates 按阶段推进顺序列出全部状态
var AllStates = []ConversationState{
	StateOpening,
	StateDiscovery,
	StatePitch,
	StateObjection,
	StateClosing,
	StateCompleted,
	StateFailed,
}

// ActiveStates 非终态阶段，顺序与 AllStates 一致。
// bandit 特征向量的 one-hot 编码依赖这个顺序。
var ActiveStates = []ConversationState{
	StateOpening,
	StateDiscovery,
	StatePitch,
	StateObjection,
	StateClosing,
}

// IsTerminal 终态没有出边，状态机不再演进
func (s ConversationState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsValid 检查状态值是否为已知枚举
func (s ConversationState) IsValid() bool {
	switch s {
	case StateOpening, StateDiscovery, StatePitch, StateObjection,
		StateClosing, StateCompleted, StateFailed:
		return true
	}
	return false
}

// ParseState 将 Agent 协作方回传的字符串解析为状态枚举。
// 未知的字符串是协议违规，调用方会把运行标记为 CollaboratorError。
func ParseState(s string) (ConversationState, bool) {
	st := ConversationState(s)
	return st, st.IsValid()
}

// TransitionTrigger 状态机触发事件
type TransitionTrigger string

const (
	TriggerRapportEstablished TransitionTrigger = "rapport_established"
	TriggerNeedsIdentified    TransitionTrigger = "needs_identified"
	TriggerBuyingSignal       TransitionTrigger = "buying_signal"
	TriggerObjectionRaised    TransitionTrigger = "objection_raised"
	TriggerObjectionResolved  TransitionTrigger = "objection_resolved"
	TriggerInterestConfirmed  TransitionTrigger = "interest_confirmed"
	TriggerCommitmentMade     TransitionTrigger = "commitment_made"
	TriggerHardRejection      TransitionTrigger = "hard_rejection"
	TriggerManualOverride     TransitionTrigger = "manual_override"
)

// RunStatus 模拟运行状态
type RunStatus string

const (
	RunRunning           RunStatus = "running"
	RunCompleted         RunStatus = "completed"
	RunFailed            RunStatus = "failed"
	RunDeadlock          RunStatus = "deadlock"
	RunMaxTurnsReached   RunStatus = "max_turns_reached"
	RunCancelled         RunStatus = "cancelled"
	RunCollaboratorError RunStatus = "collaborator_error"
)

// IsTerminal 除 Running 外均为终止状态
func (s RunStatus) IsTerminal() bool {
	return s != RunRunning
}
