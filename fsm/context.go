package fsm

import (
	"time"

	"github.com/BaSui01/pitchsim/types"
)

// StateTransition 状态转换日志记录。只追加，不修改。
type StateTransition struct {
	From       types.ConversationState `json:"from"`
	To         types.ConversationState `json:"to"`
	Trigger    types.TransitionTrigger `json:"trigger"`
	Timestamp  time.Time               `json:"timestamp"`
	Reason     string                  `json:"reason"`
	Confidence float64                 `json:"confidence"`
}

// Context 单个会话的对话状态。由状态机和编排器独占修改，
// 不跨会话共享，因此不需要锁。
type Context struct {
	SessionID    string
	CurrentState types.ConversationState
	History      []types.Message
	Transitions  []StateTransition

	// Counters consulted by guards
	QuestionsAsked    int
	PitchAttempts     int
	ObjectionAttempts int
	ClosingAttempts   int

	CollectedNeeds     []string
	ObjectionsRaised   []string
	ObjectionsResolved []string

	CreatedAt time.Time
}

// AppendMessage 将一条消息追加到会话历史
func (c *Context) AppendMessage(role types.Role, content string) {
	c.History = append(c.History, types.Message{Role: role, Content: content})
}

// AddNeed 记录一条已识别的客户需求
func (c *Context) AddNeed(need string) {
	c.CollectedNeeds = append(c.CollectedNeeds, need)
}

// RaiseObjection 记录一条客户异议
func (c *Context) RaiseObjection(objection string) {
	c.ObjectionsRaised = append(c.ObjectionsRaised, objection)
}

// ResolveObjection 记录一条已化解的异议
func (c *Context) ResolveObjection(objection string) {
	c.ObjectionsResolved = append(c.ObjectionsResolved, objection)
}

// LastTransition 返回最近一次转换记录，没有则返回 nil
func (c *Context) LastTransition() *StateTransition {
	if len(c.Transitions) == 0 {
		return nil
	}
	return &c.Transitions[len(c.Transitions)-1]
}
