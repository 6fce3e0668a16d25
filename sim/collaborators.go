package sim

import (
	"context"

	"github.com/BaSui01/pitchsim/types"
)

// AgentResponse 外部销售 Agent 对一条客户消息的处理结果。
// CurrentState 必须是 types.ConversationState 的原始字符串值之一,
// Orchestrator 会重新解析;未知值视为协作方错误。
type AgentResponse struct {
	Content      string `json:"content"`
	CurrentState string `json:"current_state"`
}

// Agent 外部销售 Agent 协作方。每个 session 的调用严格串行。
type Agent interface {
	ProcessMessage(ctx context.Context, sessionID, userMessage string) (*AgentResponse, error)
}

// Coach 可选的话术评分协作方。
type Coach interface {
	EvaluateResponse(ctx context.Context, salesMessage, customerMessage string, currentStage types.ConversationState) (*types.CoachFeedback, error)
}
