package bandit

import "github.com/BaSui01/pitchsim/types"

// RouteContext 一次路由决策可观测到的对话上下文
type RouteContext struct {
	// IntentConfidence 意图识别置信度，编码前被截断到 [0,1]
	IntentConfidence float64
	// Stage 当前 FSM 阶段，按 types.ActiveStates 顺序做 one-hot 编码；
	// 终态或未知阶段编码为全零
	Stage types.ConversationState
	// NeedsTool 本轮是否需要外部工具
	NeedsTool bool
	// RiskFlags 风险标记数量，除以 3 并截断到 [0,1]
	RiskFlags int
	// RecentToolCall 近期是否发生过工具调用
	RecentToolCall bool
	// HasIntent 是否识别出了明确意图
	HasIntent bool
}

// featureVector 将上下文编码为长度恰好为 dim 的特征向量，
// 不足补零，超出截断。
func featureVector(rctx RouteContext, dim int) []float64 {
	raw := make([]float64, 0, 10)

	raw = append(raw, clamp01(rctx.IntentConfidence))

	for _, s := range types.ActiveStates {
		if rctx.Stage == s {
			raw = append(raw, 1)
		} else {
			raw = append(raw, 0)
		}
	}

	raw = append(raw, boolFeature(rctx.NeedsTool))
	raw = append(raw, clamp01(float64(rctx.RiskFlags)/3))
	raw = append(raw, boolFeature(rctx.RecentToolCall))
	raw = append(raw, boolFeature(rctx.HasIntent))

	f := make([]float64, dim)
	copy(f, raw)
	return f
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
