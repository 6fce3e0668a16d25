package types

import "time"

// CoachFeedback 教练对单轮销售话术的评分记录
type CoachFeedback struct {
	OverallScore    float64            `json:"overall_score"` // 0..10
	StageAlignment  string             `json:"stage_alignment"`
	TechniqueUsed   string             `json:"technique_used"`
	Critique        string             `json:"critique"`
	Suggestion      string             `json:"suggestion"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
}

// Turn 一轮完整的对话回合。创建后不可变。
type Turn struct {
	TurnNumber           int               `json:"turn_number"` // 1-based，严格递增
	SalesMessage         string            `json:"sales_message"`
	CustomerMessage      string            `json:"customer_message"`
	SalesState           ConversationState `json:"sales_state"`
	CustomerObjection    bool              `json:"customer_objection"`
	CustomerBuyingSignal bool              `json:"customer_buying_signal"`
	CoachScore           *CoachFeedback    `json:"coach_score,omitempty"`
}

// SimulationReport 一次模拟运行的训练报告。
// 字段名与嵌套结构是对外稳定的 JSON 契约。
type SimulationReport struct {
	SessionID           string            `json:"session_id"`
	CustomerPersonality string            `json:"customer_personality"`
	TotalTurns          int               `json:"total_turns"`
	FinalStatus         RunStatus         `json:"final_status"`
	FinalSalesState     ConversationState `json:"final_sales_state"`
	TotalObjections     int               `json:"total_objections"`
	ObjectionsResolved  int               `json:"objections_resolved"`
	BuyingSignals       int               `json:"buying_signals"`
	AverageScore        float64           `json:"average_score"`
	BestTurn            int               `json:"best_turn"`
	WorstTurn           int               `json:"worst_turn"`
	Turns               []Turn            `json:"turns"`
	Strengths           []string          `json:"strengths"`
	Weaknesses          []string          `json:"weaknesses"`
	Recommendations     []string          `json:"recommendations"`
	StartedAt           time.Time         `json:"started_at"`
	FinishedAt          time.Time         `json:"finished_at"`
}
