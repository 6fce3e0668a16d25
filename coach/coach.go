package coach

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/types"
)

// Dimension 评分维度
type Dimension struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// defaultDimensions 各维度权重,总分为加权平均
var defaultDimensions = []Dimension{
	{Name: "relevance", Weight: 0.3},
	{Name: "discovery", Weight: 0.2},
	{Name: "objection_handling", Weight: 0.3},
	{Name: "closing", Weight: 0.2},
}

// 话术技巧的关键词特征
var (
	rapportWords   = []string{"curiosity", "typical week", "your team", "understand", "appreciate"}
	probingWords   = []string{"?", "what", "how", "tell me", "walk me through", "bottleneck"}
	pitchingWords  = []string{"cut", "save", "improve", "numbers", "teams like yours", "value", "month"}
	empathyWords   = []string{"fair point", "understand", "hear you", "good question", "exactly that"}
	closingWords   = []string{"agreement", "contract", "terms", "sign", "next step", "draw up", "review"}
	objectionWords = []string{"expensive", "budget", "competitor", "price", "concern", "doubt",
		"not convinced", "not sure", "cheaper", "vendor"}
)

// Coach 启发式评分器。无内部状态,可跨会话共享。
type Coach struct {
	dimensions []Dimension
	logger     *zap.Logger
}

// NewCoach 构造评分器
func NewCoach(logger *zap.Logger) *Coach {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coach{
		dimensions: defaultDimensions,
		logger:     logger,
	}
}

// EvaluateResponse 对一条销售话术打分。实现 sim.Coach。
func (c *Coach) EvaluateResponse(ctx context.Context, salesMessage, customerMessage string, currentStage types.ConversationState) (*types.CoachFeedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(salesMessage) == "" {
		return nil, fmt.Errorf("sales message is empty")
	}

	sales := strings.ToLower(salesMessage)
	customer := strings.ToLower(customerMessage)

	technique := detectTechnique(sales)
	alignment := stageAlignment(currentStage, technique)

	scores := map[string]float64{
		"relevance":          scoreRelevance(sales, customer),
		"discovery":          scoreDiscovery(sales, currentStage),
		"objection_handling": scoreObjectionHandling(sales, customer),
		"closing":            scoreClosing(sales, currentStage),
	}

	var weightedSum, totalWeight float64
	for _, dim := range c.dimensions {
		s := clamp(scores[dim.Name], 0, 10)
		scores[dim.Name] = s
		weightedSum += s * dim.Weight
		totalWeight += dim.Weight
	}
	overall := clamp(weightedSum/totalWeight, 0, 10)

	feedback := &types.CoachFeedback{
		OverallScore:    overall,
		StageAlignment:  alignment,
		TechniqueUsed:   technique,
		Critique:        critiqueFor(scores, alignment),
		Suggestion:      suggestionFor(scores, currentStage),
		DimensionScores: scores,
	}
	c.logger.Debug("response evaluated",
		zap.String("stage", string(currentStage)),
		zap.String("technique", technique),
		zap.Float64("overall", overall),
	)
	return feedback, nil
}

// detectTechnique 从销售话术识别使用的技巧
func detectTechnique(sales string) string {
	switch {
	case containsAny(sales, closingWords):
		return "closing"
	case containsAny(sales, empathyWords) && containsAny(sales, objectionWords):
		return "objection_handling"
	case containsAny(sales, pitchingWords):
		return "value_pitch"
	case containsAny(sales, probingWords):
		return "probing"
	case containsAny(sales, rapportWords):
		return "rapport_building"
	default:
		return "statement"
	}
}

// expectedTechniques 每个阶段推荐使用的技巧
var expectedTechniques = map[types.ConversationState][]string{
	types.StateOpening:   {"rapport_building", "probing"},
	types.StateDiscovery: {"probing", "rapport_building"},
	types.StatePitch:     {"value_pitch", "probing"},
	types.StateObjection: {"objection_handling", "rapport_building"},
	types.StateClosing:   {"closing", "value_pitch"},
}

func stageAlignment(stage types.ConversationState, technique string) string {
	expected, ok := expectedTechniques[stage]
	if !ok {
		return "aligned"
	}
	for _, e := range expected {
		if e == technique {
			return "aligned"
		}
	}
	return fmt.Sprintf("misaligned: %s used in %s stage", technique, stage)
}

// scoreRelevance 话术是否回应了客户消息的内容
func scoreRelevance(sales, customer string) float64 {
	score := 5.0
	shared := 0
	for _, word := range strings.Fields(customer) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) > 4 && strings.Contains(sales, word) {
			shared++
		}
	}
	if shared > 0 {
		score += 2
	}
	if shared > 2 {
		score += 1
	}
	words := len(strings.Fields(sales))
	if words >= 8 && words <= 60 {
		score += 1
	}
	return score
}

// scoreDiscovery 是否在持续挖掘需求
func scoreDiscovery(sales string, stage types.ConversationState) float64 {
	asking := containsAny(sales, probingWords)
	switch {
	case stage == types.StateDiscovery && asking:
		return 9
	case stage == types.StateDiscovery:
		return 4
	case asking:
		return 7
	default:
		return 6
	}
}

// scoreObjectionHandling 客户有异议时是否正面承接
func scoreObjectionHandling(sales, customer string) float64 {
	if !containsAny(customer, objectionWords) {
		return 6.5
	}
	if containsAny(sales, empathyWords) {
		return 8.5
	}
	return 3
}

// scoreClosing 收尾话术的时机是否得当
func scoreClosing(sales string, stage types.ConversationState) float64 {
	closing := containsAny(sales, closingWords)
	switch {
	case stage == types.StateClosing && closing:
		return 9
	case stage == types.StateClosing:
		return 4.5
	case closing && stage == types.StatePitch:
		return 7
	case closing:
		// 过早逼单
		return 3.5
	default:
		return 6
	}
}

func critiqueFor(scores map[string]float64, alignment string) string {
	worst, worstScore := "", 11.0
	for name, s := range scores {
		if s < worstScore {
			worst, worstScore = name, s
		}
	}
	if strings.HasPrefix(alignment, "misaligned") {
		return fmt.Sprintf("Technique does not fit the current stage; weakest dimension is %s (%.1f).", worst, worstScore)
	}
	return fmt.Sprintf("Weakest dimension is %s (%.1f).", worst, worstScore)
}

func suggestionFor(scores map[string]float64, stage types.ConversationState) string {
	switch {
	case scores["objection_handling"] < 5:
		return "Acknowledge the customer's concern before countering it."
	case scores["discovery"] < 5 && stage == types.StateDiscovery:
		return "Ask open questions instead of presenting; you haven't established needs yet."
	case scores["closing"] < 5:
		return "Hold the close until the customer has confirmed interest."
	case scores["relevance"] < 6:
		return "Reference what the customer actually said in your reply."
	default:
		return "Keep the current approach and look for a natural closing opportunity."
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
