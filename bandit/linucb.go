package bandit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrHybridUnsupported 混合共享参数变体只是声明过的扩展点，
	// 没有确定的联合回归公式，拒绝构造。
	ErrHybridUnsupported = errors.New("hybrid shared-parameter variant is not implemented")
)

// explorationEpsilon UCB 超出期望收益多少才算探索性决策
const explorationEpsilon = 1e-9

// Variant 路由器变体
type Variant string

const (
	// VariantDisjoint 每臂独立线性模型（LinUCB 标准形式）
	VariantDisjoint Variant = "disjoint"
	// VariantHybrid 共享跨臂参数，未实现
	VariantHybrid Variant = "hybrid"
)

// Config 路由器构造参数
type Config struct {
	Arms    []string // 臂的枚举顺序即并列 UCB 的决胜顺序
	Dim     int      // 特征维度 d
	Alpha   float64  // 探索权重 α
	Lambda  float64  // 岭正则系数 λ，必须 > 0
	Variant Variant  // 缺省 disjoint
}

// Decision 一次路由决策
type Decision struct {
	DecisionID  string             `json:"decision_id"`
	Arm         string             `json:"arm"`
	Score       float64            `json:"score"` // 期望收益 θᵀf
	UCB         float64            `json:"ucb"`
	Exploration bool               `json:"exploration"`
	AllScores   map[string]float64 `json:"all_scores"` // arm -> ucb
}

// ArmStats 单臂诊断统计
type ArmStats struct {
	Pulls       int64   `json:"pulls"`
	TotalReward float64 `json:"total_reward"`
	AvgReward   float64 `json:"avg_reward"`
	ThetaNorm   float64 `json:"theta_norm"`
}

// Recorder 指标记录接口，由 internal/metrics.Collector 实现
type Recorder interface {
	RecordBanditChoice(arm string, exploration bool)
	RecordBanditFeedback(arm string, reward float64)
}

// armState 单臂在线模型。A 始终对称正定：基底 λI，每次更新累加
// PSD 秩一项 f·fᵀ。跨会话共享，mu 串行化同臂的并发读写。
type armState struct {
	mu          sync.Mutex
	A           *matrix
	b           []float64
	pulls       int64
	totalReward float64
}

// Router LinUCB 上下文 bandit 路由器。进程级共享对象，
// 显式构造、显式注入，不做全局单例。
type Router struct {
	arms     []string
	armIndex map[string]int
	states   []*armState
	dim      int
	alpha    float64
	pending  PendingStore
	logger   *zap.Logger
	recorder Recorder
}

// New 创建路由器。store 为 nil 时使用默认 TTL 的内存存储。
func New(cfg Config, store PendingStore, logger *zap.Logger) (*Router, error) {
	if cfg.Variant == VariantHybrid {
		return nil, ErrHybridUnsupported
	}
	if len(cfg.Arms) == 0 {
		return nil, fmt.Errorf("at least one arm is required")
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("context dim must be positive, got %d", cfg.Dim)
	}
	if cfg.Lambda <= 0 {
		return nil, fmt.Errorf("lambda must be positive, got %v", cfg.Lambda)
	}
	if cfg.Alpha < 0 {
		return nil, fmt.Errorf("alpha must be non-negative, got %v", cfg.Alpha)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryPendingStore(0)
	}

	r := &Router{
		arms:     append([]string(nil), cfg.Arms...),
		armIndex: make(map[string]int, len(cfg.Arms)),
		states:   make([]*armState, len(cfg.Arms)),
		dim:      cfg.Dim,
		alpha:    cfg.Alpha,
		pending:  store,
		logger:   logger,
	}
	for i, arm := range r.arms {
		if _, dup := r.armIndex[arm]; dup {
			return nil, fmt.Errorf("duplicate arm %q", arm)
		}
		r.armIndex[arm] = i
		r.states[i] = &armState{
			A: newScaledIdentity(cfg.Dim, cfg.Lambda),
			b: make([]float64, cfg.Dim),
		}
	}
	return r, nil
}

// SetRecorder 注入指标记录器（可选）
func (r *Router) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// Choose 在候选臂中选出 UCB 最大者并登记待反馈决策。
//
// candidates 为空或全部未知时回退到第一个配置臂（score 0、
// exploration=true），绝不报错。并列 UCB 按臂的枚举顺序决胜。
func (r *Router) Choose(ctx context.Context, rctx RouteContext, candidates []string) Decision {
	f := featureVector(rctx, r.dim)

	idxs := r.candidateIndexes(candidates)
	if len(idxs) == 0 {
		r.logger.Warn("no valid candidate arms, falling back to first configured arm",
			zap.Strings("candidates", candidates))
		return r.registerDecision(ctx, 0, f, 0, 0, true, map[string]float64{r.arms[0]: 0})
	}

	allScores := make(map[string]float64, len(idxs))
	bestIdx := -1
	var bestUCB, bestExpected float64

	for _, i := range idxs {
		expected, confidence := r.evaluateArm(i, f)
		ucb := expected + confidence
		allScores[r.arms[i]] = ucb
		// 严格大于：并列时保留枚举序更靠前的臂
		if bestIdx == -1 || ucb > bestUCB {
			bestIdx = i
			bestUCB = ucb
			bestExpected = expected
		}
	}

	exploration := bestUCB > bestExpected+explorationEpsilon
	return r.registerDecision(ctx, bestIdx, f, bestExpected, bestUCB, exploration, allScores)
}

// evaluateArm 计算 expected = θᵀf 与 confidence = α·√(fᵀA⁻¹f)。
// 持锁期间取矩阵快照，求解在锁外进行。
func (r *Router) evaluateArm(i int, f []float64) (expected, confidence float64) {
	st := r.states[i]
	st.mu.Lock()
	A := st.A.clone()
	b := append([]float64(nil), st.b...)
	st.mu.Unlock()

	theta, ok := A.solve(b)
	if !ok {
		// λI 基底加 PSD 更新不可能奇异，保底记一条日志
		r.logger.Error("design matrix solve failed", zap.String("arm", r.arms[i]))
		return 0, 0
	}
	expected = dot(theta, f)

	aInvF, ok := A.solve(f)
	if !ok {
		return expected, 0
	}
	variance := dot(f, aInvF)
	if variance < 0 {
		variance = 0
	}
	return expected, r.alpha * math.Sqrt(variance)
}

func (r *Router) registerDecision(ctx context.Context, armIdx int, f []float64, score, ucb float64, exploration bool, allScores map[string]float64) Decision {
	d := Decision{
		DecisionID:  uuid.New().String(),
		Arm:         r.arms[armIdx],
		Score:       score,
		UCB:         ucb,
		Exploration: exploration,
		AllScores:   allScores,
	}

	if err := r.pending.Put(ctx, PendingDecision{
		ID:        d.DecisionID,
		Arm:       d.Arm,
		Features:  f,
		CreatedAt: time.Now(),
	}); err != nil {
		r.logger.Warn("failed to store pending decision, feedback will not attribute",
			zap.String("decision_id", d.DecisionID),
			zap.Error(err))
	}

	st := r.states[armIdx]
	st.mu.Lock()
	st.pulls++
	st.mu.Unlock()

	if r.recorder != nil {
		r.recorder.RecordBanditChoice(d.Arm, exploration)
	}
	r.logger.Debug("arm chosen",
		zap.String("decision_id", d.DecisionID),
		zap.String("arm", d.Arm),
		zap.Float64("score", score),
		zap.Float64("ucb", ucb),
		zap.Bool("exploration", exploration))

	return d
}

// RecordFeedback 按 decision_id 归因奖励并更新所属臂的在线模型。
//
// 未知 id（已消费或已过期）记一条警告并返回 false，不视为错误。
// 奖励被截断到 [-1,1]。signals 仅用于日志。
func (r *Router) RecordFeedback(ctx context.Context, decisionID string, reward float64, signals map[string]float64) bool {
	d, ok, err := r.pending.Take(ctx, decisionID)
	if err != nil {
		r.logger.Warn("pending store lookup failed",
			zap.String("decision_id", decisionID),
			zap.Error(err))
		return false
	}
	if !ok {
		r.logger.Warn("unknown decision id, feedback dropped",
			zap.String("decision_id", decisionID))
		return false
	}

	if reward > 1 {
		reward = 1
	} else if reward < -1 {
		reward = -1
	}

	idx, known := r.armIndex[d.Arm]
	if !known {
		r.logger.Warn("pending decision references unknown arm",
			zap.String("decision_id", decisionID),
			zap.String("arm", d.Arm))
		return false
	}

	st := r.states[idx]
	st.mu.Lock()
	st.A.addOuter(d.Features)
	for i := range st.b {
		st.b[i] += reward * d.Features[i]
	}
	st.totalReward += reward
	st.mu.Unlock()

	if r.recorder != nil {
		r.recorder.RecordBanditFeedback(d.Arm, reward)
	}
	r.logger.Debug("feedback recorded",
		zap.String("decision_id", decisionID),
		zap.String("arm", d.Arm),
		zap.Float64("reward", reward),
		zap.Any("signals", signals))

	return true
}

// Stats 返回每臂诊断统计
func (r *Router) Stats() map[string]ArmStats {
	out := make(map[string]ArmStats, len(r.arms))
	for i, arm := range r.arms {
		st := r.states[i]
		st.mu.Lock()
		A := st.A.clone()
		b := append([]float64(nil), st.b...)
		pulls := st.pulls
		total := st.totalReward
		st.mu.Unlock()

		var thetaNorm float64
		if theta, ok := A.solve(b); ok {
			thetaNorm = norm2(theta)
		}
		s := ArmStats{Pulls: pulls, TotalReward: total, ThetaNorm: thetaNorm}
		if pulls > 0 {
			s.AvgReward = total / float64(pulls)
		}
		out[arm] = s
	}
	return out
}

// Theta 返回某臂当前的参数估计 θ = A⁻¹b
func (r *Router) Theta(arm string) ([]float64, bool) {
	idx, ok := r.armIndex[arm]
	if !ok {
		return nil, false
	}
	st := r.states[idx]
	st.mu.Lock()
	A := st.A.clone()
	b := append([]float64(nil), st.b...)
	st.mu.Unlock()

	theta, solved := A.solve(b)
	return theta, solved
}

// Arms 返回配置的臂列表（拷贝）
func (r *Router) Arms() []string {
	return append([]string(nil), r.arms...)
}

// Close 释放待反馈决策存储
func (r *Router) Close() error {
	return r.pending.Close()
}

// candidateIndexes 求 candidates ∩ arms，保持臂的枚举顺序
func (r *Router) candidateIndexes(candidates []string) []int {
	if len(candidates) == 0 {
		// 不限定候选时所有臂参与
		idxs := make([]int, len(r.arms))
		for i := range r.arms {
			idxs[i] = i
		}
		return idxs
	}

	want := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		want[c] = true
	}
	var idxs []int
	for i, arm := range r.arms {
		if want[arm] {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
