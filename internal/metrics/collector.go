package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 模拟引擎指标收集器
type Collector struct {
	// FSM 指标
	stateTransitions *prometheus.CounterVec

	// Bandit 指标
	banditChoices  *prometheus.CounterVec
	banditFeedback *prometheus.CounterVec
	banditReward   *prometheus.CounterVec

	// 模拟运行指标
	simulationsTotal   *prometheus.CounterVec
	simulationDuration *prometheus.HistogramVec
	simulationTurns    *prometheus.HistogramVec

	// 报告存储指标
	reportStoreDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// FSM 指标
	c.stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of conversation state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// Bandit 指标
	c.banditChoices = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bandit_choices_total",
			Help:      "Total number of bandit arm choices",
		},
		[]string{"arm", "mode"}, // mode: explore, exploit
	)

	c.banditFeedback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bandit_feedback_total",
			Help:      "Total number of bandit feedback updates",
		},
		[]string{"arm"},
	)

	c.banditReward = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bandit_reward_total",
			Help:      "Cumulative bandit reward magnitude per arm; net reward = positive - negative",
		},
		[]string{"arm", "direction"}, // direction: positive, negative
	)

	// 模拟运行指标
	c.simulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Total number of simulation runs",
		},
		[]string{"persona", "status"},
	)

	c.simulationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"persona"},
	)

	c.simulationTurns = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_turns",
			Help:      "Number of turns per simulation run",
			Buckets:   []float64{1, 2, 4, 6, 8, 12, 16, 24, 32},
		},
		[]string{"persona", "status"},
	)

	// 报告存储指标
	c.reportStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_store_duration_seconds",
			Help:      "Report store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎭 FSM 指标记录
// =============================================================================

// RecordStateTransition 记录状态转换，实现 fsm.TransitionRecorder
func (c *Collector) RecordStateTransition(sessionID, fromState, toState string) {
	// session_id 基数过高，不作为标签
	c.stateTransitions.WithLabelValues(fromState, toState).Inc()
}

// =============================================================================
// 🎰 Bandit 指标记录
// =============================================================================

// RecordBanditChoice 记录一次选臂，实现 bandit.Recorder
func (c *Collector) RecordBanditChoice(arm string, exploration bool) {
	mode := "exploit"
	if exploration {
		mode = "explore"
	}
	c.banditChoices.WithLabelValues(arm, mode).Inc()
}

// RecordBanditFeedback 记录一次奖励归因，实现 bandit.Recorder。
// 负奖励计入 negative 方向的绝对值,保持 Counter 单调。
func (c *Collector) RecordBanditFeedback(arm string, reward float64) {
	c.banditFeedback.WithLabelValues(arm).Inc()
	switch {
	case reward > 0:
		c.banditReward.WithLabelValues(arm, "positive").Add(reward)
	case reward < 0:
		c.banditReward.WithLabelValues(arm, "negative").Add(-reward)
	}
}

// =============================================================================
// 🏃 模拟运行指标记录
// =============================================================================

// RecordSimulation 记录一次模拟运行
func (c *Collector) RecordSimulation(personaID, status string, turns int, duration time.Duration) {
	c.simulationsTotal.WithLabelValues(personaID, status).Inc()
	c.simulationDuration.WithLabelValues(personaID).Observe(duration.Seconds())
	c.simulationTurns.WithLabelValues(personaID, status).Observe(float64(turns))
}

// =============================================================================
// 🗄️ 报告存储指标记录
// =============================================================================

// RecordReportStoreOp 记录报告存储操作
func (c *Collector) RecordReportStoreOp(operation string, duration time.Duration) {
	c.reportStoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
