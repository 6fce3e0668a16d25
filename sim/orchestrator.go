package sim

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/persona"
	"github.com/BaSui01/pitchsim/retry"
	"github.com/BaSui01/pitchsim/types"
)

// seedOpeningMessage 首轮由销售方开场,客户模拟器对其作出第一条回复。
const seedOpeningMessage = "Hi, thanks for taking the time today! Before we dive in, I'd love to hear a bit about your team and what you're working on."

// hardRejectionKeywords 出现在客户消息中且轮次 > 3 时直接判负。
var hardRejectionKeywords = []string{
	"not interested",
	"stop calling",
	"don't contact me",
	"waste of my time",
	"absolutely not",
	"take me off your list",
}

// Recorder 运行级指标回调。internal/metrics.Collector 实现该接口。
type Recorder interface {
	RecordSimulation(personaID, status string, turns int, duration time.Duration)
}

// customerSimulator 由 persona.Simulator 实现;测试中可替换为脚本化客户。
type customerSimulator interface {
	Respond(salesMessage string, salesState types.ConversationState) persona.Reply
}

// ScoreSink 把教练评分回灌给 Agent 侧做在线学习(如 bandit 奖励归因)。
type ScoreSink interface {
	RecordCoachScore(ctx context.Context, sessionID string, score float64) bool
}

// CollaboratorLimiter 协作方调用限速。每次 Agent / Coach 调用(含重试)
// 前等待一个令牌;*rate.Limiter 满足该接口。
type CollaboratorLimiter interface {
	Wait(ctx context.Context) error
}

// RunConfig 单次模拟运行的参数。
type RunConfig struct {
	SessionID         string        // 为空时自动生成 UUID
	Persona           string        // 画像 ID,见 persona 包
	MaxTurns          int           // 回合数上限
	DeadlockThreshold int           // 连续无进展回合数,达到即判死锁
	CallTimeout       time.Duration // 单次协作方调用超时
	Rand              *rand.Rand    // 可选:注入随机源以复现运行

	// Limiter 可选:限制对 Agent / Coach 的调用速率而非运行启动速率,
	// 一次运行最多发起 2×MaxTurns 次协作方调用。
	Limiter CollaboratorLimiter
}

func (c *RunConfig) validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max turns must be positive, got %d", c.MaxTurns)
	}
	if c.DeadlockThreshold <= 0 {
		return fmt.Errorf("deadlock threshold must be positive, got %d", c.DeadlockThreshold)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %v", c.CallTimeout)
	}
	return nil
}

// Orchestrator 驱动单个 session 的回合循环。
// 同一 session 内严格串行;不同 session 可各自并发运行。
type Orchestrator struct {
	agent       Agent
	coach       Coach // 可选
	retryer     retry.Retryer
	recorder    Recorder
	scoreSink   ScoreSink
	logger      *zap.Logger
	newCustomer func(profile persona.Profile, opts ...persona.Option) customerSimulator
}

// OrchestratorOption 编排器可选配置
type OrchestratorOption func(*Orchestrator)

// WithCoach 配置可选的教练协作方
func WithCoach(c Coach) OrchestratorOption {
	return func(o *Orchestrator) { o.coach = c }
}

// WithRetryer 替换协作方调用的重试策略
func WithRetryer(r retry.Retryer) OrchestratorOption {
	return func(o *Orchestrator) { o.retryer = r }
}

// WithRecorder 接入指标采集
func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithScoreSink 配置教练评分的回灌目标
func WithScoreSink(s ScoreSink) OrchestratorOption {
	return func(o *Orchestrator) { o.scoreSink = s }
}

// WithLogger 注入日志器
func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator 构造编排器。agent 不可为空。
func NewOrchestrator(agent Agent, opts ...OrchestratorOption) (*Orchestrator, error) {
	if agent == nil {
		return nil, fmt.Errorf("agent collaborator is required")
	}
	o := &Orchestrator{
		agent:  agent,
		logger: zap.NewNop(),
		newCustomer: func(p persona.Profile, opts ...persona.Option) customerSimulator {
			return persona.NewSimulator(p, opts...)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.retryer == nil {
		o.retryer = retry.NewBackoffRetryer(retry.DefaultPolicy(), o.logger)
	}
	return o, nil
}

// Run 执行一次完整的模拟运行并合成训练报告。
//
// 终止状态:Completed / Failed / Deadlock / MaxTurnsReached,
// 以及取消(Cancelled)与协作方耗尽重试(CollaboratorError)。
// 后两者返回已执行回合构成的部分报告,错误通过状态表达而非 error,
// 以免单次失败中断整个批量。error 仅在参数非法时非空。
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*types.SimulationReport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	profile, err := persona.Get(cfg.Persona)
	if err != nil {
		return nil, err
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var simOpts []persona.Option
	if cfg.Rand != nil {
		simOpts = append(simOpts, persona.WithRand(cfg.Rand))
	}
	simOpts = append(simOpts, persona.WithLogger(o.logger))
	customer := o.newCustomer(profile, simOpts...)

	logger := o.logger.With(
		zap.String("session_id", sessionID),
		zap.String("persona", profile.ID),
	)
	logger.Info("simulation started",
		zap.Int("max_turns", cfg.MaxTurns),
		zap.Int("deadlock_threshold", cfg.DeadlockThreshold),
	)

	startedAt := time.Now()
	status := types.RunRunning
	lastState := types.StateOpening
	noProgress := 0
	agentMessage := seedOpeningMessage
	turns := make([]types.Turn, 0, cfg.MaxTurns)
	turnNumber := 0

	for status == types.RunRunning && turnNumber < cfg.MaxTurns {
		if ctx.Err() != nil {
			status = types.RunCancelled
			break
		}
		turnNumber++

		reply := customer.Respond(agentMessage, lastState)

		resp, err := o.callAgent(ctx, cfg, sessionID, reply.Content)
		if err != nil {
			if ctx.Err() != nil {
				status = types.RunCancelled
			} else {
				status = types.RunCollaboratorError
			}
			logger.Error("agent collaborator failed",
				zap.Int("turn", turnNumber),
				zap.Error(err),
			)
			break
		}
		newState, ok := types.ParseState(resp.CurrentState)
		if !ok {
			status = types.RunCollaboratorError
			logger.Error("agent returned unknown state",
				zap.Int("turn", turnNumber),
				zap.String("state", resp.CurrentState),
			)
			break
		}

		turn := types.Turn{
			TurnNumber:           turnNumber,
			SalesMessage:         resp.Content,
			CustomerMessage:      reply.Content,
			SalesState:           newState,
			CustomerObjection:    reply.Objection,
			CustomerBuyingSignal: reply.BuyingSignal,
		}

		if o.coach != nil {
			feedback, err := o.callCoach(ctx, cfg, resp.Content, reply.Content, newState)
			if err != nil {
				if ctx.Err() != nil {
					status = types.RunCancelled
				} else {
					status = types.RunCollaboratorError
				}
				logger.Error("coach collaborator failed",
					zap.Int("turn", turnNumber),
					zap.Error(err),
				)
				turns = append(turns, turn)
				break
			}
			turn.CoachScore = feedback
			if o.scoreSink != nil {
				o.scoreSink.RecordCoachScore(ctx, sessionID, feedback.OverallScore)
			}
		}

		turns = append(turns, turn)

		// 终止判定顺序固定:成交 > 硬拒绝 > 死锁。
		// Agent 在 Closing 阶段收到购买信号会直接推进到 completed,
		// 该终态同样视为成交,否则已成交的会话会漂移成死锁。
		switch {
		case newState == types.StateCompleted,
			reply.BuyingSignal && newState == types.StateClosing:
			status = types.RunCompleted
		case containsKeyword(reply.Content, hardRejectionKeywords) && turnNumber > 3:
			status = types.RunFailed
		default:
			if newState == lastState {
				noProgress++
			} else {
				noProgress = 0
			}
			if noProgress >= cfg.DeadlockThreshold {
				status = types.RunDeadlock
			}
		}

		lastState = newState
		agentMessage = resp.Content
	}

	if status == types.RunRunning {
		status = types.RunMaxTurnsReached
	}

	finishedAt := time.Now()
	report := buildReport(sessionID, profile.ID, status, turns, startedAt, finishedAt)

	logger.Info("simulation finished",
		zap.String("status", string(status)),
		zap.Int("total_turns", report.TotalTurns),
		zap.Float64("average_score", report.AverageScore),
		zap.Duration("elapsed", finishedAt.Sub(startedAt)),
	)
	if o.recorder != nil {
		o.recorder.RecordSimulation(profile.ID, string(status), report.TotalTurns, finishedAt.Sub(startedAt))
	}
	return report, nil
}

func (o *Orchestrator) callAgent(ctx context.Context, cfg RunConfig, sessionID, message string) (*AgentResponse, error) {
	var resp *AgentResponse
	err := o.retryer.Do(ctx, func() error {
		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()
		r, err := o.agent.ProcessMessage(callCtx, sessionID, message)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("agent returned nil response")
		}
		resp = r
		return nil
	})
	return resp, err
}

func (o *Orchestrator) callCoach(ctx context.Context, cfg RunConfig, salesMessage, customerMessage string, stage types.ConversationState) (*types.CoachFeedback, error) {
	var feedback *types.CoachFeedback
	err := o.retryer.Do(ctx, func() error {
		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()
		f, err := o.coach.EvaluateResponse(callCtx, salesMessage, customerMessage, stage)
		if err != nil {
			return err
		}
		feedback = f
		return nil
	})
	return feedback, err
}

func containsKeyword(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
