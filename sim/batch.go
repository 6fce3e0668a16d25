package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/pitchsim/internal/pool"
	"github.com/BaSui01/pitchsim/persona"
	"github.com/BaSui01/pitchsim/types"
)

// BatchConfig 批量模拟参数。
type BatchConfig struct {
	Runs              int           // 运行总数
	Personas          []string      // 为空时轮询全部画像目录
	MaxTurns          int           // 透传给每次运行
	DeadlockThreshold int           //
	CallTimeout       time.Duration //
	Workers           int           // 工作池上限,<=0 时取 Runs
	CollaboratorRPS   float64       // 协作方每秒调用数上限(按 Agent/Coach 单次调用计),<=0 时不限速
	BaseSeed          int64         // 每次运行的随机源种子为 BaseSeed+i;0 表示按时间播种
}

// BatchSummary 一批运行的聚合结果。
type BatchSummary struct {
	Reports             []*types.SimulationReport `json:"reports"`
	CompletionRate      float64                   `json:"completion_rate"`
	FailureRate         float64                   `json:"failure_rate"`
	DeadlockRate        float64                   `json:"deadlock_rate"`
	MaxTurnRate         float64                   `json:"max_turn_rate"`
	PersonaAverageScore map[string]float64        `json:"persona_average_score"`
}

// BatchRunner 在有界工作池里并发调度相互独立的模拟运行。
// 各运行不共享任何会话状态;对协作方的总调用速率由限流器约束。
type BatchRunner struct {
	orch   *Orchestrator
	logger *zap.Logger
}

// NewBatchRunner 构造批量调度器
func NewBatchRunner(orch *Orchestrator, logger *zap.Logger) (*BatchRunner, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRunner{orch: orch, logger: logger}, nil
}

// Run 执行 cfg.Runs 次独立播种的模拟,画像按目录顺序轮询分配。
// 单次运行失败(协作方错误、取消)以报告状态呈现,不中断其余运行;
// error 仅在参数非法或上下文整体取消时非空。
func (r *BatchRunner) Run(ctx context.Context, cfg BatchConfig) (*BatchSummary, error) {
	if cfg.Runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", cfg.Runs)
	}
	personas := cfg.Personas
	if len(personas) == 0 {
		personas = persona.IDs()
	}
	for _, id := range personas {
		if _, err := persona.Get(id); err != nil {
			return nil, err
		}
	}

	workers := cfg.Workers
	if workers <= 0 || workers > cfg.Runs {
		workers = cfg.Runs
	}
	baseSeed := cfg.BaseSeed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	// 限速器在全批次的 worker 间共享,作用于每次协作方调用。
	var runLimiter CollaboratorLimiter
	if cfg.CollaboratorRPS > 0 {
		runLimiter = rate.NewLimiter(rate.Limit(cfg.CollaboratorRPS), 1)
	}

	workerPool := pool.New(pool.Config{
		MaxWorkers:  workers,
		QueueSize:   cfg.Runs,
		IdleTimeout: time.Minute,
	})
	defer workerPool.Close()

	r.logger.Info("batch started",
		zap.Int("runs", cfg.Runs),
		zap.Int("workers", workers),
		zap.Strings("personas", personas),
	)

	reports := make([]*types.SimulationReport, cfg.Runs)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Runs; i++ {
		i := i
		personaID := personas[i%len(personas)]
		seed := baseSeed + int64(i)

		wg.Add(1)
		err := workerPool.Submit(ctx, func(taskCtx context.Context) error {
			defer wg.Done()
			report, err := r.orch.Run(taskCtx, RunConfig{
				Persona:           personaID,
				MaxTurns:          cfg.MaxTurns,
				DeadlockThreshold: cfg.DeadlockThreshold,
				CallTimeout:       cfg.CallTimeout,
				Rand:              rand.New(rand.NewSource(seed)),
				Limiter:           runLimiter,
			})
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
		if err != nil {
			wg.Done()
			return nil, fmt.Errorf("submit run %d: %w", i, err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := aggregate(reports)
	r.logger.Info("batch finished",
		zap.Int("runs", len(summary.Reports)),
		zap.Float64("completion_rate", summary.CompletionRate),
		zap.Float64("deadlock_rate", summary.DeadlockRate),
	)
	return summary, nil
}

// aggregate 统计批量终止状态占比与各画像平均得分。
func aggregate(reports []*types.SimulationReport) *BatchSummary {
	summary := &BatchSummary{
		PersonaAverageScore: make(map[string]float64),
	}
	scoreSum := make(map[string]float64)
	scoreCount := make(map[string]int)

	for _, rep := range reports {
		if rep == nil {
			continue
		}
		summary.Reports = append(summary.Reports, rep)
		switch rep.FinalStatus {
		case types.RunCompleted:
			summary.CompletionRate++
		case types.RunFailed:
			summary.FailureRate++
		case types.RunDeadlock:
			summary.DeadlockRate++
		case types.RunMaxTurnsReached:
			summary.MaxTurnRate++
		}
		scoreSum[rep.CustomerPersonality] += rep.AverageScore
		scoreCount[rep.CustomerPersonality]++
	}

	total := float64(len(summary.Reports))
	if total > 0 {
		summary.CompletionRate /= total
		summary.FailureRate /= total
		summary.DeadlockRate /= total
		summary.MaxTurnRate /= total
	}
	for id, sum := range scoreSum {
		summary.PersonaAverageScore[id] = sum / float64(scoreCount[id])
	}
	return summary
}
