// Package pitchsim provides a top-level convenience entry point for running
// simulated sales conversations with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/pitchsim"
//
//	engine, err := pitchsim.New()
//	report, err := engine.Run(ctx, pitchsim.RunConfig{Persona: "skeptical", MaxTurns: 20, DeadlockThreshold: 5, CallTimeout: 30 * time.Second})
//
// This wires the default state machine, a LinUCB technique router with an
// in-memory pending store, and the reference agent/coach collaborators.
// Use the individual packages directly when you need custom collaborators.
package pitchsim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/bandit"
	"github.com/BaSui01/pitchsim/coach"
	"github.com/BaSui01/pitchsim/config"
	"github.com/BaSui01/pitchsim/fsm"
	"github.com/BaSui01/pitchsim/salesagent"
	"github.com/BaSui01/pitchsim/sim"
	"github.com/BaSui01/pitchsim/types"
)

// RunConfig is re-exported so callers never need to import sim/.
type RunConfig = sim.RunConfig

// Engine bundles the default component wiring for one process.
type Engine struct {
	orch   *sim.Orchestrator
	agent  *salesagent.Agent
	router *bandit.Router
}

// Option configures the engine created by [New].
type Option func(*options)

type options struct {
	logger     *zap.Logger
	arms       []string
	alpha      float64
	lambda     float64
	dim        int
	pendingTTL time.Duration
	coach      sim.Coach
}

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithArms overrides the technique arm set.
func WithArms(arms []string) Option {
	return func(o *options) { o.arms = arms }
}

// WithCoach replaces the default heuristic coach.
func WithCoach(c sim.Coach) Option {
	return func(o *options) { o.coach = c }
}

// WithExploration overrides the LinUCB exploration weight.
func WithExploration(alpha float64) Option {
	return func(o *options) { o.alpha = alpha }
}

// New creates an [Engine] with default configuration.
func New(opts ...Option) (*Engine, error) {
	o := &options{
		logger:     zap.NewNop(),
		arms:       append([]string(nil), config.DefaultArms...),
		alpha:      0.5,
		lambda:     1.0,
		dim:        10,
		pendingTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}

	router, err := bandit.New(bandit.Config{
		Arms:   o.arms,
		Dim:    o.dim,
		Alpha:  o.alpha,
		Lambda: o.lambda,
	}, bandit.NewMemoryPendingStore(o.pendingTTL), o.logger)
	if err != nil {
		return nil, err
	}

	agent, err := salesagent.NewAgent(fsm.NewDefaultMachine(o.logger), router, o.logger)
	if err != nil {
		_ = router.Close()
		return nil, err
	}

	c := o.coach
	if c == nil {
		c = coach.NewCoach(o.logger)
	}
	orch, err := sim.NewOrchestrator(agent,
		sim.WithCoach(c),
		sim.WithScoreSink(agent),
		sim.WithLogger(o.logger),
	)
	if err != nil {
		_ = router.Close()
		return nil, err
	}

	return &Engine{orch: orch, agent: agent, router: router}, nil
}

// Run executes one simulation with the engine's default collaborators.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*types.SimulationReport, error) {
	return e.orch.Run(ctx, cfg)
}

// Orchestrator exposes the underlying orchestrator for batch runners.
func (e *Engine) Orchestrator() *sim.Orchestrator { return e.orch }

// Agent exposes the reference agent, e.g. for inspecting session state.
func (e *Engine) Agent() *salesagent.Agent { return e.agent }

// Router exposes the shared technique router, e.g. for arm statistics.
func (e *Engine) Router() *bandit.Router { return e.router }

// Close releases shared resources.
func (e *Engine) Close() error {
	return e.router.Close()
}
