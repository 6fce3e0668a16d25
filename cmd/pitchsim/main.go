// =============================================================================
// PitchSim 主入口
// =============================================================================
// 销售对练模拟器命令行入口,包含单次运行、批量运行、Prometheus 指标
//
// 使用方法:
//
//	pitchsim run --persona skeptical          # 单次模拟
//	pitchsim run --config config.yaml --save  # 指定配置并持久化报告
//	pitchsim batch --runs 50                  # 批量模拟
//	pitchsim version                          # 显示版本信息
//	pitchsim health                           # 指标端点健康检查
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/pitchsim/bandit"
	"github.com/BaSui01/pitchsim/coach"
	"github.com/BaSui01/pitchsim/config"
	"github.com/BaSui01/pitchsim/fsm"
	"github.com/BaSui01/pitchsim/internal/metrics"
	"github.com/BaSui01/pitchsim/internal/telemetry"
	"github.com/BaSui01/pitchsim/reportstore"
	"github.com/BaSui01/pitchsim/retry"
	"github.com/BaSui01/pitchsim/salesagent"
	"github.com/BaSui01/pitchsim/sim"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runSingle(os.Args[2:])
	case "batch":
		runBatch(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🔩 引擎装配
// =============================================================================

// engine 一次命令执行所需的全部组件
type engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	router    *bandit.Router
	agent     *salesagent.Agent
	orch      *sim.Orchestrator
	providers *telemetry.Providers
}

func buildEngine(configPath string) (*engine, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := initLogger(cfg.Log)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	collector := metrics.NewCollector("pitchsim", logger)

	pending, err := buildPendingStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	router, err := bandit.New(bandit.Config{
		Arms:   cfg.Bandit.Arms,
		Dim:    cfg.Bandit.ContextDim,
		Alpha:  cfg.Bandit.Alpha,
		Lambda: cfg.Bandit.Lambda,
	}, pending, logger)
	if err != nil {
		return nil, fmt.Errorf("build bandit router: %w", err)
	}
	router.SetRecorder(collector)

	machine := fsm.NewDefaultMachine(logger)
	machine.SetRecorder(collector)

	agent, err := salesagent.NewAgent(machine, router, logger)
	if err != nil {
		return nil, err
	}

	retryer := retry.NewBackoffRetryer(&retry.Policy{
		MaxRetries:   cfg.Simulation.MaxRetries,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, logger)

	orch, err := sim.NewOrchestrator(agent,
		sim.WithCoach(coach.NewCoach(logger)),
		sim.WithScoreSink(agent),
		sim.WithRecorder(collector),
		sim.WithRetryer(retryer),
		sim.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		router:    router,
		agent:     agent,
		orch:      orch,
		providers: providers,
	}, nil
}

func (e *engine) close() {
	if err := e.router.Close(); err != nil {
		e.logger.Warn("close bandit router", zap.Error(err))
	}
	if e.providers != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := e.providers.Shutdown(ctx); err != nil {
			e.logger.Warn("shutdown telemetry", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

// buildPendingStore 按配置选择待反馈决策的存储后端
func buildPendingStore(cfg *config.Config, logger *zap.Logger) (bandit.PendingStore, error) {
	switch cfg.Bandit.PendingBackend {
	case "", "memory":
		return bandit.NewMemoryPendingStore(cfg.Bandit.PendingTTL), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		store, err := bandit.NewRedisPendingStore(client, "pitchsim:pending", cfg.Bandit.PendingTTL)
		if err != nil {
			return nil, fmt.Errorf("connect redis pending store: %w", err)
		}
		logger.Info("using redis pending store", zap.String("addr", cfg.Redis.Addr))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported pending backend: %s", cfg.Bandit.PendingBackend)
	}
}

// openStore 打开报告持久化存储(--save 时使用)
func openStore(e *engine) (*reportstore.Store, error) {
	db, err := reportstore.Open(e.cfg.Database, e.logger)
	if err != nil {
		return nil, err
	}
	return reportstore.New(db, e.logger, reportstore.WithRecorder(e.collector))
}

// =============================================================================
// 🖥️ run 命令
// =============================================================================

func runSingle(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	personaID := fs.String("persona", "skeptical", "Customer persona id")
	sessionID := fs.String("session", "", "Session id (generated when empty)")
	save := fs.Bool("save", false, "Persist the report to the configured database")
	fs.Parse(args)

	e, err := buildEngine(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := e.orch.Run(ctx, sim.RunConfig{
		SessionID:         *sessionID,
		Persona:           *personaID,
		MaxTurns:          e.cfg.Simulation.MaxTurns,
		DeadlockThreshold: e.cfg.Simulation.DeadlockThreshold,
		CallTimeout:       e.cfg.Simulation.CallTimeout,
	})
	if err != nil {
		e.logger.Fatal("simulation failed", zap.Error(err))
	}

	if *save {
		store, err := openStore(e)
		if err != nil {
			e.logger.Fatal("open report store", zap.Error(err))
		}
		if err := store.Save(ctx, report); err != nil {
			e.logger.Fatal("save report", zap.Error(err))
		}
		e.logger.Info("report saved", zap.String("session_id", report.SessionID))
	}

	printJSON(report)
}

// =============================================================================
// 📊 batch 命令
// =============================================================================

func runBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	runs := fs.Int("runs", 10, "Number of simulation runs")
	personaList := fs.String("personas", "", "Comma-separated persona ids (all when empty)")
	seed := fs.Int64("seed", 0, "Base random seed (time-based when 0)")
	save := fs.Bool("save", false, "Persist all reports to the configured database")
	fs.Parse(args)

	e, err := buildEngine(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var personas []string
	if *personaList != "" {
		for _, p := range strings.Split(*personaList, ",") {
			personas = append(personas, strings.TrimSpace(p))
		}
	}

	runner, err := sim.NewBatchRunner(e.orch, e.logger)
	if err != nil {
		e.logger.Fatal("build batch runner", zap.Error(err))
	}

	// 批量期间暴露 Prometheus 指标端点
	g, gctx := errgroup.WithContext(ctx)
	metricsSrv := newMetricsServer(e.cfg.Server.MetricsPort)
	g.Go(func() error {
		e.logger.Info("metrics endpoint up", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var summary *sim.BatchSummary
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
		s, err := runner.Run(gctx, sim.BatchConfig{
			Runs:              *runs,
			Personas:          personas,
			MaxTurns:          e.cfg.Simulation.MaxTurns,
			DeadlockThreshold: e.cfg.Simulation.DeadlockThreshold,
			CallTimeout:       e.cfg.Simulation.CallTimeout,
			Workers:           e.cfg.Simulation.BatchWorkers,
			CollaboratorRPS:   e.cfg.Simulation.CollaboratorRPS,
			BaseSeed:          *seed,
		})
		if err != nil {
			return err
		}
		summary = s
		return nil
	})

	if err := g.Wait(); err != nil {
		e.logger.Fatal("batch failed", zap.Error(err))
	}

	if *save {
		store, err := openStore(e)
		if err != nil {
			e.logger.Fatal("open report store", zap.Error(err))
		}
		for _, report := range summary.Reports {
			if err := store.Save(ctx, report); err != nil {
				e.logger.Error("save report",
					zap.String("session_id", report.SessionID),
					zap.Error(err),
				)
			}
		}
		e.logger.Info("reports saved", zap.Int("count", len(summary.Reports)))
	}

	printJSON(summary)
}

func newMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:9090", "Metrics endpoint address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("PitchSim %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`PitchSim - Sales Conversation Simulator

Usage:
  pitchsim <command> [options]

Commands:
  run       Run a single simulated sales conversation
  batch     Run a batch of independent simulations
  version   Show version information
  health    Check the metrics endpoint
  help      Show this help message

Options for 'run':
  --config <path>     Path to configuration file (YAML)
  --persona <id>      Customer persona (price_sensitive, skeptical,
                      silent_type, busy, interested, comparison_shopper)
  --session <id>      Session id, generated when empty
  --save              Persist the report to the configured database

Options for 'batch':
  --config <path>     Path to configuration file (YAML)
  --runs <n>          Number of runs (default 10)
  --personas <list>   Comma-separated persona ids, all when empty
  --seed <n>          Base random seed, time-based when 0
  --save              Persist all reports

Examples:
  pitchsim run --persona busy
  pitchsim batch --runs 50 --personas skeptical,interested --save
  pitchsim health --addr http://localhost:9090
  pitchsim version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
