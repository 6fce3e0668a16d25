// =============================================================================
// ⚙️ 默认配置
// =============================================================================
package config

import "time"

// DefaultArms 默认销售技巧臂，顺序即并列 UCB 的决胜顺序
var DefaultArms = []string{"build_rapport", "probe_needs", "pitch_value", "handle_objection", "close_deal"}

// DefaultConfig 返回包含合理默认值的完整配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MetricsPort:     9090,
			ShutdownTimeout: 10 * time.Second,
		},
		Simulation: SimulationConfig{
			MaxTurns:          20,
			DeadlockThreshold: 5,
			CallTimeout:       30 * time.Second,
			MaxRetries:        2,
			BatchWorkers:      4,
			CollaboratorRPS:   0,
		},
		Bandit: BanditConfig{
			Arms:           append([]string(nil), DefaultArms...),
			ContextDim:     10,
			Alpha:          0.5,
			Lambda:         1.0,
			PendingTTL:     10 * time.Minute,
			PendingBackend: "memory",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		Database: DatabaseConfig{
			Driver:          "",
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Log: LogConfig{
			Level:            "info",
			Format:           "json",
			OutputPaths:      []string{"stdout"},
			EnableCaller:     true,
			EnableStacktrace: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "pitchsim",
			SampleRate:   1.0,
		},
	}
}
