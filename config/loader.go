// =============================================================================
// 📦 PitchSim 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("PITCHSIM").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 PitchSim 的完整配置结构
type Config struct {
	// Server 服务器配置（指标端点）
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Simulation 模拟编排配置
	Simulation SimulationConfig `yaml:"simulation" env:"SIMULATION"`

	// Bandit 路由器配置
	Bandit BanditConfig `yaml:"bandit" env:"BANDIT"`

	// Redis 缓存配置（bandit 待反馈决策存储）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 报告持久化配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// SimulationConfig 模拟编排配置
type SimulationConfig struct {
	// 单次运行最大轮数
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// 连续多少轮状态无进展判定为死锁
	DeadlockThreshold int `yaml:"deadlock_threshold" env:"DEADLOCK_THRESHOLD"`
	// 单次协作方调用超时
	CallTimeout time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	// 协作方调用最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 批量模拟工作协程数
	BatchWorkers int `yaml:"batch_workers" env:"BATCH_WORKERS"`
	// 协作方调用速率限制（每秒），0 表示不限
	CollaboratorRPS float64 `yaml:"collaborator_rps" env:"COLLABORATOR_RPS"`
}

// BanditConfig bandit 路由器配置
type BanditConfig struct {
	// 臂列表（销售技巧）
	Arms []string `yaml:"arms" env:"ARMS"`
	// 特征维度
	ContextDim int `yaml:"context_dim" env:"CONTEXT_DIM"`
	// 探索权重 α
	Alpha float64 `yaml:"alpha" env:"ALPHA"`
	// 岭正则系数 λ
	Lambda float64 `yaml:"lambda" env:"LAMBDA"`
	// 待反馈决策过期时间
	PendingTTL time.Duration `yaml:"pending_ttl" env:"PENDING_TTL"`
	// 待反馈决策存储后端: memory, redis
	PendingBackend string `yaml:"pending_backend" env:"PENDING_BACKEND"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 时为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器。零值不可用，经 NewLoader 构造。
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader 创建加载器，环境变量前缀固定为 PITCHSIM。
func NewLoader() *Loader {
	return &Loader{envPrefix: "PITCHSIM"}
}

// WithConfigPath 指定 YAML 配置文件路径。文件不存在时静默回退默认值，
// 便于同一条命令行在有无配置文件的环境下都能跑。
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 覆盖环境变量前缀（测试隔离用）
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load 加载配置，优先级: 默认值 → YAML 文件 → 环境变量。
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		switch {
		case os.IsNotExist(err):
			// 回退默认值
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", l.configPath, err)
			}
		}
	}

	if err := overlayEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	return cfg, nil
}

// overlayEnv 按 env tag 递归遍历配置结构体，把形如 PREFIX_SECTION_FIELD
// 的环境变量写进对应字段。未设置的变量不动原值。
func overlayEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		f := v.Field(i)
		if f.Kind() == reflect.Struct {
			if err := overlayEnv(f, key); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := coerce(f, raw); err != nil {
			return fmt.Errorf("%s=%q: %w", key, raw, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// coerce 把环境变量字符串解析为字段类型。
// 只覆盖配置结构体实际用到的类型；Duration 走 time.ParseDuration。
func coerce(f reflect.Value, raw string) error {
	if !f.CanSet() {
		return nil
	}
	if f.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float32, reflect.Float64:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element %s", f.Type().Elem())
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		f.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Simulation.MaxTurns <= 0 {
		errs = append(errs, "max_turns must be positive")
	}
	if c.Simulation.DeadlockThreshold <= 0 {
		errs = append(errs, "deadlock_threshold must be positive")
	}
	if len(c.Bandit.Arms) == 0 {
		errs = append(errs, "bandit arms must not be empty")
	}
	if c.Bandit.ContextDim <= 0 {
		errs = append(errs, "bandit context_dim must be positive")
	}
	if c.Bandit.Lambda <= 0 {
		errs = append(errs, "bandit lambda must be positive")
	}
	switch c.Bandit.PendingBackend {
	case "memory", "redis":
	default:
		errs = append(errs, "bandit pending_backend must be memory or redis")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
