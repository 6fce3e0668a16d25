package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Simulation.MaxTurns)
	assert.Equal(t, 5, cfg.Simulation.DeadlockThreshold)
	assert.Equal(t, DefaultArms, cfg.Bandit.Arms)
	assert.Equal(t, "memory", cfg.Bandit.PendingBackend)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
simulation:
  max_turns: 8
  deadlock_threshold: 3
bandit:
  alpha: 1.25
  pending_backend: redis
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Simulation.MaxTurns)
	assert.Equal(t, 3, cfg.Simulation.DeadlockThreshold)
	assert.Equal(t, 1.25, cfg.Bandit.Alpha)
	assert.Equal(t, "redis", cfg.Bandit.PendingBackend)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep defaults.
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("PITCHSIM_SIMULATION_MAX_TURNS", "12")
	t.Setenv("PITCHSIM_SIMULATION_CALL_TIMEOUT", "5s")
	t.Setenv("PITCHSIM_BANDIT_ARMS", "probe, pitch ,close")
	t.Setenv("PITCHSIM_TELEMETRY_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Simulation.MaxTurns)
	assert.Equal(t, 5*time.Second, cfg.Simulation.CallTimeout)
	assert.Equal(t, []string{"probe", "pitch", "close"}, cfg.Bandit.Arms)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Simulation.MaxTurns)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max_turns", func(c *Config) { c.Simulation.MaxTurns = 0 }},
		{"zero deadlock_threshold", func(c *Config) { c.Simulation.DeadlockThreshold = 0 }},
		{"empty arms", func(c *Config) { c.Bandit.Arms = nil }},
		{"zero lambda", func(c *Config) { c.Bandit.Lambda = 0 }},
		{"bad backend", func(c *Config) { c.Bandit.PendingBackend = "mongo" }},
		{"bad port", func(c *Config) { c.Server.MetricsPort = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "pitchsim", SSLMode: "disable"}
	assert.Contains(t, d.DSN(), "host=db")

	d.Driver = "mysql"
	assert.Contains(t, d.DSN(), "@tcp(db:5432)/pitchsim")

	d.Driver = "sqlite"
	d.Name = "reports.db"
	assert.Equal(t, "reports.db", d.DSN())

	d.Driver = "oracle"
	assert.Empty(t, d.DSN())
}
