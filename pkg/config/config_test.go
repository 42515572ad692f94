package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Node: NodeConfig{ID: "node-1", Group: "g"},
		Leader: LeaderConfig{
			MaxWeightPerNode:  100,
			YoungestLeaderAge: Duration(10 * time.Second),
		},
		Scale: ScaleConfig{
			Enabled:            true,
			MinNodes:           1,
			MaxNodes:           10,
			CoolDownPeriod:     Duration(time.Minute),
			EvaluationPeriod:   Duration(30 * time.Second),
			ScaleDownThreshold: 40,
			ScaleUpThreshold:   80,
			ScaleUpStep:        3,
			ScaleDownStep:      1,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing node id", mutate: func(c *Config) { c.Node.ID = "" }, wantErr: true},
		{name: "missing group", mutate: func(c *Config) { c.Node.Group = "" }, wantErr: true},
		{name: "zero max weight", mutate: func(c *Config) { c.Leader.MaxWeightPerNode = 0 }, wantErr: true},
		{name: "negative min active nodes", mutate: func(c *Config) { c.Leader.MinActiveNodes = -1 }, wantErr: true},
		{
			name:    "thresholds inverted",
			mutate:  func(c *Config) { c.Scale.ScaleDownThreshold = 80; c.Scale.ScaleUpThreshold = 40 },
			wantErr: true,
		},
		{
			name:    "empty dead band",
			mutate:  func(c *Config) { c.Scale.ScaleDownThreshold = 80; c.Scale.ScaleUpThreshold = 80 },
			wantErr: true,
		},
		{
			name:    "max nodes below min nodes",
			mutate:  func(c *Config) { c.Scale.MinNodes = 5; c.Scale.MaxNodes = 3 },
			wantErr: true,
		},
		{name: "zero scale step", mutate: func(c *Config) { c.Scale.ScaleUpStep = 0 }, wantErr: true},
		{name: "zero evaluation period", mutate: func(c *Config) { c.Scale.EvaluationPeriod = 0 }, wantErr: true},
		{
			name:   "scale checks skipped when disabled",
			mutate: func(c *Config) { c.Scale.Enabled = false; c.Scale.ScaleUpStep = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	raw := `
node:
  id: node-1
  group: batch
  version: "1.4.0"
leader:
  maxWeightPerNode: 100
  youngestLeaderAge: 10s
  leaderAlsoWorker: true
scale:
  enabled: true
  minNodes: 2
  maxNodes: 10
  coolDownPeriod: 60s
  evaluationPeriod: 30s
  scaleDownThreshold: 40
  scaleUpThreshold: 80
  scaleUpStep: 3
  scaleDownStep: 1
scheduleFile: /etc/drover/schedule.yaml
metricsAddr: ":9090"
log:
  level: debug
  json: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node-1", cfg.Node.ID)
	assert.Equal(t, "batch", cfg.Node.Group)
	assert.Equal(t, 10*time.Second, cfg.Leader.YoungestLeaderAge.Std())
	assert.Equal(t, 60*time.Second, cfg.Scale.CoolDownPeriod.Std())
	assert.True(t, cfg.Leader.LeaderAlsoWorker)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Defaults fill the unset duty periods
	assert.Equal(t, 10*time.Second, cfg.Leader.ElectionPeriod.Std())
	assert.Equal(t, 30*time.Second, cfg.Leader.RefreshPeriod.Std())
	assert.Equal(t, "/var/lib/drover", cfg.Node.DataDir)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	raw := `
node:
  id: node-1
  group: batch
leader:
  maxWeightPerNode: 100
scale:
  enabled: true
  minNodes: 2
  maxNodes: 10
  evaluationPeriod: 30s
  scaleDownThreshold: 90
  scaleUpThreshold: 80
  scaleUpStep: 3
  scaleDownStep: 1
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	raw := "leader:\n  youngestLeaderAge: quickly\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
