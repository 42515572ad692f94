package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse directly
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// NodeConfig identifies this node within the cluster
type NodeConfig struct {
	ID      string `yaml:"id"`
	Group   string `yaml:"group"`
	Version string `yaml:"version"`
	DataDir string `yaml:"dataDir"`
}

// LeaderConfig controls leader election and job placement
type LeaderConfig struct {
	MinActiveNodes    int      `yaml:"minActiveNodes"`
	MaxWeightPerNode  int      `yaml:"maxWeightPerNode"`
	YoungestLeaderAge Duration `yaml:"youngestLeaderAge"`
	LeaderAlsoWorker  bool     `yaml:"leaderAlsoWorker"`
	ElectionPeriod    Duration `yaml:"electionPeriod"`
	RefreshPeriod     Duration `yaml:"refreshPeriod"`
	QueuePeriod       Duration `yaml:"queuePeriod"`
	AssignPeriod      Duration `yaml:"assignPeriod"`
	RecoverPeriod     Duration `yaml:"recoverPeriod"`
}

// ScaleConfig controls the autoscaling control loop
type ScaleConfig struct {
	Enabled            bool     `yaml:"enabled"`
	MinNodes           int      `yaml:"minNodes"`
	MaxNodes           int      `yaml:"maxNodes"`
	CoolDownPeriod     Duration `yaml:"coolDownPeriod"`
	EvaluationPeriod   Duration `yaml:"evaluationPeriod"`
	ScaleDownThreshold int      `yaml:"scaleDownThreshold"` // percent
	ScaleUpThreshold   int      `yaml:"scaleUpThreshold"`   // percent
	ScaleUpStep        int      `yaml:"scaleUpStep"`
	ScaleDownStep      int      `yaml:"scaleDownStep"`
	ScalePeriod        Duration `yaml:"scalePeriod"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the full node configuration
type Config struct {
	Node         NodeConfig   `yaml:"node"`
	Leader       LeaderConfig `yaml:"leader"`
	Scale        ScaleConfig  `yaml:"scale"`
	Log          LogConfig    `yaml:"log"`
	ScheduleFile string       `yaml:"scheduleFile"`
	MetricsAddr  string       `yaml:"metricsAddr"`
}

// Default durations applied when the config file leaves them unset
const (
	defaultElectionPeriod = 10 * time.Second
	defaultRefreshPeriod  = 30 * time.Second
	defaultQueuePeriod    = 10 * time.Second
	defaultAssignPeriod   = 10 * time.Second
	defaultRecoverPeriod  = 30 * time.Second
	defaultScalePeriod    = 15 * time.Second
)

// Load reads and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Leader.ElectionPeriod == 0 {
		c.Leader.ElectionPeriod = Duration(defaultElectionPeriod)
	}
	if c.Leader.RefreshPeriod == 0 {
		c.Leader.RefreshPeriod = Duration(defaultRefreshPeriod)
	}
	if c.Leader.QueuePeriod == 0 {
		c.Leader.QueuePeriod = Duration(defaultQueuePeriod)
	}
	if c.Leader.AssignPeriod == 0 {
		c.Leader.AssignPeriod = Duration(defaultAssignPeriod)
	}
	if c.Leader.RecoverPeriod == 0 {
		c.Leader.RecoverPeriod = Duration(defaultRecoverPeriod)
	}
	if c.Scale.ScalePeriod == 0 {
		c.Scale.ScalePeriod = Duration(defaultScalePeriod)
	}
	if c.Node.DataDir == "" {
		c.Node.DataDir = "/var/lib/drover"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations that cannot run safely. A validation
// failure is fatal at startup.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id is required")
	}
	if c.Node.Group == "" {
		return fmt.Errorf("node.group is required")
	}
	if c.Leader.MaxWeightPerNode <= 0 {
		return fmt.Errorf("leader.maxWeightPerNode must be positive, got %d", c.Leader.MaxWeightPerNode)
	}
	if c.Leader.MinActiveNodes < 0 {
		return fmt.Errorf("leader.minActiveNodes must not be negative, got %d", c.Leader.MinActiveNodes)
	}
	if c.Leader.YoungestLeaderAge < 0 {
		return fmt.Errorf("leader.youngestLeaderAge must not be negative")
	}
	if c.Scale.Enabled {
		if c.Scale.MinNodes < 0 {
			return fmt.Errorf("scale.minNodes must not be negative, got %d", c.Scale.MinNodes)
		}
		if c.Scale.MaxNodes < c.Scale.MinNodes {
			return fmt.Errorf("scale.maxNodes (%d) must not be below scale.minNodes (%d)",
				c.Scale.MaxNodes, c.Scale.MinNodes)
		}
		if c.Scale.ScaleDownThreshold >= c.Scale.ScaleUpThreshold {
			return fmt.Errorf("scale.scaleDownThreshold (%d) must be below scale.scaleUpThreshold (%d)",
				c.Scale.ScaleDownThreshold, c.Scale.ScaleUpThreshold)
		}
		if c.Scale.ScaleUpStep <= 0 || c.Scale.ScaleDownStep <= 0 {
			return fmt.Errorf("scale steps must be positive")
		}
		if c.Scale.EvaluationPeriod <= 0 {
			return fmt.Errorf("scale.evaluationPeriod must be positive")
		}
		if c.Scale.CoolDownPeriod < 0 {
			return fmt.Errorf("scale.coolDownPeriod must not be negative")
		}
	}
	return nil
}
