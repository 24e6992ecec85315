package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode     string `yaml:"mode"`     // DRY_RUN or LIVE
	Strategy string `yaml:"strategy"` // registered strategy name

	Execution struct {
		CheckIntervalSeconds    int     `yaml:"check_interval_seconds"`
		CycleMarginSeconds      int     `yaml:"cycle_margin_seconds"`
		MaxPositions            int     `yaml:"max_positions"`
		MaxSignals              int     `yaml:"max_signals"`
		DefaultSignalTTLHours   int     `yaml:"default_signal_ttl_hours"`
		CooldownHours           int     `yaml:"cooldown_hours"`
		MaxRejectBeforeCooldown int     `yaml:"max_reject_before_cooldown"`
		RequeueOnCapacity       bool    `yaml:"requeue_on_capacity"`
		AnalyzeMode             bool    `yaml:"analyze_mode"`
		SignalCacheTTLSeconds   float64 `yaml:"signal_cache_ttl_seconds"`
		ClosedHistoryLimit      int     `yaml:"closed_history_limit"`
	} `yaml:"execution"`

	Broker struct {
		BaseURL           string `yaml:"base_url"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
		RateLimitPerMin   int    `yaml:"rate_limit_per_min"`
		MaxRetryAttempts  int    `yaml:"max_retry_attempts"`
		CancelPollSeconds int    `yaml:"cancel_poll_seconds"`
	} `yaml:"broker"`

	State struct {
		Path string `yaml:"path"`
	} `yaml:"state"`

	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Strategy == "" {
		return fmt.Errorf("strategy must be set")
	}
	if c.Execution.MaxPositions <= 0 {
		return fmt.Errorf("execution.max_positions must be positive, got %d", c.Execution.MaxPositions)
	}
	if c.Execution.MaxSignals <= 0 {
		return fmt.Errorf("execution.max_signals must be positive, got %d", c.Execution.MaxSignals)
	}
	if c.Execution.CheckIntervalSeconds <= c.Execution.CycleMarginSeconds {
		return fmt.Errorf("execution.check_interval_seconds (%d) must exceed cycle_margin_seconds (%d)",
			c.Execution.CheckIntervalSeconds, c.Execution.CycleMarginSeconds)
	}
	if c.Execution.MaxRejectBeforeCooldown <= 0 {
		return fmt.Errorf("execution.max_reject_before_cooldown must be positive, got %d",
			c.Execution.MaxRejectBeforeCooldown)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

// ApplyDefaults fills zero-valued settings with operational defaults.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Strategy == "" {
		c.Strategy = "momentum"
	}
	if c.Execution.CheckIntervalSeconds == 0 {
		c.Execution.CheckIntervalSeconds = 120
	}
	if c.Execution.CycleMarginSeconds == 0 {
		c.Execution.CycleMarginSeconds = 10
	}
	if c.Execution.MaxPositions == 0 {
		c.Execution.MaxPositions = 10
	}
	if c.Execution.MaxSignals == 0 {
		c.Execution.MaxSignals = 100
	}
	if c.Execution.DefaultSignalTTLHours == 0 {
		c.Execution.DefaultSignalTTLHours = 4
	}
	if c.Execution.CooldownHours == 0 {
		c.Execution.CooldownHours = 3
	}
	if c.Execution.MaxRejectBeforeCooldown == 0 {
		c.Execution.MaxRejectBeforeCooldown = 3
	}
	if c.Execution.SignalCacheTTLSeconds == 0 {
		c.Execution.SignalCacheTTLSeconds = 300
	}
	if c.Execution.ClosedHistoryLimit == 0 {
		c.Execution.ClosedHistoryLimit = 100
	}
	if c.Broker.TimeoutSeconds == 0 {
		c.Broker.TimeoutSeconds = 30
	}
	if c.Broker.RateLimitPerMin == 0 {
		c.Broker.RateLimitPerMin = 200
	}
	if c.Broker.MaxRetryAttempts == 0 {
		c.Broker.MaxRetryAttempts = 3
	}
	if c.Broker.CancelPollSeconds == 0 {
		c.Broker.CancelPollSeconds = 2
	}
	if c.State.Path == "" {
		c.State.Path = "./engine-state.json"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9464"
	}
}
