package strategy

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable parameters for a strategy. Common fields
// apply to every strategy; the Breakout and MeanReversion sections are
// read only by their strategies.
type Config struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	MaxPositionPct   float64 `yaml:"max_position_pct"`
	MinPositionValue float64 `yaml:"min_position_value"`

	StopLossPct float64 `yaml:"stop_loss_pct"`
	TargetPct   float64 `yaml:"target_pct"`

	MinConfidence float64 `yaml:"min_confidence"`
	MinTAScore    float64 `yaml:"min_ta_score"`
	MinMomentum   float64 `yaml:"min_momentum"`

	ExitMomentumThreshold float64 `yaml:"exit_momentum_threshold"`
	ExitScoreThreshold    float64 `yaml:"exit_score_threshold"`
	CatastrophicMomentum  float64 `yaml:"catastrophic_momentum"`

	CooldownHours int `yaml:"cooldown_hours"`
	MaxHoldDays   int `yaml:"max_hold_days"`

	Breakout struct {
		ConsolidationPeriods  int     `yaml:"consolidation_periods"`
		ConsolidationRangePct float64 `yaml:"consolidation_range_pct"`
		MinVolumeRatio        float64 `yaml:"min_volume_ratio"`
		BreakoutBufferPct     float64 `yaml:"breakout_buffer_pct"`
		TargetMultiple        float64 `yaml:"target_multiple"`
		MinATR                float64 `yaml:"min_atr"`
		MaxFalseBreakouts     int     `yaml:"max_false_breakouts"`
		RiskPctPerTrade       float64 `yaml:"risk_pct_per_trade"`
	} `yaml:"breakout"`

	MeanReversion struct {
		RSIOversold        float64 `yaml:"rsi_oversold"`
		RSIOverbought      float64 `yaml:"rsi_overbought"`
		RSIExitThreshold   float64 `yaml:"rsi_exit_threshold"`
		BBStd              float64 `yaml:"bb_std"`
		MeanPeriod         int     `yaml:"mean_period"`
		DeviationThreshold float64 `yaml:"deviation_threshold"`
		RiskPctPerTrade    float64 `yaml:"risk_pct_per_trade"`
		MaxHoldHours       int     `yaml:"max_hold_hours"`
		StopLossStd        float64 `yaml:"stop_loss_std"`
		MinVolumeRatio     float64 `yaml:"min_volume_ratio"`
		TrendFilterPeriod  int     `yaml:"trend_filter_period"`
	} `yaml:"mean_reversion"`
}

// DefaultConfig returns the baseline configuration shared by all
// strategies.
func DefaultConfig() *Config {
	c := &Config{
		Name:                  "default",
		Description:           "Default trading strategy configuration",
		MaxPositionPct:        0.05,
		MinPositionValue:      100.0,
		StopLossPct:           0.03,
		TargetPct:             0.09,
		MinConfidence:         70.0,
		MinTAScore:            0.6,
		MinMomentum:           -3.0,
		ExitMomentumThreshold: -15.0,
		ExitScoreThreshold:    0.3,
		CatastrophicMomentum:  -25.0,
		CooldownHours:         3,
		MaxHoldDays:           5,
	}

	c.Breakout.ConsolidationPeriods = 20
	c.Breakout.ConsolidationRangePct = 0.05
	c.Breakout.MinVolumeRatio = 1.5
	c.Breakout.BreakoutBufferPct = 0.002
	c.Breakout.TargetMultiple = 2.0
	c.Breakout.MinATR = 0.5
	c.Breakout.MaxFalseBreakouts = 2
	c.Breakout.RiskPctPerTrade = 0.02

	c.MeanReversion.RSIOversold = 30.0
	c.MeanReversion.RSIOverbought = 70.0
	c.MeanReversion.RSIExitThreshold = 50.0
	c.MeanReversion.BBStd = 2.0
	c.MeanReversion.MeanPeriod = 20
	c.MeanReversion.DeviationThreshold = 2.0
	c.MeanReversion.RiskPctPerTrade = 0.015
	c.MeanReversion.MaxHoldHours = 48
	c.MeanReversion.StopLossStd = 3.0
	c.MeanReversion.MinVolumeRatio = 1.2
	c.MeanReversion.TrendFilterPeriod = 50

	return c
}

// Validate checks the config for logical consistency.
func (c *Config) Validate() error {
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_pct must be in (0, 1], got %.3f", c.MaxPositionPct)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0, 1), got %.3f", c.StopLossPct)
	}
	if c.TargetPct <= c.StopLossPct {
		return fmt.Errorf("target_pct (%.3f) must exceed stop_loss_pct (%.3f)", c.TargetPct, c.StopLossPct)
	}
	if c.MinTAScore < 0 || c.MinTAScore > 1 {
		return fmt.Errorf("min_ta_score must be in [0, 1], got %.3f", c.MinTAScore)
	}
	if c.ExitScoreThreshold > c.MinTAScore {
		return fmt.Errorf("exit_score_threshold (%.3f) must not exceed min_ta_score (%.3f)",
			c.ExitScoreThreshold, c.MinTAScore)
	}
	if c.ExitMomentumThreshold > c.MinMomentum {
		return fmt.Errorf("exit_momentum_threshold (%.1f) must not exceed min_momentum (%.1f)",
			c.ExitMomentumThreshold, c.MinMomentum)
	}
	if c.CatastrophicMomentum > c.ExitMomentumThreshold {
		return fmt.Errorf("catastrophic_momentum (%.1f) must not exceed exit_momentum_threshold (%.1f)",
			c.CatastrophicMomentum, c.ExitMomentumThreshold)
	}
	if c.CooldownHours < 0 {
		return fmt.Errorf("cooldown_hours must be non-negative, got %d", c.CooldownHours)
	}
	if c.Breakout.ConsolidationPeriods < 5 {
		return fmt.Errorf("breakout.consolidation_periods must be at least 5, got %d",
			c.Breakout.ConsolidationPeriods)
	}
	if c.Breakout.MinVolumeRatio < 1.0 {
		return fmt.Errorf("breakout.min_volume_ratio must be at least 1.0, got %.2f",
			c.Breakout.MinVolumeRatio)
	}
	if c.Breakout.TargetMultiple < 1.0 {
		return fmt.Errorf("breakout.target_multiple must be at least 1.0, got %.2f",
			c.Breakout.TargetMultiple)
	}
	if c.MeanReversion.RSIOversold >= c.MeanReversion.RSIOverbought {
		return fmt.Errorf("mean_reversion rsi_oversold (%.1f) must be below rsi_overbought (%.1f)",
			c.MeanReversion.RSIOversold, c.MeanReversion.RSIOverbought)
	}
	return nil
}

// LoadConfig reads a strategy config from YAML, applying defaults for
// unset fields.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse strategy config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("strategy config %s: %w", path, err)
	}
	return c, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
