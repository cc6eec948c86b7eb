// Package scanner composes validation, indicator computation and scoring
// into a per-symbol pipeline, and runs that pipeline over many symbols.
package scanner

import (
	"fmt"

	"breakout-scanner/internal/indicator"
	"breakout-scanner/internal/model"
	"breakout-scanner/internal/series"
	"breakout-scanner/internal/strategy"
)

// EngineConfig holds the tunables of the per-symbol pipeline. Zero fields
// take their defaults.
type EngineConfig struct {
	Windows     indicator.Windows   `yaml:"windows" json:"windows"`
	Thresholds  strategy.Thresholds `yaml:"thresholds" json:"thresholds"`
	MinLookback int                 `yaml:"min_lookback" json:"min_lookback"`
}

// DefaultEngineConfig returns the canonical windows and thresholds with the
// 220-bar minimum lookback.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Windows:     indicator.DefaultWindows(),
		Thresholds:  strategy.DefaultThresholds(),
		MinLookback: series.DefaultMinLookback,
	}
}

// Validate checks windows and thresholds.
func (c EngineConfig) Validate() error {
	if err := c.Windows.Validate(); err != nil {
		return fmt.Errorf("windows: %w", err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.MinLookback < 0 {
		return fmt.Errorf("min_lookback: must not be negative, got %d", c.MinLookback)
	}
	return nil
}

// Engine turns one series into one verdict. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	cfg       EngineConfig
	validator series.Validator
	strategy  strategy.Strategy
}

// NewEngine builds an engine scoring with the breakout strategy.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		cfg:       cfg,
		validator: series.NewValidator(cfg.MinLookback),
		strategy:  strategy.NewBreakout(cfg.Thresholds),
	}, nil
}

// Config returns the active configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Evaluate validates s, computes the indicator snapshot of its last bar and
// scores it. On a validation failure the returned verdict is the error
// verdict for s and err is the *model.DataError; no indicator is computed.
func (e *Engine) Evaluate(s model.Series) (model.Verdict, error) {
	valid, err := e.validator.Validate(s)
	if err != nil {
		return ErrorVerdict(s.Symbol, err), err
	}

	snap := indicator.Compute(valid, e.cfg.Windows)
	last, _ := valid.Last()

	v := e.strategy.Evaluate(snap, last)
	v.Symbol = s.Symbol
	v.Snapshot = &snap
	return v, nil
}

// ErrorVerdict is the no-fire verdict reported for a symbol that could not be
// scored. Errors without a model.ErrorKind are reported as fetch failures.
func ErrorVerdict(symbol string, err error) model.Verdict {
	kind, ok := model.KindOf(err)
	if !ok {
		kind = model.KindFetchFailure
	}
	return model.Verdict{
		Symbol: symbol,
		Reason: err.Error(),
		Error:  kind,
	}
}
