// Package strategy turns an indicator snapshot into a verdict.
//
// A Strategy is a pure function of one snapshot and the bar it was computed
// for. It keeps no state between calls, so one value can score any number of
// symbols concurrently.
package strategy

import (
	"fmt"
	"strings"

	"breakout-scanner/internal/model"
)

// Strategy is the interface every scoring rule set implements.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Evaluate scores the snapshot of the last bar. It never fails: inputs
	// that are not ready force the affected predicates to false.
	Evaluate(snap model.Snapshot, last model.Bar) model.Verdict
}

// SqueezeMode selects how the volatility squeeze predicate is formulated.
type SqueezeMode string

const (
	// SqueezeRollingMin: BB width below its rolling minimum times SqueezeMult.
	SqueezeRollingMin SqueezeMode = "rolling_min"
	// SqueezeMidBand: BB width relative to the middle band below SqueezeMidBandMax.
	SqueezeMidBand SqueezeMode = "mid_band"
)

// Thresholds are the tunable constants of the breakout rule set.
type Thresholds struct {
	EMAConvergenceMax float64     `yaml:"ema_convergence_max" json:"ema_convergence_max"`
	PricePinMax       float64     `yaml:"price_pin_max" json:"price_pin_max"`
	VolumeSurgeMult   float64     `yaml:"volume_surge_mult" json:"volume_surge_mult"`
	RSIMin            float64     `yaml:"rsi_min" json:"rsi_min"`
	SqueezeMode       SqueezeMode `yaml:"squeeze_mode" json:"squeeze_mode"`
	SqueezeMult       float64     `yaml:"squeeze_mult" json:"squeeze_mult"`
	SqueezeMidBandMax float64     `yaml:"squeeze_mid_band_max" json:"squeeze_mid_band_max"`
}

// DefaultThresholds returns the canonical breakout thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EMAConvergenceMax: 0.02,
		PricePinMax:       0.01,
		VolumeSurgeMult:   1.5,
		RSIMin:            55,
		SqueezeMode:       SqueezeRollingMin,
		SqueezeMult:       1.1,
		SqueezeMidBandMax: 0.05,
	}
}

// Validate rejects thresholds no series could meet or that make no sense.
func (t Thresholds) Validate() error {
	var bad []string
	if t.EMAConvergenceMax <= 0 {
		bad = append(bad, "ema_convergence_max")
	}
	if t.PricePinMax <= 0 {
		bad = append(bad, "price_pin_max")
	}
	if t.VolumeSurgeMult <= 0 {
		bad = append(bad, "volume_surge_mult")
	}
	if t.RSIMin < 0 || t.RSIMin >= 100 {
		bad = append(bad, "rsi_min")
	}
	switch t.SqueezeMode {
	case SqueezeRollingMin:
		if t.SqueezeMult <= 0 {
			bad = append(bad, "squeeze_mult")
		}
	case SqueezeMidBand:
		if t.SqueezeMidBandMax <= 0 {
			bad = append(bad, "squeeze_mid_band_max")
		}
	default:
		return fmt.Errorf("squeeze_mode: unknown mode %q", t.SqueezeMode)
	}
	if len(bad) > 0 {
		return fmt.Errorf("thresholds out of range: %s", strings.Join(bad, ", "))
	}
	return nil
}
