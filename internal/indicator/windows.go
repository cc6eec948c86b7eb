package indicator

import (
	"errors"
	"fmt"
)

// Windows holds every lookback used by the indicator bank.
type Windows struct {
	EMAPeriods []int   `yaml:"ema_periods" json:"ema_periods"` // exactly five, shortest first
	MACDFast   int     `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal" json:"macd_signal"`
	RSI        int     `yaml:"rsi" json:"rsi"`
	BBPeriod   int     `yaml:"bb_period" json:"bb_period"`
	BBStdDev   float64 `yaml:"bb_stddev" json:"bb_stddev"`
	Volume     int     `yaml:"volume" json:"volume"`
	Squeeze    int     `yaml:"squeeze" json:"squeeze"`
}

// DefaultWindows returns the standard breakout windows.
func DefaultWindows() Windows {
	return Windows{
		EMAPeriods: []int{10, 20, 50, 100, 200},
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		RSI:        14,
		BBPeriod:   20,
		BBStdDev:   2,
		Volume:     10,
		Squeeze:    20,
	}
}

// Validate rejects window sets the bank cannot be built from.
func (w Windows) Validate() error {
	if len(w.EMAPeriods) != 5 {
		return fmt.Errorf("ema_periods: need 5 periods, got %d", len(w.EMAPeriods))
	}
	for i, p := range w.EMAPeriods {
		if p < 1 {
			return fmt.Errorf("ema_periods[%d]: must be positive, got %d", i, p)
		}
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"macd_fast", w.MACDFast},
		{"macd_slow", w.MACDSlow},
		{"macd_signal", w.MACDSignal},
		{"rsi", w.RSI},
		{"bb_period", w.BBPeriod},
		{"volume", w.Volume},
		{"squeeze", w.Squeeze},
	} {
		if f.v < 1 {
			return fmt.Errorf("%s: must be positive, got %d", f.name, f.v)
		}
	}
	if w.MACDFast >= w.MACDSlow {
		return errors.New("macd_fast must be shorter than macd_slow")
	}
	if w.BBStdDev <= 0 {
		return fmt.Errorf("bb_stddev: must be positive, got %g", w.BBStdDev)
	}
	return nil
}

// Lookback returns the number of bars after which every indicator is ready.
func (w Windows) Lookback() int {
	n := 0
	for _, p := range w.EMAPeriods {
		n = max(n, p)
	}
	n = max(n, w.MACDSlow+w.MACDSignal-1)
	n = max(n, w.RSI+1)
	n = max(n, w.Volume)
	n = max(n, w.BBPeriod+w.Squeeze-1)
	return n
}
