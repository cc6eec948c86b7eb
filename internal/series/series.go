// Package series checks that a price history is usable before any indicator
// touches it.
package series

import (
	"fmt"
	"math"
	"time"

	"breakout-scanner/internal/model"
)

// DefaultMinLookback is the shortest series that yields a fully defined
// verdict: 200 bars for EMA200 plus 20 for the rolling minimum of BB width.
const DefaultMinLookback = 220

// Validator rejects series that are malformed or too short.
type Validator struct {
	MinLookback int
}

// NewValidator returns a Validator. A non-positive minLookback means
// DefaultMinLookback.
func NewValidator(minLookback int) Validator {
	if minLookback <= 0 {
		minLookback = DefaultMinLookback
	}
	return Validator{MinLookback: minLookback}
}

// Validate returns s unchanged when it is usable, or a *model.DataError.
func (v Validator) Validate(s model.Series) (model.Series, error) {
	return Validate(s, v.MinLookback)
}

// Validate checks every bar, then the length. Corruption is reported in
// preference to shortness.
func Validate(s model.Series, minLookback int) (model.Series, error) {
	if len(s.Bars) == 0 {
		return model.Series{}, &model.DataError{
			Kind: model.KindInsufficientHistory, Symbol: s.Symbol, Index: -1,
			Msg: "empty series",
		}
	}

	for i, b := range s.Bars {
		if msg := checkBar(b); msg != "" {
			return model.Series{}, malformed(s.Symbol, i, msg)
		}
		if i > 0 && !b.TS.After(s.Bars[i-1].TS) {
			return model.Series{}, malformed(s.Symbol, i,
				fmt.Sprintf("timestamp %s not after %s",
					b.TS.Format(time.RFC3339), s.Bars[i-1].TS.Format(time.RFC3339)))
		}
	}

	if len(s.Bars) < minLookback {
		return model.Series{}, &model.DataError{
			Kind: model.KindInsufficientHistory, Symbol: s.Symbol, Index: -1,
			Msg: fmt.Sprintf("%d bars, need %d", len(s.Bars), minLookback),
		}
	}
	return s, nil
}

func checkBar(b model.Bar) string {
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	} {
		switch {
		case math.IsNaN(p.v):
			return p.name + " is NaN"
		case math.IsInf(p.v, 0):
			return p.name + " is infinite"
		case p.v < 0:
			return fmt.Sprintf("negative %s %g", p.name, p.v)
		}
	}
	if b.Volume < 0 {
		return fmt.Sprintf("negative volume %d", b.Volume)
	}
	return ""
}

func malformed(symbol string, index int, msg string) error {
	return &model.DataError{Kind: model.KindMalformed, Symbol: symbol, Index: index, Msg: msg}
}
