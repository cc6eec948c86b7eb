// Package indicator provides technical indicator calculations over price bars.
//
// Every indicator is incremental: it is fed one bar at a time through Update
// and only ever sees the bars up to and including the current one, so values
// are causal by construction. An indicator reports Ready() == false until its
// window is fully populated; callers must treat Value() as undefined until then.
package indicator

import (
	"strconv"

	"breakout-scanner/internal/model"
)

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_50", "RSI_14").
	Name() string

	// Update feeds the next bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current value. Meaningless until Ready.
	Value() float64

	// Ready returns true when enough bars have been accumulated.
	Ready() bool
}

// Source extracts the input value of an indicator from a bar.
type Source func(model.Bar) float64

// Close selects the closing price.
func Close(b model.Bar) float64 { return b.Close }

// Volume selects the traded volume.
func Volume(b model.Bar) float64 { return float64(b.Volume) }

// Tagged converts an indicator's current reading into a model.Value.
func Tagged(ind Indicator) model.Value {
	if !ind.Ready() {
		return model.None
	}
	return model.Some(ind.Value())
}

func name(kind string, period int) string {
	return kind + "_" + strconv.Itoa(period)
}
