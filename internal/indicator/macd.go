package indicator

import (
	"fmt"

	"breakout-scanner/internal/model"
)

// MACD tracks the difference of a fast and slow close EMA (the MACD line)
// and an EMA of that line (the signal line).
//
// The signal EMA only starts receiving input once the line is defined, so it
// becomes ready slow+signal-1 bars into the series.
type MACD struct {
	fast, slow, signal int

	fastEMA   *EMA
	slowEMA   *EMA
	signalEMA *EMA

	line float64
}

// NewMACD creates a MACD with the given fast, slow and signal periods.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:      fast,
		slow:      slow,
		signal:    signal,
		fastEMA:   NewEMA(fast),
		slowEMA:   NewEMA(slow),
		signalEMA: NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fast, m.slow, m.signal)
}

func (m *MACD) Update(bar model.Bar) {
	m.fastEMA.Update(bar)
	m.slowEMA.Update(bar)
	if !m.Ready() {
		return
	}
	m.line = m.fastEMA.Value() - m.slowEMA.Value()
	m.signalEMA.Add(m.line)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.line }

// Ready reports whether the MACD line is defined.
func (m *MACD) Ready() bool { return m.fastEMA.Ready() && m.slowEMA.Ready() }

// Signal returns the signal line, not-ready until its own window fills.
func (m *MACD) Signal() model.Value {
	if !m.Ready() || !m.signalEMA.Ready() {
		return model.None
	}
	return model.Some(m.signalEMA.Value())
}

// Histogram returns line minus signal.
func (m *MACD) Histogram() model.Value {
	sig, ok := m.Signal().Get()
	if !ok {
		return model.None
	}
	return model.Some(m.line - sig)
}
