package indicator

import "breakout-scanner/internal/model"

// EMA calculates Exponential Moving Average.
// O(1) per update, no window storage.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
	src        Source
}

// NewEMA creates an EMA of closing prices with the given period.
func NewEMA(period int) *EMA {
	return NewEMAOf(period, Close)
}

// NewEMAOf creates an EMA over an arbitrary bar source.
func NewEMAOf(period int, src Source) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
		src:        src,
	}
}

func (e *EMA) Name() string { return name("EMA", e.period) }

func (e *EMA) Update(bar model.Bar) { e.Add(e.src(bar)) }

// Add feeds a raw value. Used when the input is itself derived (MACD signal).
func (e *EMA) Add(x float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += x
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA_t = EMA_{t-1} + k * (x - EMA_{t-1})
	e.current += e.multiplier * (x - e.current)
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}
