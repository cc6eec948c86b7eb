package indicator

import "breakout-scanner/internal/model"

// Bank is the full breakout indicator set, updated one bar at a time.
// Not safe for concurrent use; build one Bank per series.
type Bank struct {
	emas    [5]*EMA
	macd    *MACD
	rsi     *RSI
	bb      *Bollinger
	vol     *SMA
	squeeze *RollingMin

	index int
	last  model.Bar
}

// NewBank builds a bank for the given windows. w must pass Validate.
func NewBank(w Windows) *Bank {
	b := &Bank{
		macd:  NewMACD(w.MACDFast, w.MACDSlow, w.MACDSignal),
		rsi:   NewRSI(w.RSI),
		bb:    NewBollinger(w.BBPeriod, w.BBStdDev),
		vol:   NewVolumeAvg(w.Volume),
		index: -1,
	}
	for i := range b.emas {
		b.emas[i] = NewEMA(w.EMAPeriods[i])
	}
	b.squeeze = NewRollingMin(w.Squeeze, b.bb)
	return b
}

// Update feeds the next bar to every indicator.
func (b *Bank) Update(bar model.Bar) {
	for _, e := range b.emas {
		e.Update(bar)
	}
	b.macd.Update(bar)
	b.rsi.Update(bar)
	b.bb.Update(bar)
	b.vol.Update(bar)
	// Must follow bb: it samples the width of the current bar.
	b.squeeze.Update(bar)

	b.index++
	b.last = bar
}

// Indicators lists the bank's primary indicators, for logging and tests.
func (b *Bank) Indicators() []Indicator {
	out := make([]Indicator, 0, 10)
	for _, e := range b.emas {
		out = append(out, e)
	}
	return append(out, b.macd, b.rsi, b.bb, b.vol, b.squeeze)
}

// Snapshot returns the values as of the last bar passed to Update.
func (b *Bank) Snapshot() model.Snapshot {
	upper, middle, lower := b.bb.Bands()
	return model.Snapshot{
		Index:      b.index,
		TS:         b.last.TS,
		Close:      b.last.Close,
		Volume:     b.last.Volume,
		EMA10:      Tagged(b.emas[0]),
		EMA20:      Tagged(b.emas[1]),
		EMA50:      Tagged(b.emas[2]),
		EMA100:     Tagged(b.emas[3]),
		EMA200:     Tagged(b.emas[4]),
		MACD:       Tagged(b.macd),
		MACDSignal: b.macd.Signal(),
		RSI:        Tagged(b.rsi),
		BBUpper:    upper,
		BBMiddle:   middle,
		BBLower:    lower,
		BBWidth:    b.bb.Width(),
		VolumeAvg:  Tagged(b.vol),

		RollingMinWidth: Tagged(b.squeeze),
	}
}

// Compute runs the bank over the whole series and returns the snapshot of
// its last bar. An empty series yields an all-not-ready snapshot with Index -1.
func Compute(s model.Series, w Windows) model.Snapshot {
	b := NewBank(w)
	for _, bar := range s.Bars {
		b.Update(bar)
	}
	return b.Snapshot()
}

// Walk runs the bank over the series and calls fn with the snapshot after
// every bar. fn sees exactly what Compute would return for the prefix s[:i+1].
func Walk(s model.Series, w Windows, fn func(i int, snap model.Snapshot)) {
	b := NewBank(w)
	for i, bar := range s.Bars {
		b.Update(bar)
		fn(i, b.Snapshot())
	}
}
