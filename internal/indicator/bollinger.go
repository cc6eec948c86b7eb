package indicator

import (
	"fmt"

	"breakout-scanner/internal/model"
	"breakout-scanner/internal/ringbuf"
)

// Bollinger computes Bollinger Bands: SMA(period) ± k population std-devs.
type Bollinger struct {
	period int
	k      float64
	win    *ringbuf.Window

	middle, sd float64
}

// NewBollinger creates Bollinger Bands over closes.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, win: ringbuf.New(period)}
}

func (b *Bollinger) Name() string { return fmt.Sprintf("BB_%d_%g", b.period, b.k) }

func (b *Bollinger) Update(bar model.Bar) {
	b.win.Push(bar.Close)
	if !b.win.Full() {
		return
	}
	b.middle = b.win.Mean()
	b.sd = b.win.PopStdDev(b.middle)
}

// Value returns the band width, upper minus lower.
func (b *Bollinger) Value() float64 { return 2 * b.k * b.sd }
func (b *Bollinger) Ready() bool    { return b.win.Full() }

// Bands returns upper, middle and lower bands.
func (b *Bollinger) Bands() (upper, middle, lower model.Value) {
	if !b.Ready() {
		return model.None, model.None, model.None
	}
	off := b.k * b.sd
	return model.Some(b.middle + off), model.Some(b.middle), model.Some(b.middle - off)
}

// Width returns upper minus lower as a tagged value.
func (b *Bollinger) Width() model.Value { return Tagged(b) }
