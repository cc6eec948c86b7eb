package indicator

import (
	"breakout-scanner/internal/model"
	"breakout-scanner/internal/ringbuf"
)

// RollingMin is the minimum of another indicator's last period defined values.
// Bars where the input is still warming up are skipped, so the result is
// ready period-1 bars after the input first becomes ready.
type RollingMin struct {
	period int
	input  Indicator
	win    *ringbuf.Window
}

// NewRollingMin tracks the rolling minimum of input. The caller still owns
// input and must Update it before this indicator on every bar.
func NewRollingMin(period int, input Indicator) *RollingMin {
	return &RollingMin{period: period, input: input, win: ringbuf.New(period)}
}

func (r *RollingMin) Name() string { return name("MIN("+r.input.Name()+")", r.period) }

func (r *RollingMin) Update(_ model.Bar) {
	if !r.input.Ready() {
		return
	}
	r.win.Push(r.input.Value())
}

func (r *RollingMin) Value() float64 { return r.win.Min() }
func (r *RollingMin) Ready() bool    { return r.win.Full() }
