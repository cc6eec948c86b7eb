package indicator

import (
	"breakout-scanner/internal/model"
	"breakout-scanner/internal/ringbuf"
)

// SMA calculates Simple Moving Average over a rolling window.
// Backed by a preallocated ring window; O(1) per update.
type SMA struct {
	period int
	win    *ringbuf.Window
	src    Source
	kind   string
}

// NewSMA creates an SMA of closing prices with the given period.
func NewSMA(period int) *SMA {
	return &SMA{period: period, win: ringbuf.New(period), src: Close, kind: "SMA"}
}

// NewVolumeAvg creates a simple rolling mean of bar volume.
func NewVolumeAvg(period int) *SMA {
	return &SMA{period: period, win: ringbuf.New(period), src: Volume, kind: "VOLAVG"}
}

func (s *SMA) Name() string { return name(s.kind, s.period) }

func (s *SMA) Update(bar model.Bar) { s.win.Push(s.src(bar)) }

func (s *SMA) Value() float64 { return s.win.Mean() }
func (s *SMA) Ready() bool    { return s.win.Full() }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() { s.win.Reset() }
