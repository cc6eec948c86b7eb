package strategy

import (
	"math"
	"strings"

	"breakout-scanner/internal/model"
)

// Breakout fires when trend, price, volume, momentum and volatility all line
// up on the last bar:
//
//	P1 EMAs converged:      (max(EMA) - min(EMA)) / min(EMA) < EMAConvergenceMax
//	P2 price pinned:        |close - EMA50| / close < PricePinMax
//	P3 volume surge:        volume > VolumeSurgeMult * VolumeAvg
//	P4 MACD bullish:        MACD > signal
//	P5 RSI momentum:        RSI > RSIMin
//	P6 volatility squeeze:  width < RollingMinWidth * SqueezeMult (or width/middle < SqueezeMidBandMax)
type Breakout struct {
	th Thresholds
}

// NewBreakout creates the breakout rule set. th must pass Validate.
func NewBreakout(th Thresholds) *Breakout {
	return &Breakout{th: th}
}

func (b *Breakout) Name() string { return "breakout" }

// Thresholds returns the active thresholds.
func (b *Breakout) Thresholds() Thresholds { return b.th }

// Evaluate scores one snapshot. The returned verdict has no symbol set.
func (b *Breakout) Evaluate(snap model.Snapshot, last model.Bar) model.Verdict {
	p := model.Predicates{
		EMAConvergence:    b.emaConvergence(snap),
		PricePinned:       b.pricePinned(snap, last),
		VolumeSurge:       b.volumeSurge(snap, last),
		MACDBullish:       macdBullish(snap),
		RSIMomentum:       b.rsiMomentum(snap),
		VolatilitySqueeze: b.squeeze(snap),
	}
	v := model.Verdict{Fire: p.All(), Predicates: p}
	v.Reason = b.Reason(v)
	return v
}

// Reason summarises which predicates failed.
func (b *Breakout) Reason(v model.Verdict) string {
	if v.Fire {
		return ""
	}
	failing := v.Predicates.Failing()
	if len(failing) == 0 {
		return "no-fire"
	}
	return "no-fire: " + strings.Join(failing, ", ")
}

func (b *Breakout) emaConvergence(snap model.Snapshot) bool {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range snap.EMAs() {
		v, ok := e.Get()
		if !ok {
			return false
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo <= 0 {
		return false
	}
	return (hi-lo)/lo < b.th.EMAConvergenceMax
}

func (b *Breakout) pricePinned(snap model.Snapshot, last model.Bar) bool {
	ema50, ok := snap.EMA50.Get()
	if !ok || last.Close <= 0 {
		return false
	}
	return math.Abs(last.Close-ema50)/last.Close < b.th.PricePinMax
}

func (b *Breakout) volumeSurge(snap model.Snapshot, last model.Bar) bool {
	avg, ok := snap.VolumeAvg.Get()
	if !ok {
		return false
	}
	return float64(last.Volume) > b.th.VolumeSurgeMult*avg
}

func macdBullish(snap model.Snapshot) bool {
	line, ok1 := snap.MACD.Get()
	sig, ok2 := snap.MACDSignal.Get()
	return ok1 && ok2 && line > sig
}

func (b *Breakout) rsiMomentum(snap model.Snapshot) bool {
	rsi, ok := snap.RSI.Get()
	return ok && rsi > b.th.RSIMin
}

func (b *Breakout) squeeze(snap model.Snapshot) bool {
	width, ok := snap.BBWidth.Get()
	if !ok {
		return false
	}
	if b.th.SqueezeMode == SqueezeMidBand {
		mid, ok := snap.BBMiddle.Get()
		if !ok || mid <= 0 {
			return false
		}
		return width/mid < b.th.SqueezeMidBandMax
	}
	floor, ok := snap.RollingMinWidth.Get()
	return ok && width < floor*b.th.SqueezeMult
}
