package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Value is an indicator reading tagged with readiness. A Value that is not
// Ready carries no number: warm-up is never reported as zero.
type Value struct {
	V     float64
	Ready bool
}

// Some returns a ready Value. NaN and ±Inf are not readings and yield None.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return None
	}
	return Value{V: v, Ready: true}
}

// None is the not-yet-available Value.
var None = Value{}

// Get returns the number and whether it is available.
func (v Value) Get() (float64, bool) { return v.V, v.Ready }

// MarshalJSON encodes a not-ready or non-finite value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Ready || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.V, 'g', -1, 64), nil
}

// UnmarshalJSON decodes null as a not-ready value.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = None
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Snapshot holds every indicator value computed for a single bar, along with
// that bar's close and volume.
type Snapshot struct {
	Index  int       `json:"index"` // 0-based bar index within the series
	TS     time.Time `json:"ts"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`

	EMA10  Value `json:"ema10"`
	EMA20  Value `json:"ema20"`
	EMA50  Value `json:"ema50"`
	EMA100 Value `json:"ema100"`
	EMA200 Value `json:"ema200"`

	MACD       Value `json:"macd"`
	MACDSignal Value `json:"macd_signal"`
	RSI        Value `json:"rsi"`

	BBUpper  Value `json:"bb_upper"`
	BBMiddle Value `json:"bb_middle"`
	BBLower  Value `json:"bb_lower"`
	BBWidth  Value `json:"bb_width"`

	VolumeAvg       Value `json:"volume_avg"`
	RollingMinWidth Value `json:"rolling_min_width"`
}

// EMAs returns the five trend EMAs, shortest window first.
func (s *Snapshot) EMAs() [5]Value {
	return [5]Value{s.EMA10, s.EMA20, s.EMA50, s.EMA100, s.EMA200}
}
