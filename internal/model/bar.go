// Package model holds the data types shared by the scanner: price bars,
// series, indicator snapshots, verdicts and the error taxonomy.
package model

import (
	"encoding/json"
	"time"
)

// Bar is one OHLCV price point. Prices are float64 in the instrument's quote
// currency; volume is an integer share/contract count.
type Bar struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is the chronological bar history of one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Bars) }

// Last returns the most recent bar. ok is false for an empty series.
func (s *Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Prefix returns a view of the first n bars. The bars are shared, not copied.
func (s *Series) Prefix(n int) Series {
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	return Series{Symbol: s.Symbol, Bars: s.Bars[:n]}
}

// JSON returns the JSON-encoded series (ignoring errors, all fields are plain values).
func (s *Series) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
