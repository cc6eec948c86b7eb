package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"breakout-scanner/internal/model"
)

func makeSeries(n int) model.Series {
	s := model.Series{Symbol: "TEST.NS", Bars: make([]model.Bar, n)}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range s.Bars {
		p := 100 + float64(i)
		s.Bars[i] = model.Bar{TS: start.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	return s
}

func TestValidate_Accepts(t *testing.T) {
	s := makeSeries(220)
	got, err := Validate(s, DefaultMinLookback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 220 || got.Symbol != "TEST.NS" {
		t.Errorf("series altered: len=%d symbol=%q", got.Len(), got.Symbol)
	}

	// Zero prices and zero volume are allowed.
	s.Bars[5].Volume = 0
	s.Bars[6].Low = 0
	if _, err := Validate(s, DefaultMinLookback); err != nil {
		t.Errorf("zero values rejected: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		n     int
		min   int
		edit  func(s *model.Series)
		want  error
		index int
	}{
		{"empty", 0, DefaultMinLookback, nil, model.ErrInsufficientHistory, -1},
		{"empty with zero lookback", 0, 0, nil, model.ErrInsufficientHistory, -1},
		{"short", 50, DefaultMinLookback, nil, model.ErrInsufficientHistory, -1},
		{"one short", 219, DefaultMinLookback, nil, model.ErrInsufficientHistory, -1},
		{"nan close", 220, DefaultMinLookback, func(s *model.Series) { s.Bars[10].Close = math.NaN() }, model.ErrMalformed, 10},
		{"inf high", 220, DefaultMinLookback, func(s *model.Series) { s.Bars[11].High = math.Inf(1) }, model.ErrMalformed, 11},
		{"negative open", 220, DefaultMinLookback, func(s *model.Series) { s.Bars[12].Open = -1 }, model.ErrMalformed, 12},
		{"negative volume", 220, DefaultMinLookback, func(s *model.Series) { s.Bars[13].Volume = -5 }, model.ErrMalformed, 13},
		{"duplicate timestamp", 220, DefaultMinLookback, func(s *model.Series) { s.Bars[14].TS = s.Bars[13].TS }, model.ErrMalformed, 14},
		{"backwards timestamp", 220, DefaultMinLookback, func(s *model.Series) { s.Bars[15].TS = s.Bars[0].TS }, model.ErrMalformed, 15},
		{"short and corrupt", 30, DefaultMinLookback, func(s *model.Series) { s.Bars[3].Close = math.NaN() }, model.ErrMalformed, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := makeSeries(tc.n)
			if tc.edit != nil {
				tc.edit(&s)
			}
			_, err := Validate(s, tc.min)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			var de *model.DataError
			if !errors.As(err, &de) {
				t.Fatalf("expected *model.DataError, got %T", err)
			}
			if de.Index != tc.index {
				t.Errorf("index: got %d, want %d", de.Index, tc.index)
			}
			if de.Symbol != "TEST.NS" {
				t.Errorf("symbol: got %q", de.Symbol)
			}
		})
	}
}

func TestValidator_MinLookback(t *testing.T) {
	if v := NewValidator(0); v.MinLookback != DefaultMinLookback {
		t.Errorf("default: got %d", v.MinLookback)
	}

	v := NewValidator(30)
	if _, err := v.Validate(makeSeries(30)); err != nil {
		t.Errorf("30 bars with lookback 30: %v", err)
	}
	_, err := v.Validate(makeSeries(29))
	if kind, _ := model.KindOf(err); kind != model.KindInsufficientHistory {
		t.Errorf("29 bars with lookback 30: got kind %q", kind)
	}
}
