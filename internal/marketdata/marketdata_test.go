package marketdata

import (
	"context"
	"errors"
	"testing"

	"breakout-scanner/internal/model"
)

func stub(name string, calls *[]string) Fetcher {
	return FetcherFunc{Provider: name, Fn: func(_ context.Context, symbol string) (model.Series, error) {
		*calls = append(*calls, name+"|"+symbol)
		if symbol == "MISSING" {
			return model.Series{}, ErrNoData
		}
		return model.Series{Symbol: symbol, Bars: []model.Bar{{Close: 1}}}, nil
	}}
}

func TestRouter_Dispatch(t *testing.T) {
	var calls []string
	r := NewRouter(stub("yahoo", &calls))
	r.Handle("binance", stub("binance", &calls))

	cases := []struct {
		symbol string
		call   string
	}{
		{"RELIANCE.NS", "yahoo|RELIANCE.NS"},
		{"binance:BTCUSDT", "binance|BTCUSDT"},
		{"BINANCE:ETHUSDT", "binance|ETHUSDT"},
		{"unknown:XYZ", "yahoo|unknown:XYZ"},
	}
	for _, tc := range cases {
		calls = nil
		s, err := r.Fetch(context.Background(), tc.symbol)
		if err != nil {
			t.Fatalf("%s: %v", tc.symbol, err)
		}
		if s.Symbol != tc.symbol {
			t.Errorf("%s: series symbol %q", tc.symbol, s.Symbol)
		}
		if len(calls) != 1 || calls[0] != tc.call {
			t.Errorf("%s: calls %v, want [%s]", tc.symbol, calls, tc.call)
		}
	}
}

func TestProviderFor(t *testing.T) {
	var calls []string
	r := NewRouter(stub("yahoo", &calls))
	r.Handle("angel", stub("angelone", &calls))

	cases := []struct {
		f               Fetcher
		symbol          string
		provider, local string
	}{
		{r, "TCS.NS", "yahoo", "TCS.NS"},
		{r, "angel:SBIN-EQ", "angelone", "SBIN-EQ"},
		{r, "nope:X", "yahoo", "nope:X"},
		{NewRouter(nil), "X", "router", "X"},
		{stub("sqlite", &calls), "X", "sqlite", "X"},
	}
	for _, tc := range cases {
		p, l := ProviderFor(tc.f, tc.symbol)
		if p != tc.provider || l != tc.local {
			t.Errorf("%s: got (%s, %s), want (%s, %s)", tc.symbol, p, l, tc.provider, tc.local)
		}
	}
	if len(calls) != 0 {
		t.Errorf("resolving fetched: %v", calls)
	}
}

func TestRouter_WrapsErrors(t *testing.T) {
	var calls []string
	r := NewRouter(stub("yahoo", &calls))

	_, err := r.Fetch(context.Background(), "MISSING")
	if !errors.Is(err, model.ErrFetchFailure) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	if !errors.Is(err, ErrNoData) {
		t.Errorf("cause lost: %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Provider != "yahoo" || fe.Symbol != "MISSING" {
		t.Errorf("unexpected fetch error: %+v", fe)
	}
	if kind, _ := model.KindOf(err); kind != model.KindFetchFailure {
		t.Errorf("kind: got %q", kind)
	}
}

func TestWrap_KeepsExisting(t *testing.T) {
	inner := &FetchError{Provider: "binance", Symbol: "BTCUSDT", Err: ErrNoData}
	if got := Wrap("router", "binance:BTCUSDT", inner); got != error(inner) {
		t.Errorf("Wrap re-wrapped an existing FetchError: %v", got)
	}
	if Wrap("x", "y", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}
