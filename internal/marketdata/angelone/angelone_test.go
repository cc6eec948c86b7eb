package angelone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
)

type fakeSmartAPI struct {
	logins   int32
	searches int32
	candles  int32
	// expireOnce makes the first candle request fail with an expired token.
	expireOnce atomic.Bool
}

func reply(w http.ResponseWriter, status bool, code string, data any) {
	json.NewEncoder(w).Encode(map[string]any{"status": status, "errorcode": code, "message": "", "data": data})
}

func (f *fakeSmartAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)
	switch {
	case strings.HasSuffix(r.URL.Path, "/loginByPassword"):
		atomic.AddInt32(&f.logins, 1)
		if len(body["totp"]) != 6 {
			reply(w, false, "AB1050", nil)
			return
		}
		reply(w, true, "", map[string]string{"jwtToken": "jwt", "refreshToken": "rt", "feedToken": "ft"})
	case strings.HasSuffix(r.URL.Path, "/searchScrip"):
		atomic.AddInt32(&f.searches, 1)
		reply(w, true, "", []map[string]string{
			{"exchange": "NSE", "tradingsymbol": "SBIN-BL", "symboltoken": "999"},
			{"exchange": "NSE", "tradingsymbol": "SBIN-EQ", "symboltoken": "3045"},
		})
	case strings.HasSuffix(r.URL.Path, "/getCandleData"):
		atomic.AddInt32(&f.candles, 1)
		if f.expireOnce.CompareAndSwap(true, false) {
			reply(w, false, "AG8002", "")
			return
		}
		if body["symboltoken"] != "3045" {
			reply(w, true, "", [][]any{})
			return
		}
		reply(w, true, "", [][]any{
			{"2024-01-01T00:00:00+05:30", 600.5, 610, 598, 605.25, 1234567.0},
			{"2024-01-02T00:00:00+05:30", 605.25, 615, 604, 612.0, 2345678.0},
		})
	default:
		http.NotFound(w, r)
	}
}

func newFetcher(t *testing.T, api *fakeSmartAPI, tokens map[string]string) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	f := New(Options{
		BaseURL:        srv.URL,
		APIKey:         "key",
		ClientCode:     "C1",
		Password:       "1234",
		TOTPSecret:     "JBSWY3DPEHPK3PXP",
		Tokens:         tokens,
		RequestsPerSec: 1000,
	})
	f.now = func() time.Time { return time.Date(2024, 1, 3, 16, 0, 0, 0, time.UTC) }
	return f
}

func TestFetch_SearchesTokenAndParsesCandles(t *testing.T) {
	api := &fakeSmartAPI{}
	f := newFetcher(t, api, nil)

	s, err := f.Fetch(context.Background(), "sbin-eq")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Symbol != "sbin-eq" || s.Len() != 2 {
		t.Fatalf("got %q with %d bars", s.Symbol, s.Len())
	}
	ist := time.FixedZone("", 5*3600+1800)
	want := model.Bar{
		TS:   time.Date(2024, 1, 2, 0, 0, 0, 0, ist).UTC(),
		Open: 605.25, High: 615, Low: 604, Close: 612.0, Volume: 2345678,
	}
	if s.Bars[1] != want {
		t.Errorf("bar 1: got %+v, want %+v", s.Bars[1], want)
	}

	// Second fetch reuses the session and the resolved token.
	if _, err := f.Fetch(context.Background(), "SBIN-EQ"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if atomic.LoadInt32(&api.logins) != 1 || atomic.LoadInt32(&api.searches) != 1 {
		t.Errorf("logins=%d searches=%d, want 1 and 1", api.logins, api.searches)
	}
}

func TestFetch_ConfiguredTokenSkipsSearch(t *testing.T) {
	api := &fakeSmartAPI{}
	f := newFetcher(t, api, map[string]string{"sbin-eq": "3045"})
	if _, err := f.Fetch(context.Background(), "SBIN-EQ"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if atomic.LoadInt32(&api.searches) != 0 {
		t.Errorf("searched %d times", api.searches)
	}
}

func TestFetch_RelogsInOnExpiredSession(t *testing.T) {
	api := &fakeSmartAPI{}
	api.expireOnce.Store(true)
	f := newFetcher(t, api, map[string]string{"SBIN-EQ": "3045"})

	if _, err := f.Fetch(context.Background(), "SBIN-EQ"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if atomic.LoadInt32(&api.logins) != 2 || atomic.LoadInt32(&api.candles) != 2 {
		t.Errorf("logins=%d candles=%d, want 2 and 2", api.logins, api.candles)
	}
}

func TestFetch_UnknownSymbol(t *testing.T) {
	api := &fakeSmartAPI{}
	f := newFetcher(t, api, nil)

	_, err := f.Fetch(context.Background(), "NOPE-EQ")
	if !errors.Is(err, marketdata.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if !errors.Is(err, model.ErrFetchFailure) {
		t.Errorf("expected fetch failure, got %v", err)
	}
}

func TestFetch_EmptyCandles(t *testing.T) {
	api := &fakeSmartAPI{}
	f := newFetcher(t, api, map[string]string{"SBIN-BL": "999"})

	if _, err := f.Fetch(context.Background(), "SBIN-BL"); !errors.Is(err, marketdata.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
