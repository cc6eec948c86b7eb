package service

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"breakout-scanner/internal/config"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/marketdata/angelone"
	"breakout-scanner/internal/marketdata/binance"
	"breakout-scanner/internal/marketdata/yahoo"
	"breakout-scanner/internal/model"
	sqlitestore "breakout-scanner/internal/store/sqlite"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// risingSeries climbs 0.015% a bar; the last bar's volume is 1000*spike.
func risingSeries(symbol string, n int, spike int64) model.Series {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 100 * math.Pow(1.00015, float64(i))
		bars[i] = model.Bar{TS: epoch.AddDate(0, 0, i), Open: c, High: c * 1.001, Low: c * 0.999, Close: c, Volume: 1000}
	}
	bars[n-1].Volume = 1000 * spike
	return model.Series{Symbol: symbol, Bars: bars}
}

// offlineConfig returns a config scanning a seeded archive with no listeners
// besides the API on a random port.
func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.db")

	st, err := sqlitestore.New(sqlitestore.Config{DBPath: path})
	if err != nil {
		t.Fatalf("seed archive: %v", err)
	}
	ctx := context.Background()
	for _, s := range []model.Series{risingSeries("AAA", 250, 2), risingSeries("FLAT", 250, 1)} {
		if err := st.Save(ctx, s); err != nil {
			t.Fatalf("seed %s: %v", s.Symbol, err)
		}
	}
	st.Close()

	cfg := config.Default()
	cfg.Provider = config.ProviderSQLite
	cfg.Calendar = "24x7"
	cfg.SQLite.Path = path
	cfg.Symbols = []string{"AAA", "FLAT", "MISSING"}
	cfg.Scan.Cron = ""
	cfg.API.Addr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	return cfg
}

func newService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// ---------- RunScan ----------

func TestService_RunScanFromArchive(t *testing.T) {
	svc := newService(t, offlineConfig(t))
	defer svc.stores.Close()

	res := svc.RunScan(context.Background(), nil)
	if len(res.Verdicts) != 3 {
		t.Fatalf("verdicts: got %d, want 3", len(res.Verdicts))
	}

	aaa, flat, missing := res.Verdicts[0], res.Verdicts[1], res.Verdicts[2]
	if aaa.Symbol != "AAA" || !aaa.Fire {
		t.Errorf("AAA: %+v", aaa)
	}
	if flat.Fire || flat.Reason != "no-fire: volume_surge" {
		t.Errorf("FLAT: fire=%v reason=%q", flat.Fire, flat.Reason)
	}
	if missing.Error != model.KindFetchFailure {
		t.Errorf("MISSING: error %q, want %q", missing.Error, model.KindFetchFailure)
	}

	if latest, ok := svc.API().Latest(); !ok || latest.ScanID != res.ScanID {
		t.Errorf("latest not recorded: ok=%v", ok)
	}
	if got := testutil.ToFloat64(svc.prom.ScansTotal); got != 1 {
		t.Errorf("scans_total: got %v", got)
	}
	if got := testutil.ToFloat64(svc.prom.VerdictsTotal.WithLabelValues("fire")); got != 1 {
		t.Errorf("fire verdicts: got %v", got)
	}
	if got := testutil.ToFloat64(svc.prom.ErrorsTotal.WithLabelValues(string(model.KindFetchFailure))); got != 1 {
		t.Errorf("fetch failures: got %v", got)
	}
	if got := len(svc.events); got != 3 {
		t.Errorf("queued events: got %d, want 3", got)
	}
}

func TestService_RunScanExplicitSymbols(t *testing.T) {
	svc := newService(t, offlineConfig(t))
	defer svc.stores.Close()

	res := svc.RunScan(context.Background(), []string{"FLAT"})
	if len(res.Verdicts) != 1 || res.Verdicts[0].Symbol != "FLAT" {
		t.Fatalf("verdicts: %+v", res.Verdicts)
	}
}

// ---------- Run ----------

func TestService_RunDeliversToHub(t *testing.T) {
	svc := newService(t, offlineConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	svc.RunScan(ctx, nil)

	deadline := time.Now().Add(3 * time.Second)
	for svc.Hub().Seq() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("hub saw %d events, want 3", svc.Hub().Seq())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The first liveness probe runs asynchronously.
	for {
		rec := httptest.NewRecorder()
		svc.Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("healthz: code %d: %s", rec.Code, rec.Body)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestService_RunRejectsBadCron(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Scan.Cron = "not a cron"
	svc := newService(t, cfg)
	defer svc.stores.Close()

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error for bad cron spec")
	}
}

// ---------- Wiring ----------

func TestNew_InvalidConfig(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Scan.Concurrency = 0
	if _, err := New(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuildFetcher_Routes(t *testing.T) {
	tests := []struct {
		provider string
		symbol   string
		wantType string
		wantSym  string
	}{
		{config.ProviderYahoo, "RELIANCE.NS", "yahoo", "RELIANCE.NS"},
		{config.ProviderYahoo, "binance:BTCUSDT", "binance", "BTCUSDT"},
		{config.ProviderBinance, "ETHUSDT", "binance", "ETHUSDT"},
		{config.ProviderBinance, "yahoo:TCS.NS", "yahoo", "TCS.NS"},
		{config.ProviderYahoo, "angel:SBIN-EQ", "angelone", "SBIN-EQ"},
		{config.ProviderAngel, "SBIN-EQ", "angelone", "SBIN-EQ"},
		{config.ProviderAngel, "yahoo:SBIN.NS", "yahoo", "SBIN.NS"},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.symbol, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider = tt.provider
			cfg.Angel.APIKey = "key"
			cfg.Angel.ClientCode = "C1"
			cfg.Angel.TOTPSecret = "JBSWY3DPEHPK3PXP"
			f, err := BuildFetcher(cfg, Stores{}, nil)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			router, ok := f.(*marketdata.Router)
			if !ok {
				t.Fatalf("fetcher is %T, want *marketdata.Router", f)
			}
			got, local := router.Route(tt.symbol)
			switch tt.wantType {
			case "yahoo":
				if _, ok := got.(*yahoo.Fetcher); !ok {
					t.Errorf("routed to %T", got)
				}
			case "binance":
				if _, ok := got.(*binance.Fetcher); !ok {
					t.Errorf("routed to %T", got)
				}
			case "angelone":
				if _, ok := got.(*angelone.Fetcher); !ok {
					t.Errorf("routed to %T", got)
				}
			}
			if local != tt.wantSym {
				t.Errorf("local symbol: got %q, want %q", local, tt.wantSym)
			}
		})
	}
}

func TestBuildFetcher_SQLiteNeedsArchive(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = config.ProviderSQLite
	if _, err := BuildFetcher(cfg, Stores{}, nil); err == nil {
		t.Fatal("expected error without an archive")
	}
}

func TestOpenStores_UnreachableRedisIsSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Addr = "127.0.0.1:1"
	st, err := OpenStores(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	if st.Cache != nil {
		t.Error("cache opened against a dead address")
	}
	if st.Archive != nil {
		t.Error("archive opened without sqlite provider or recording")
	}
}

func TestOpenStores_RecordingWiresRecorder(t *testing.T) {
	cfg := config.Default()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "nested", "bars.db")
	cfg.SQLite.Record = true
	st, err := OpenStores(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	if st.Archive == nil || st.Recorder == nil {
		t.Fatalf("archive=%v recorder=%v", st.Archive != nil, st.Recorder != nil)
	}

	f, err := BuildFetcher(cfg, st, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := f.(*sqlitestore.RecordingFetcher); !ok {
		t.Errorf("outer fetcher is %T, want *sqlite.RecordingFetcher", f)
	}
}
