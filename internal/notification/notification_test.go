package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"breakout-scanner/internal/bus"
	"breakout-scanner/internal/model"
	"breakout-scanner/internal/platform/httpclient"
)

func firedVerdict(symbol string) model.Verdict {
	snap := model.Snapshot{Index: 249, RSI: model.Some(61.27), BBWidth: model.Some(0.3586)}
	return model.Verdict{
		Symbol: symbol,
		Fire:   true,
		Predicates: model.Predicates{
			EMAConvergence: true, PricePinned: true, VolumeSurge: true,
			MACDBullish: true, RSIMomentum: true, VolatilitySqueeze: true,
		},
		Snapshot: &snap,
	}
}

func TestAlertFromVerdict(t *testing.T) {
	a := AlertFromVerdict("scan-1", firedVerdict("TCS.NS"))
	if a.Title != "Breakout: TCS.NS" || a.Symbol != "TCS.NS" || a.ScanID != "scan-1" {
		t.Errorf("alert header: %+v", a)
	}
	want := "TCS.NS is ready to fire (RSI 61.3, BB width 0.3586)"
	if a.Message != want {
		t.Errorf("message: got %q, want %q", a.Message, want)
	}
	if a.Verdict == nil || !a.Verdict.Fire {
		t.Error("verdict not attached")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	cases := map[string]string{
		"RELIANCE.NS":     `RELIANCE\.NS`,
		"a_b*c":           `a\_b\*c`,
		"(RSI 61.2)":      `\(RSI 61\.2\)`,
		"plain":           "plain",
		"binance:BTCUSDT": "binance:BTCUSDT",
	}
	for in, want := range cases {
		if got := escapeMarkdown(in); got != want {
			t.Errorf("escapeMarkdown(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	if err := n.Send(context.Background(), AlertFromVerdict("scan-2", firedVerdict("INFY.NS"))); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["symbol"] != "INFY.NS" || got["scan_id"] != "scan-2" || got["level"] != "INFO" {
		t.Errorf("payload: %v", got)
	}
	if _, ok := got["ts"]; !ok {
		t.Error("payload missing ts")
	}
	if v, ok := got["verdict"].(map[string]any); !ok || v["fire"] != true {
		t.Errorf("payload verdict: %v", got["verdict"])
	}
}

func TestWebhookNotifier_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.Options{RequestsPerSec: 100, InitialInterval: time.Millisecond})
	err := NewWebhookNotifier(srv.URL, client).Send(context.Background(), Alert{Title: "x"})
	var se *httpclient.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Errorf("err: got %v, want 403 StatusError", err)
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var mu sync.Mutex
	var text, parseMode, chatID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"scanner","username":"scanner_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			text, parseMode, chatID = r.Form.Get("text"), r.Form.Get("parse_mode"), r.Form.Get("chat_id")
			mu.Unlock()
			io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n, err := NewTelegramNotifierWithEndpoint("TOKEN", srv.URL+"/bot%s/%s", 42)
	if err != nil {
		t.Fatalf("NewTelegramNotifierWithEndpoint: %v", err)
	}
	if err := n.Send(context.Background(), AlertFromVerdict("s", firedVerdict("TCS.NS"))); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if chatID != "42" || parseMode != "MarkdownV2" {
		t.Errorf("chat_id=%q parse_mode=%q", chatID, parseMode)
	}
	if !strings.Contains(text, `*Breakout: TCS\.NS*`) {
		t.Errorf("text: %q", text)
	}
}

// ── Dispatcher ──

type fakeNotifier struct {
	name string
	err  error

	mu     sync.Mutex
	alerts []Alert
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func TestDispatcher_FailingNotifierDoesNotBlockOthers(t *testing.T) {
	bad := &fakeNotifier{name: "bad", err: errors.New("down")}
	good := &fakeNotifier{name: "good"}
	d := NewDispatcher(bad, NewLogNotifier(), good)

	results := map[string]error{}
	d.OnResult = func(name string, err error) { results[name] = err }

	if failed := d.Send(context.Background(), Alert{Title: "t"}); failed != 1 {
		t.Errorf("failed: got %d, want 1", failed)
	}
	if good.count() != 1 || bad.count() != 1 {
		t.Errorf("deliveries: good=%d bad=%d", good.count(), bad.count())
	}
	if results["bad"] == nil || results["good"] != nil || len(results) != 3 {
		t.Errorf("results: %v", results)
	}
}

func TestDispatcher_RunAlertsOnlyFired(t *testing.T) {
	n := &fakeNotifier{name: "fake"}
	d := NewDispatcher(n)

	events := make(chan bus.Event, 4)
	events <- bus.Event{ScanID: "s1", Seq: 0, Verdict: firedVerdict("A")}
	events <- bus.Event{ScanID: "s1", Seq: 1, Verdict: model.Verdict{Symbol: "B", Reason: "no-fire: rsi_momentum"}}
	events <- bus.Event{ScanID: "s1", Seq: 2, Verdict: model.Verdict{Symbol: "C", Error: model.KindFetchFailure}}
	events <- bus.Event{ScanID: "s1", Seq: 3, Verdict: firedVerdict("D")}
	close(events)

	d.Run(context.Background(), events)

	if n.count() != 2 {
		t.Fatalf("alerts: got %d, want 2", n.count())
	}
	if n.alerts[0].Symbol != "A" || n.alerts[1].Symbol != "D" || n.alerts[1].ScanID != "s1" {
		t.Errorf("alerts: %+v", n.alerts)
	}
}
