package strategy

import (
	"testing"

	"breakout-scanner/internal/model"
)

// firing returns a snapshot and bar that satisfy every default predicate.
func firing() (model.Snapshot, model.Bar) {
	snap := model.Snapshot{
		EMA10:           model.Some(100.5),
		EMA20:           model.Some(100.2),
		EMA50:           model.Some(100.0),
		EMA100:          model.Some(99.5),
		EMA200:          model.Some(99.0),
		MACD:            model.Some(0.4),
		MACDSignal:      model.Some(0.2),
		RSI:             model.Some(60),
		BBUpper:         model.Some(101),
		BBMiddle:        model.Some(100),
		BBLower:         model.Some(99),
		BBWidth:         model.Some(2),
		VolumeAvg:       model.Some(1000),
		RollingMinWidth: model.Some(1.9),
	}
	last := model.Bar{Close: 100.4, Volume: 2000}
	return snap, last
}

func TestBreakout_AllPredicatesFire(t *testing.T) {
	snap, last := firing()
	v := NewBreakout(DefaultThresholds()).Evaluate(snap, last)
	if !v.Fire {
		t.Fatalf("expected fire, failing: %v", v.Predicates.Failing())
	}
	if v.Reason != "" {
		t.Errorf("fired verdict has reason %q", v.Reason)
	}
}

func TestBreakout_EachPredicate(t *testing.T) {
	cases := []struct {
		name   string
		edit   func(s *model.Snapshot, b *model.Bar)
		failed string
	}{
		{"emas spread", func(s *model.Snapshot, _ *model.Bar) { s.EMA200 = model.Some(97) }, "ema_convergence"},
		{"ema not ready", func(s *model.Snapshot, _ *model.Bar) { s.EMA200 = model.None }, "ema_convergence"},
		{"ema non-positive", func(s *model.Snapshot, _ *model.Bar) { s.EMA100 = model.Some(0) }, "ema_convergence"},
		{"price far from ema50", func(_ *model.Snapshot, b *model.Bar) { b.Close = 101.5 }, "price_pinned"},
		{"no volume surge", func(_ *model.Snapshot, b *model.Bar) { b.Volume = 1500 }, "volume_surge"},
		{"volume avg not ready", func(s *model.Snapshot, _ *model.Bar) { s.VolumeAvg = model.None }, "volume_surge"},
		{"macd below signal", func(s *model.Snapshot, _ *model.Bar) { s.MACD = model.Some(0.1) }, "macd_bullish"},
		{"macd equal signal", func(s *model.Snapshot, _ *model.Bar) { s.MACD = model.Some(0.2) }, "macd_bullish"},
		{"signal not ready", func(s *model.Snapshot, _ *model.Bar) { s.MACDSignal = model.None }, "macd_bullish"},
		{"rsi at cutoff", func(s *model.Snapshot, _ *model.Bar) { s.RSI = model.Some(55) }, "rsi_momentum"},
		{"rsi not ready", func(s *model.Snapshot, _ *model.Bar) { s.RSI = model.None }, "rsi_momentum"},
		{"bands wide", func(s *model.Snapshot, _ *model.Bar) { s.BBWidth = model.Some(2.2) }, "volatility_squeeze"},
		{"rolling min not ready", func(s *model.Snapshot, _ *model.Bar) { s.RollingMinWidth = model.None }, "volatility_squeeze"},
	}

	ev := NewBreakout(DefaultThresholds())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, last := firing()
			tc.edit(&snap, &last)
			v := ev.Evaluate(snap, last)
			if v.Fire {
				t.Fatal("expected no fire")
			}
			failing := v.Predicates.Failing()
			if len(failing) != 1 || failing[0] != tc.failed {
				t.Errorf("failing: got %v, want [%s]", failing, tc.failed)
			}
			if want := "no-fire: " + tc.failed; v.Reason != want {
				t.Errorf("reason: got %q, want %q", v.Reason, want)
			}
		})
	}
}

func TestBreakout_ZeroCloseDoesNotDivide(t *testing.T) {
	snap, last := firing()
	last.Close = 0
	v := NewBreakout(DefaultThresholds()).Evaluate(snap, last)
	if v.Predicates.PricePinned {
		t.Error("price_pinned true for zero close")
	}
}

func TestBreakout_EmptySnapshot(t *testing.T) {
	v := NewBreakout(DefaultThresholds()).Evaluate(model.Snapshot{Index: -1}, model.Bar{})
	if v.Fire {
		t.Fatal("empty snapshot fired")
	}
	if got := len(v.Predicates.Failing()); got != 6 {
		t.Errorf("expected all six predicates false, %d failing", got)
	}
}

func TestBreakout_MidBandSqueeze(t *testing.T) {
	th := DefaultThresholds()
	th.SqueezeMode = SqueezeMidBand
	ev := NewBreakout(th)

	snap, last := firing()
	snap.RollingMinWidth = model.None // ignored in mid_band mode
	if v := ev.Evaluate(snap, last); !v.Predicates.VolatilitySqueeze {
		t.Error("width/middle = 0.02 should squeeze under 0.05")
	}

	snap.BBWidth = model.Some(6)
	if v := ev.Evaluate(snap, last); v.Predicates.VolatilitySqueeze {
		t.Error("width/middle = 0.06 should not squeeze")
	}

	snap.BBWidth = model.Some(1)
	snap.BBMiddle = model.Some(0)
	if v := ev.Evaluate(snap, last); v.Predicates.VolatilitySqueeze {
		t.Error("zero middle band must not squeeze")
	}
}

func TestBreakout_LooserVariantThresholds(t *testing.T) {
	// Convergence 0.03 and RSI > 50 admit a snapshot the defaults reject.
	snap, last := firing()
	snap.EMA200 = model.Some(98)
	snap.RSI = model.Some(52)

	if v := NewBreakout(DefaultThresholds()).Evaluate(snap, last); v.Fire {
		t.Fatal("defaults should reject")
	}

	th := DefaultThresholds()
	th.EMAConvergenceMax = 0.03
	th.RSIMin = 50
	if v := NewBreakout(th).Evaluate(snap, last); !v.Fire {
		t.Errorf("loose thresholds should fire, failing %v", v.Predicates.Failing())
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cases := map[string]func(th *Thresholds){
		"zero convergence": func(th *Thresholds) { th.EMAConvergenceMax = 0 },
		"rsi 100":          func(th *Thresholds) { th.RSIMin = 100 },
		"negative surge":   func(th *Thresholds) { th.VolumeSurgeMult = -1 },
		"unknown mode":     func(th *Thresholds) { th.SqueezeMode = "bollinger" },
		"mid band zero":    func(th *Thresholds) { th.SqueezeMode = SqueezeMidBand; th.SqueezeMidBandMax = 0 },
	}
	for name, edit := range cases {
		t.Run(name, func(t *testing.T) {
			th := DefaultThresholds()
			edit(&th)
			if err := th.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
