package indicator

import (
	"fmt"
	"testing"

	"github.com/markcheno/go-talib"

	"breakout-scanner/internal/model"
)

// Cross-checks the incremental bank against TA-Lib's batch implementations.

func closesOf(s model.Series) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

func TestTalib_EMA(t *testing.T) {
	s := wavySeries(300)
	in := closesOf(s)
	for _, period := range DefaultWindows().EMAPeriods {
		ref := talib.Ema(in, period)
		ema := NewEMA(period)
		for i, b := range s.Bars {
			ema.Update(b)
			if i < period-1 {
				continue
			}
			assertClose(t, fmt.Sprintf("EMA(%d) bar %d", period, i), ema.Value(), ref[i], 1e-9)
		}
	}
}

func TestTalib_RSI(t *testing.T) {
	s := wavySeries(300)
	ref := talib.Rsi(closesOf(s), 14)
	rsi := NewRSI(14)
	for i, b := range s.Bars {
		rsi.Update(b)
		if !rsi.Ready() {
			continue
		}
		assertClose(t, fmt.Sprintf("RSI bar %d", i), rsi.Value(), ref[i], 1e-9)
	}
}

func TestTalib_MACD(t *testing.T) {
	// TA-Lib seeds MACD's fast EMA at the slow EMA's start, so compare against
	// plain EMAs instead: line = EMA12 - EMA26, signal = EMA9(line).
	s := wavySeries(300)
	in := closesOf(s)
	fast, slow := talib.Ema(in, 12), talib.Ema(in, 26)
	line := make([]float64, 0, len(in))
	for i := 25; i < len(in); i++ {
		line = append(line, fast[i]-slow[i])
	}
	signal := talib.Ema(line, 9)

	m := NewMACD(12, 26, 9)
	for i, b := range s.Bars {
		m.Update(b)
		if i < 25 {
			continue
		}
		assertClose(t, fmt.Sprintf("MACD line bar %d", i), m.Value(), line[i-25], 1e-9)
		if sig, ok := m.Signal().Get(); ok {
			assertClose(t, fmt.Sprintf("MACD signal bar %d", i), sig, signal[i-25], 1e-9)
		}
	}
}

func TestTalib_BollingerAndVolume(t *testing.T) {
	s := wavySeries(300)
	upperRef, middleRef, lowerRef := talib.BBands(closesOf(s), 20, 2, 2, talib.SMA)

	vols := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		vols[i] = float64(b.Volume)
	}
	volRef := talib.Sma(vols, 10)

	i := 0
	Walk(s, DefaultWindows(), func(_ int, snap model.Snapshot) {
		defer func() { i++ }()
		if i >= 9 {
			assertClose(t, fmt.Sprintf("VolumeAvg bar %d", i), snap.VolumeAvg.V, volRef[i], 1e-6)
		}
		if i < 19 {
			return
		}
		// TA-Lib derives variance from E[x²]-E[x]², so allow for cancellation.
		assertClose(t, fmt.Sprintf("BB middle bar %d", i), snap.BBMiddle.V, middleRef[i], 1e-9)
		assertClose(t, fmt.Sprintf("BB upper bar %d", i), snap.BBUpper.V, upperRef[i], 1e-6)
		assertClose(t, fmt.Sprintf("BB lower bar %d", i), snap.BBLower.V, lowerRef[i], 1e-6)
	})
}

func TestTalib_RollingMinWidth(t *testing.T) {
	s := wavySeries(300)
	upper, _, lower := talib.BBands(closesOf(s), 20, 2, 2, talib.SMA)
	widths := make([]float64, 0, len(upper))
	for i := 19; i < len(upper); i++ {
		widths = append(widths, upper[i]-lower[i])
	}
	ref := talib.Min(widths, 20)

	Walk(s, DefaultWindows(), func(i int, snap model.Snapshot) {
		if !snap.RollingMinWidth.Ready {
			return
		}
		assertClose(t, fmt.Sprintf("rolling min bar %d", i), snap.RollingMinWidth.V, ref[i-19], 1e-6)
	})
}
