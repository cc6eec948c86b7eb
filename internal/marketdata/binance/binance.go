// Package binance fetches daily klines from the Binance spot REST API.
package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	binance_connector "github.com/binance/binance-connector-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
)

// DefaultBaseURL is the public spot API host.
const DefaultBaseURL = "https://api.binance.com"

// Options configures a Fetcher.
type Options struct {
	BaseURL  string
	Interval string // kline interval, "1d" for daily
	Limit    int    // klines per request, at most 1000
}

// Fetcher implements marketdata.Fetcher for Binance spot pairs.
type Fetcher struct {
	client   *binance_connector.Client
	interval string
	limit    int
	log      zerolog.Logger
}

// New creates a Binance fetcher. Klines are public, so no API key is used.
func New(opts Options) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 300
	}
	return &Fetcher{
		client:   binance_connector.NewClient("", "", opts.BaseURL),
		interval: opts.Interval,
		limit:    opts.Limit,
		log:      logger.Component("binance"),
	}
}

func (f *Fetcher) Name() string { return "binance" }

// Fetch returns the kline series for a pair such as "BTCUSDT".
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	pair := strings.ToUpper(symbol)
	logger.Ctx(ctx, f.log).Debug().Str("symbol", pair).Int("limit", f.limit).Msg("fetching klines")

	klines, err := f.client.NewKlinesService().
		Symbol(pair).
		Interval(f.interval).
		Limit(f.limit).
		Do(ctx)
	if err != nil {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, err)
	}
	if len(klines) == 0 {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, marketdata.ErrNoData)
	}

	bars := make([]model.Bar, 0, len(klines))
	for i, k := range klines {
		b, err := toBar(k)
		if err != nil {
			return model.Series{}, marketdata.Wrap(f.Name(), symbol, fmt.Errorf("kline %d: %w", i, err))
		}
		bars = append(bars, b)
	}
	return model.Series{Symbol: symbol, Bars: bars}, nil
}

func toBar(k *binance_connector.KlinesResponse) (model.Bar, error) {
	var (
		b   model.Bar
		err error
	)
	b.TS = time.UnixMilli(int64(k.OpenTime)).UTC()
	if b.Open, err = parsePrice("open", k.Open); err != nil {
		return b, err
	}
	if b.High, err = parsePrice("high", k.High); err != nil {
		return b, err
	}
	if b.Low, err = parsePrice("low", k.Low); err != nil {
		return b, err
	}
	if b.Close, err = parsePrice("close", k.Close); err != nil {
		return b, err
	}
	vol, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return b, fmt.Errorf("volume %q: %w", k.Volume, err)
	}
	b.Volume = vol.IntPart()
	return b, nil
}

func parsePrice(field, s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, s, err)
	}
	f, _ := d.Float64()
	return f, nil
}
