// Package yahoo fetches daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
	"breakout-scanner/internal/platform/httpclient"
)

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Options configures a Fetcher.
type Options struct {
	BaseURL  string
	Range    string // chart range, e.g. "1y", "2y"
	Interval string // bar interval, "1d" for daily
	Client   *httpclient.Client
}

// Fetcher implements marketdata.Fetcher using Yahoo Finance.
type Fetcher struct {
	baseURL  string
	rng      string
	interval string
	client   *httpclient.Client
	log      zerolog.Logger
}

// New creates a Yahoo fetcher. Zero options fall back to the public host,
// a two year range of daily bars and a default rate limited client.
func New(opts Options) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Range == "" {
		opts.Range = "2y"
	}
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	if opts.Client == nil {
		opts.Client = httpclient.New(httpclient.Options{})
	}
	return &Fetcher{
		baseURL:  opts.BaseURL,
		rng:      opts.Range,
		interval: opts.Interval,
		client:   opts.Client,
		log:      logger.Component("yahoo"),
	}
}

func (f *Fetcher) Name() string { return "yahoo" }

// chart is the response structure from the Yahoo Finance chart API.
// Quote arrays hold null for bars without trades.
type chart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the daily series for symbol.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	bars, err := f.fetchChart(ctx, symbol)
	if err != nil {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, err)
	}
	return model.Series{Symbol: symbol, Bars: bars}, nil
}

func (f *Fetcher) fetchChart(ctx context.Context, symbol string) ([]model.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.baseURL, url.PathEscape(symbol), url.QueryEscape(f.interval), url.QueryEscape(f.rng))

	logger.Ctx(ctx, f.log).Debug().Str("symbol", symbol).Str("url", u).Msg("fetching chart")

	resp, err := f.client.Get(ctx, u, http.Header{"User-Agent": {"Mozilla/5.0"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var c chart
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if c.Chart.Error != nil {
		return nil, fmt.Errorf("api error %s: %s", c.Chart.Error.Code, c.Chart.Error.Description)
	}
	if len(c.Chart.Result) == 0 || len(c.Chart.Result[0].Timestamp) == 0 ||
		len(c.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, marketdata.ErrNoData
	}

	return parseBars(c), nil
}

func parseBars(c chart) []model.Bar {
	result := c.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, ok1 := at(quote.Open, i)
		h, ok2 := at(quote.High, i)
		l, ok3 := at(quote.Low, i)
		cl, ok4 := at(quote.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue // skip null bars (holidays, halted sessions)
		}
		vol, _ := at(quote.Volume, i)
		bars = append(bars, model.Bar{
			TS:     time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: int64(math.Trunc(vol)),
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	return bars
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}
