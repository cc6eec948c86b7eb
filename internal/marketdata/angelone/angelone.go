// Package angelone fetches daily NSE/BSE candles from the Angel One SmartAPI
// historical endpoint.
package angelone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
	"breakout-scanner/pkg/smartconnect"
)

// Options configures a Fetcher.
type Options struct {
	BaseURL    string
	APIKey     string
	ClientCode string
	Password   string // trading PIN
	TOTPSecret string // base32 secret behind the login authenticator

	Exchange string            // default NSE
	Days     int               // calendar days of history, default 400
	Tokens   map[string]string // trading symbol -> symbol token; others are searched

	// RequestsPerSec caps historical requests; SmartAPI allows 3/s.
	RequestsPerSec float64
}

// Fetcher implements marketdata.Fetcher for Angel One instruments such as
// "SBIN-EQ". It logs in lazily and once more when the session expires.
type Fetcher struct {
	sc       *smartconnect.SmartConnect
	opts     Options
	limiter  *rate.Limiter
	log      zerolog.Logger
	now      func() time.Time
	loginMu  sync.Mutex
	loggedIn atomic.Bool

	tokensMu sync.RWMutex
	tokens   map[string]string
}

// New creates an Angel One fetcher.
func New(opts Options) *Fetcher {
	if opts.Exchange == "" {
		opts.Exchange = "NSE"
	}
	if opts.Days <= 0 {
		opts.Days = 400
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 3
	}
	tokens := make(map[string]string, len(opts.Tokens))
	for sym, tok := range opts.Tokens {
		tokens[strings.ToUpper(sym)] = tok
	}
	f := &Fetcher{
		sc:      smartconnect.NewSmartConnect(smartconnect.Config{APIKey: opts.APIKey, RootURL: opts.BaseURL}),
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		log:     logger.Component("angelone"),
		now:     time.Now,
		tokens:  tokens,
	}
	f.sc.SessionExpiryHook = f.invalidate
	return f
}

func (f *Fetcher) Name() string { return "angelone" }

// invalidate may run inside a SmartAPI call, so it must not take loginMu.
func (f *Fetcher) invalidate() { f.loggedIn.Store(false) }

// login opens a session with a fresh TOTP code unless one is already open.
func (f *Fetcher) login(ctx context.Context) error {
	f.loginMu.Lock()
	defer f.loginMu.Unlock()
	if f.loggedIn.Load() {
		return nil
	}
	code, err := totp.GenerateCode(f.opts.TOTPSecret, f.now())
	if err != nil {
		return fmt.Errorf("totp: %w", err)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := f.sc.GenerateSession(ctx, f.opts.ClientCode, f.opts.Password, code); err != nil {
		return err
	}
	f.loggedIn.Store(true)
	logger.Ctx(ctx, f.log).Info().Str("client", f.opts.ClientCode).Msg("smartapi session opened")
	return nil
}

// withSession runs call, logging in first and retrying once after the
// session expires.
func (f *Fetcher) withSession(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := f.login(ctx); err != nil {
			return err
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		err := call()
		if attempt == 0 && errors.Is(err, smartconnect.ErrTokenExpired) {
			f.invalidate()
			continue
		}
		return err
	}
}

// symbolToken resolves a trading symbol to its SmartAPI token.
func (f *Fetcher) symbolToken(ctx context.Context, symbol string) (string, error) {
	key := strings.ToUpper(symbol)
	f.tokensMu.RLock()
	tok, ok := f.tokens[key]
	f.tokensMu.RUnlock()
	if ok {
		return tok, nil
	}

	var found []smartconnect.Scrip
	err := f.withSession(ctx, func() error {
		var err error
		found, err = f.sc.SearchScrip(ctx, f.opts.Exchange, key)
		return err
	})
	if err != nil {
		return "", err
	}
	for _, s := range found {
		if strings.EqualFold(s.TradingSymbol, key) {
			f.tokensMu.Lock()
			f.tokens[key] = s.SymbolToken
			f.tokensMu.Unlock()
			return s.SymbolToken, nil
		}
	}
	return "", fmt.Errorf("no %s instrument named %s: %w", f.opts.Exchange, key, marketdata.ErrNoData)
}

// Fetch returns daily candles for a trading symbol such as "RELIANCE-EQ".
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	tok, err := f.symbolToken(ctx, symbol)
	if err != nil {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, err)
	}

	to := f.now()
	req := smartconnect.CandleRequest{
		Exchange:    f.opts.Exchange,
		SymbolToken: tok,
		Interval:    smartconnect.IntervalOneDay,
		From:        to.AddDate(0, 0, -f.opts.Days),
		To:          to,
	}
	logger.Ctx(ctx, f.log).Debug().Str("symbol", symbol).Str("token", tok).Msg("fetching candles")

	var candles []smartconnect.Candle
	err = f.withSession(ctx, func() error {
		var err error
		candles, err = f.sc.GetCandleData(ctx, req)
		return err
	})
	if err != nil {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, err)
	}
	if len(candles) == 0 {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, marketdata.ErrNoData)
	}

	bars := make([]model.Bar, len(candles))
	for i, c := range candles {
		bars[i] = model.Bar{
			TS:     c.Time.UTC(),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: int64(c.Volume),
		}
	}
	return model.Series{Symbol: symbol, Bars: bars}, nil
}
