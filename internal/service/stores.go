package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"breakout-scanner/internal/config"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/marketdata/angelone"
	"breakout-scanner/internal/marketdata/binance"
	"breakout-scanner/internal/marketdata/yahoo"
	"breakout-scanner/internal/metrics"
	"breakout-scanner/internal/platform/httpclient"
	redisstore "breakout-scanner/internal/store/redis"
	sqlitestore "breakout-scanner/internal/store/sqlite"
)

// Stores is the optional infrastructure behind the fetcher. Nil fields are
// disabled.
type Stores struct {
	Cache    *redisstore.Cache
	Archive  *sqlitestore.Store
	Recorder *sqlitestore.Recorder
}

// OpenStores connects the cache and archive the configuration asks for. An
// unreachable cache is logged and skipped; the archive is required when the
// sqlite provider or recording is configured.
func OpenStores(cfg *config.Config) (Stores, error) {
	log := logger.Component("service")
	var st Stores

	if cfg.Redis.Addr != "" {
		cache, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("series cache unavailable, continuing without it")
		} else {
			st.Cache = cache
		}
	}

	if cfg.Provider == config.ProviderSQLite || cfg.SQLite.Record {
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				st.Close()
				return Stores{}, fmt.Errorf("archive dir: %w", err)
			}
		}
		cal, err := cfg.MarketCalendar()
		if err != nil {
			st.Close()
			return Stores{}, err
		}
		archive, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLite.Path, Location: cal.Location()})
		if err != nil {
			st.Close()
			return Stores{}, err
		}
		st.Archive = archive
		if cfg.SQLite.Record && cfg.Provider != config.ProviderSQLite {
			st.Recorder = sqlitestore.NewRecorder(archive, 0)
		}
	}
	return st, nil
}

// Close releases every open store.
func (s Stores) Close() {
	if s.Cache != nil {
		s.Cache.Close()
	}
	if s.Archive != nil {
		s.Archive.Close()
	}
}

// BuildFetcher assembles the fetch chain:
//
//	cache -> archive recorder -> provider router (yahoo | binance | angelone) or the archive itself
//
// prom may be nil.
func BuildFetcher(cfg *config.Config, st Stores, prom *metrics.Metrics) (marketdata.Fetcher, error) {
	var f marketdata.Fetcher
	if cfg.Provider == config.ProviderSQLite {
		if st.Archive == nil {
			return nil, fmt.Errorf("sqlite provider needs an open archive")
		}
		// Offline: the archive is the source of truth, never cache it.
		return sqlitestore.NewFetcher(st.Archive, cfg.SQLite.Limit), nil
	}

	yf := yahoo.New(yahoo.Options{
		BaseURL: cfg.Yahoo.BaseURL,
		Range:   cfg.Yahoo.Range,
		Client: httpclient.New(httpclient.Options{
			Timeout:        20 * time.Second,
			RequestsPerSec: cfg.Yahoo.RequestsPerSec,
		}),
	})
	bf := binance.New(binance.Options{BaseURL: cfg.Binance.BaseURL, Limit: cfg.Binance.Limit})

	providers := map[string]marketdata.Fetcher{
		config.ProviderYahoo:   yf,
		config.ProviderBinance: bf,
	}
	if cfg.Angel.APIKey != "" {
		providers[config.ProviderAngel] = angelone.New(angelone.Options{
			APIKey:     cfg.Angel.APIKey,
			ClientCode: cfg.Angel.ClientCode,
			Password:   cfg.Angel.Password,
			TOTPSecret: cfg.Angel.TOTPSecret,
			Exchange:   cfg.Angel.Exchange,
			Days:       cfg.Angel.Days,
			Tokens:     cfg.Angel.Tokens,
		})
	}

	// The configured provider serves bare symbols; every other one answers
	// to its "prefix:" form.
	router := marketdata.NewRouter(providers[cfg.Provider])
	for name, p := range providers {
		if name != cfg.Provider {
			router.Handle(prefixes[name], p)
		}
	}
	f = router

	if st.Recorder != nil {
		rf := sqlitestore.NewRecordingFetcher(f, st.Recorder)
		if prom != nil {
			st.Recorder.OnDrop = func(string) { prom.ArchiveDropsTotal.Inc() }
		}
		f = rf
	}
	if st.Cache != nil {
		cf := redisstore.NewCachingFetcher(f, st.Cache)
		if prom != nil {
			cf.OnResult = prom.ObserveCache
			watchBreaker(st.Cache.Breaker(), prom)
		}
		f = cf
	}
	return f, nil
}

// Symbol prefixes routed to each provider, e.g. "binance:BTCUSDT".
var prefixes = map[string]string{
	config.ProviderYahoo:   "yahoo",
	config.ProviderBinance: "binance",
	config.ProviderAngel:   "angel",
}

func watchBreaker(cb *redisstore.CircuitBreaker, prom *metrics.Metrics) {
	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to redisstore.State) {
		if prev != nil {
			prev(from, to)
		}
		prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			prom.RedisCircuitBreakerTrips.Inc()
		}
	}
}
