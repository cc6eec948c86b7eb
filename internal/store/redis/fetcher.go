package redis

import (
	"context"

	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
)

// SeriesCache is the subset of Cache used by CachingFetcher.
type SeriesCache interface {
	Get(ctx context.Context, provider, symbol string) (model.Series, bool, error)
	Set(ctx context.Context, provider string, s model.Series) error
}

// CachingFetcher serves series from the cache and falls through to the
// wrapped fetcher on a miss or cache error. Cache failures never fail a fetch.
// Entries are keyed on the provider that actually serves the symbol, so a
// routed symbol never shares an entry with another provider's.
type CachingFetcher struct {
	next  marketdata.Fetcher
	cache SeriesCache
	log   zerolog.Logger

	// OnResult, when set, is told whether each lookup hit the cache.
	OnResult func(hit bool)
}

// NewCachingFetcher decorates next with cache.
func NewCachingFetcher(next marketdata.Fetcher, cache SeriesCache) *CachingFetcher {
	return &CachingFetcher{next: next, cache: cache, log: logger.Component("series_cache")}
}

func (f *CachingFetcher) Name() string { return f.next.Name() }

func (f *CachingFetcher) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	log := logger.Ctx(ctx, f.log)
	provider, local := marketdata.ProviderFor(f.next, symbol)

	s, ok, err := f.cache.Get(ctx, provider, local)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("cache read failed")
	}
	if ok {
		f.observe(true)
		s.Symbol = symbol
		return s, nil
	}
	f.observe(false)

	s, err = f.next.Fetch(ctx, symbol)
	if err != nil {
		return model.Series{}, err
	}
	stored := s
	stored.Symbol = local
	if err := f.cache.Set(ctx, provider, stored); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return s, nil
}

func (f *CachingFetcher) observe(hit bool) {
	if f.OnResult != nil {
		f.OnResult(hit)
	}
}
