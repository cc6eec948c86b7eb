package sqlite

import (
	"context"

	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
)

// Fetcher serves series from the archive for offline scans.
type Fetcher struct {
	store *Store
	limit int
}

// NewFetcher returns a fetcher reading at most limit recent bars per symbol.
func NewFetcher(store *Store, limit int) *Fetcher {
	return &Fetcher{store: store, limit: limit}
}

func (f *Fetcher) Name() string { return "sqlite" }

func (f *Fetcher) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	s, err := f.store.ReadSeries(ctx, symbol, f.limit)
	if err != nil {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, err)
	}
	if s.Len() == 0 {
		return model.Series{}, marketdata.Wrap(f.Name(), symbol, marketdata.ErrNoData)
	}
	return s, nil
}
