package sqlite

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
)

const defaultRecordBuffer = 256

// Recorder writes fetched series to the archive from a single goroutine so
// scanner workers never wait on disk.
type Recorder struct {
	store *Store
	ch    chan model.Series
	log   zerolog.Logger

	// OnDrop, when set, is called for every series dropped on a full queue.
	OnDrop func(symbol string)
}

// NewRecorder creates a recorder with a bounded queue.
func NewRecorder(store *Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultRecordBuffer
	}
	return &Recorder{store: store, ch: make(chan model.Series, buffer), log: logger.Component("sqlite_recorder")}
}

// Record queues s for writing. It never blocks; a full queue drops s.
func (r *Recorder) Record(s model.Series) {
	select {
	case r.ch <- s:
	default:
		r.log.Warn().Str("symbol", s.Symbol).Msg("record queue full, dropping series")
		if r.OnDrop != nil {
			r.OnDrop(s.Symbol)
		}
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case s := <-r.ch:
			r.save(s)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case s := <-r.ch:
			r.save(s)
		default:
			return
		}
	}
}

func (r *Recorder) save(s model.Series) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if err := r.store.Save(ctx, s); err != nil {
		r.log.Error().Err(err).Str("symbol", s.Symbol).Msg("archive write failed")
		return
	}
	r.log.Debug().Str("symbol", s.Symbol).Int("bars", s.Len()).Dur("took", time.Since(start)).Msg("archived")
}

// RecordingFetcher records every successful fetch of the wrapped fetcher.
type RecordingFetcher struct {
	next marketdata.Fetcher
	rec  *Recorder
}

// NewRecordingFetcher decorates next with write-through archiving.
func NewRecordingFetcher(next marketdata.Fetcher, rec *Recorder) *RecordingFetcher {
	return &RecordingFetcher{next: next, rec: rec}
}

func (f *RecordingFetcher) Name() string { return f.next.Name() }

func (f *RecordingFetcher) Resolve(symbol string) (provider, local string) {
	return marketdata.ProviderFor(f.next, symbol)
}

func (f *RecordingFetcher) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	s, err := f.next.Fetch(ctx, symbol)
	if err == nil {
		f.rec.Record(s)
	}
	return s, err
}
