package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/model"
)

const defaultConcurrency = 8

// Observer receives per-fetch, per-verdict and per-scan measurements.
// *metrics.Metrics implements it.
type Observer interface {
	ObserveFetch(provider string, d time.Duration, err error)
	ObserveVerdict(v model.Verdict, eval time.Duration)
	ObserveScan(symbols int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, time.Duration, error)    {}
func (nopObserver) ObserveVerdict(model.Verdict, time.Duration) {}
func (nopObserver) ObserveScan(int, time.Duration)              {}

// Options configures a Scanner.
type Options struct {
	// Concurrency bounds the number of symbols in flight. Default 8.
	Concurrency int
	// Observer, when set, receives measurements.
	Observer Observer
}

// Result is the outcome of one scan run. Verdicts[i] belongs to Symbols[i].
type Result struct {
	ScanID     string          `json:"scan_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Symbols    []string        `json:"symbols"`
	Verdicts   []model.Verdict `json:"verdicts"`
}

// Fired returns the verdicts that fired, in input order.
func (r Result) Fired() []model.Verdict {
	var out []model.Verdict
	for _, v := range r.Verdicts {
		if v.Fire {
			out = append(out, v)
		}
	}
	return out
}

// Errors returns the number of symbols that could not be scored.
func (r Result) Errors() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Error != "" {
			n++
		}
	}
	return n
}

// Scanner fetches and scores many symbols concurrently.
type Scanner struct {
	engine      *Engine
	fetcher     marketdata.Fetcher
	concurrency int
	obs         Observer
	log         zerolog.Logger
}

// New creates a scanner that fetches through f and scores with e.
func New(e *Engine, f marketdata.Fetcher, opts Options) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Scanner{
		engine:      e,
		fetcher:     f,
		concurrency: opts.Concurrency,
		obs:         opts.Observer,
		log:         logger.Component("scanner"),
	}
}

// Engine returns the scanner's engine.
func (s *Scanner) Engine() *Engine { return s.engine }

// Scan fetches and scores every symbol. Verdicts come back in input order.
// A symbol that fails never affects the others; after ctx is cancelled the
// symbols not yet fetched get a FetchFailure verdict.
func (s *Scanner) Scan(ctx context.Context, symbols []string) Result {
	scanID := logger.TraceID(ctx)
	if scanID == "" {
		scanID = logger.NewTraceID()
		ctx = logger.WithTraceID(ctx, scanID)
	}
	log := logger.Ctx(ctx, s.log)

	res := Result{
		ScanID:    scanID,
		StartedAt: time.Now().UTC(),
		Symbols:   symbols,
		Verdicts:  make([]model.Verdict, len(symbols)),
	}
	log.Info().Int("symbols", len(symbols)).Int("workers", s.concurrency).Msg("scan started")

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			res.Verdicts[i] = s.scanOne(ctx, sym)
			return nil
		})
	}
	g.Wait()

	res.FinishedAt = time.Now().UTC()
	took := res.FinishedAt.Sub(res.StartedAt)
	s.obs.ObserveScan(len(symbols), took)

	fired := res.Fired()
	log.Info().
		Int("symbols", len(symbols)).
		Int("fired", len(fired)).
		Int("errors", res.Errors()).
		Dur("took", took).
		Msg("scan finished")
	return res
}

func (s *Scanner) scanOne(ctx context.Context, symbol string) model.Verdict {
	if err := ctx.Err(); err != nil {
		v := ErrorVerdict(symbol, marketdata.Wrap(s.fetcher.Name(), symbol, err))
		s.obs.ObserveVerdict(v, 0)
		return v
	}

	start := time.Now()
	series, err := s.fetcher.Fetch(ctx, symbol)
	s.obs.ObserveFetch(s.fetcher.Name(), time.Since(start), err)
	if err != nil {
		if _, ok := model.KindOf(err); !ok {
			err = marketdata.Wrap(s.fetcher.Name(), symbol, err)
		}
		logger.Ctx(ctx, s.log).Warn().Err(err).Str("symbol", symbol).Msg("fetch failed")
		v := ErrorVerdict(symbol, err)
		s.obs.ObserveVerdict(v, 0)
		return v
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}

	start = time.Now()
	v, err := s.engine.Evaluate(series)
	s.obs.ObserveVerdict(v, time.Since(start))
	if err != nil {
		logger.Ctx(ctx, s.log).Debug().Err(err).Str("symbol", symbol).Msg("series rejected")
	}
	// Report under the requested symbol even if the provider normalised it.
	v.Symbol = symbol
	return v
}

// EvaluateAll scores already-fetched series concurrently, in input order.
func (s *Scanner) EvaluateAll(all []model.Series) []model.Verdict {
	out := make([]model.Verdict, len(all))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range all {
		i := i
		g.Go(func() error {
			out[i], _ = s.engine.Evaluate(all[i])
			return nil
		})
	}
	g.Wait()
	return out
}

// ParseSymbols splits a comma or whitespace separated symbol list, dropping
// blanks and duplicates while keeping first-seen order.
func ParseSymbols(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
