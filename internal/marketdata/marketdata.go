// Package marketdata defines how bar histories are obtained for a symbol.
// Providers live in subpackages; Router picks one per symbol.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"breakout-scanner/internal/model"
)

// Fetcher returns the daily bar history of one symbol, oldest bar first.
type Fetcher interface {
	// Name identifies the provider (e.g. "yahoo", "binance", "sqlite").
	Name() string

	// Fetch returns the series for symbol. Failures should be *FetchError.
	Fetch(ctx context.Context, symbol string) (model.Series, error)
}

// Resolver is implemented by fetchers that delegate each symbol to another
// provider. Resolve names that provider and the symbol as it knows it.
type Resolver interface {
	Resolve(symbol string) (provider, local string)
}

// ProviderFor returns the provider that serves symbol through f and the
// provider-local symbol. Plain fetchers serve every symbol themselves.
func ProviderFor(f Fetcher, symbol string) (provider, local string) {
	if r, ok := f.(Resolver); ok {
		return r.Resolve(symbol)
	}
	return f.Name(), symbol
}

// ErrNoData is wrapped by fetchers when a provider answers with no bars.
var ErrNoData = errors.New("no data returned")

// FetchError is a provider failure for one symbol. It matches
// model.ErrFetchFailure under errors.Is.
type FetchError struct {
	Provider string
	Symbol   string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Provider, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == model.ErrFetchFailure }

// Wrap returns err as a *FetchError unless it already is one.
func Wrap(provider, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Provider: provider, Symbol: symbol, Err: err}
}

// Router dispatches "prefix:SYMBOL" to the fetcher registered for prefix and
// everything else to the default fetcher. The returned series keeps the full
// routed symbol so results line up with the request.
type Router struct {
	def    Fetcher
	routes map[string]Fetcher
}

// NewRouter creates a router with a default fetcher.
func NewRouter(def Fetcher) *Router {
	return &Router{def: def, routes: make(map[string]Fetcher)}
}

// Handle registers f for symbols written as "prefix:SYMBOL".
func (r *Router) Handle(prefix string, f Fetcher) {
	r.routes[strings.ToLower(prefix)] = f
}

func (r *Router) Name() string { return "router" }

// Route returns the fetcher and provider-local symbol for symbol.
func (r *Router) Route(symbol string) (Fetcher, string) {
	if prefix, rest, ok := strings.Cut(symbol, ":"); ok {
		if f, found := r.routes[strings.ToLower(prefix)]; found {
			return f, rest
		}
	}
	return r.def, symbol
}

// Resolve reports the provider a Fetch of symbol would reach.
func (r *Router) Resolve(symbol string) (provider, local string) {
	f, local := r.Route(symbol)
	if f == nil {
		return r.Name(), symbol
	}
	return ProviderFor(f, local)
}

func (r *Router) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	f, local := r.Route(symbol)
	if f == nil {
		return model.Series{}, &FetchError{Provider: r.Name(), Symbol: symbol, Err: errors.New("no provider")}
	}
	s, err := f.Fetch(ctx, local)
	if err != nil {
		return model.Series{}, Wrap(f.Name(), symbol, err)
	}
	s.Symbol = symbol
	return s, nil
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc struct {
	Provider string
	Fn       func(ctx context.Context, symbol string) (model.Series, error)
}

func (f FetcherFunc) Name() string { return f.Provider }

func (f FetcherFunc) Fetch(ctx context.Context, symbol string) (model.Series, error) {
	return f.Fn(ctx, symbol)
}
