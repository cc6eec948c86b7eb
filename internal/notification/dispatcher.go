package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"breakout-scanner/internal/bus"
	"breakout-scanner/internal/logger"
)

// Dispatcher turns fired verdicts from the bus into alerts for every
// configured notifier. A failing notifier never blocks the others.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	log       zerolog.Logger

	// OnResult, when set, is called after every delivery attempt.
	OnResult func(notifier string, err error)
}

// NewDispatcher creates a dispatcher over notifiers.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   15 * time.Second,
		log:       logger.Component("alerts"),
	}
}

// Notifiers returns the configured backends.
func (d *Dispatcher) Notifiers() []Notifier { return d.notifiers }

// Send delivers alert to every notifier and returns the number that failed.
func (d *Dispatcher) Send(ctx context.Context, alert Alert) int {
	failed := 0
	for _, n := range d.notifiers {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := n.Send(sendCtx, alert)
		cancel()
		if err != nil {
			failed++
			logger.Ctx(ctx, d.log).Error().Err(err).Str("notifier", n.Name()).Str("symbol", alert.Symbol).Msg("alert delivery failed")
		}
		if d.OnResult != nil {
			d.OnResult(n.Name(), err)
		}
	}
	return failed
}

// Run consumes events until ctx is cancelled or events is closed, alerting
// on every verdict that fired.
func (d *Dispatcher) Run(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !ev.Verdict.Fire {
				continue
			}
			evCtx := logger.WithTraceID(ctx, ev.ScanID)
			d.Send(evCtx, AlertFromVerdict(ev.ScanID, ev.Verdict))
		}
	}
}
