// Package bus broadcasts scan verdicts to independent consumers (alerting,
// the WebSocket hub) without letting a slow consumer stall a scan.
package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/model"
)

// Event is one verdict produced by a scan run.
type Event struct {
	ScanID  string        `json:"scan_id"`
	Seq     int           `json:"seq"` // position in the scan's symbol list
	Verdict model.Verdict `json:"data"`
}

// FanOut broadcasts events from a single input channel to N output channels.
// If an output channel is full, the event is dropped for that consumer.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan Event
	bufSize int
	log     zerolog.Logger

	// OnDrop is called when an event is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
		log:     logger.Component("bus"),
	}
}

// Subscribe creates and returns a new output channel. Subscribe before Run.
func (f *FanOut) Subscribe() <-chan Event {
	ch := make(chan Event, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to all subscribers. Output channels are
// closed when ctx is cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan Event) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-input:
			if !ok {
				return
			}
			f.broadcast(ev)
		}
	}
}

func (f *FanOut) broadcast(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, ch := range f.outputs {
		select {
		case ch <- ev:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				f.log.Warn().Int("subscriber", i).Str("symbol", ev.Verdict.Symbol).Msg("output channel full, dropping verdict")
			}
		}
	}
}

// ChannelStat is the (length, capacity) of one subscriber channel.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats reports saturation of every subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
