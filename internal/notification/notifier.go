// Package notification delivers breakout alerts to external channels
// (log, webhooks, Telegram).
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel     `json:"level"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Symbol  string         `json:"symbol,omitempty"`
	ScanID  string         `json:"scan_id,omitempty"`
	Verdict *model.Verdict `json:"verdict,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// AlertFromVerdict builds the alert for a fired verdict.
func AlertFromVerdict(scanID string, v model.Verdict) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is ready to fire", v.Symbol)
	if v.Snapshot != nil {
		if rsi, ok := v.Snapshot.RSI.Get(); ok {
			fmt.Fprintf(&b, " (RSI %.1f", rsi)
			if w, ok := v.Snapshot.BBWidth.Get(); ok {
				fmt.Fprintf(&b, ", BB width %.4f", w)
			}
			b.WriteString(")")
		}
	}
	verdict := v
	return Alert{
		Level:   AlertInfo,
		Title:   "Breakout: " + v.Symbol,
		Message: b.String(),
		Symbol:  v.Symbol,
		ScanID:  scanID,
		Verdict: &verdict,
	}
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Component("notify")}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	logger.Ctx(ctx, n.log).Info().
		Str("level", string(alert.Level)).
		Str("symbol", alert.Symbol).
		Str("scan_id", alert.ScanID).
		Str("title", alert.Title).
		Msg(alert.Message)
	return nil
}
