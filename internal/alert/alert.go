// Package alert formats high-severity risk notifications and hands them to a
// sentinel.Notifier.
package alert

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/metrics"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// Threshold is the minimum score that triggers an alert.
const Threshold = 7

// ShouldAlert reports whether a risk warrants notifying operators.
func ShouldAlert(r sentinel.Risk) bool {
	return r.Score >= Threshold
}

// FormatMessage renders the operator alert.
func FormatMessage(level sentinel.Severity, score int, location, summary string) string {
	return fmt.Sprintf("🚨 CNII SENTINEL ALERT\nSeverity: %s (%d/10)\nLocation: %s\nSummary: %s",
		level, score, location, summary)
}

// NoopNotifier drops every message. It is used when no channel is configured.
type NoopNotifier struct{}

// Send implements sentinel.Notifier.
func (NoopNotifier) Send(context.Context, string) error { return nil }

// Dispatcher implements sentinel.AlertDispatcher.
type Dispatcher struct {
	notifier sentinel.Notifier
	logger   *zap.Logger
	disabled bool
}

// NewDispatcher wraps notifier. A nil notifier disables delivery.
func NewDispatcher(notifier sentinel.Notifier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{notifier: notifier, logger: logger}
	if notifier == nil {
		d.notifier = NoopNotifier{}
		d.disabled = true
	}
	if _, ok := d.notifier.(NoopNotifier); ok {
		d.disabled = true
	}
	return d
}

// Notify sends one alert. It reports whether the message was delivered;
// failures are logged and counted but never propagated.
func (d *Dispatcher) Notify(ctx context.Context, level sentinel.Severity, score int, location, summary string) bool {
	if d.disabled {
		metrics.ObserveAlert("disabled")
		d.logger.Debug("alert suppressed, no channel configured",
			zap.String("location", location),
			zap.Int("score", score),
		)
		return false
	}
	if err := d.notifier.Send(ctx, FormatMessage(level, score, location, summary)); err != nil {
		metrics.ObserveAlert("error")
		d.logger.Error("alert delivery failed",
			zap.String("location", location),
			zap.Int("score", score),
			zap.Error(err),
		)
		return false
	}
	metrics.ObserveAlert("sent")
	d.logger.Info("alert sent",
		zap.String("level", string(level)),
		zap.String("location", location),
		zap.Int("score", score),
	)
	return true
}
