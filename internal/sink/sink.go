// Package sink delivers alerts to their destinations.
//
// A sink failure is reported to the caller and never stops other sinks.
package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/lugondev/solana-guardian/internal/config"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// DefaultTimeout bounds a single HTTP delivery.
const DefaultTimeout = 10 * time.Second

// Sink receives classified alerts.
type Sink interface {
	Emit(ctx context.Context, alert types.Alert) error
	Close() error
}

// Multi fans an alert out to every sink.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a Multi over sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Add appends a sink.
func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Emit delivers to every sink and joins their errors.
func (m *Multi) Emit(ctx context.Context, alert types.Alert) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the sinks enabled in cfg. Human and JSON output go to w.
func FromConfig(cfg config.SinksConfig, w io.Writer, logger *slog.Logger) *Multi {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m := NewMulti()
	switch {
	case cfg.JSON:
		m.Add(NewJSONSink(w))
	case cfg.Console:
		m.Add(NewConsoleSink(w).WithLogger(logger))
	}
	if cfg.WebhookURL != "" {
		m.Add(NewWebhookSink(cfg.WebhookURL, timeout).WithLogger(logger))
	}
	if cfg.AppriseURL != "" {
		m.Add(NewAppriseSink(cfg.AppriseURL, timeout).WithLogger(logger))
	}
	return m
}
