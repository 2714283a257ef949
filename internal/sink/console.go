package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lugondev/solana-guardian/pkg/types"
)

// ConsoleSink prints one human readable line per alert and mirrors it as a
// structured log record.
type ConsoleSink struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewConsoleSink creates a ConsoleSink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *ConsoleSink) WithLogger(logger *slog.Logger) *ConsoleSink {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Emit implements Sink.
func (s *ConsoleSink) Emit(ctx context.Context, alert types.Alert) error {
	s.mu.Lock()
	_, err := fmt.Fprintf(s.w, "%s %s\n", alert.Title(), alert.Message)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write alert: %w", err)
	}

	s.logger.Log(ctx, levelFor(alert.Severity), "alert",
		"id", alert.ID.String(),
		"severity", alert.Severity.String(),
		"kind", alert.Kind.String(),
		"program", alert.ProgramID.String(),
		"label", alert.Label,
		"tick", alert.Tick,
	)
	return nil
}

// Close implements Sink.
func (s *ConsoleSink) Close() error { return nil }

func levelFor(severity types.Severity) slog.Level {
	switch severity {
	case types.SeverityCritical, types.SeverityHigh:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// JSONSink writes one JSON object per alert per line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink creates a JSONSink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Emit implements Sink.
func (s *JSONSink) Emit(ctx context.Context, alert types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(alert); err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *JSONSink) Close() error { return nil }
