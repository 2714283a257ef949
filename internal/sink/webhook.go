package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lugondev/solana-guardian/pkg/types"
)

// WebhookSink POSTs each alert as JSON.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookSink creates a WebhookSink for url.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *WebhookSink) WithLogger(logger *slog.Logger) *WebhookSink {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Emit implements Sink.
func (s *WebhookSink) Emit(ctx context.Context, alert types.Alert) error {
	if err := postJSON(ctx, s.client, s.url, alert); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	s.logger.Debug("webhook sent", "alert_id", alert.ID.String())
	return nil
}

// Close implements Sink.
func (s *WebhookSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// AppriseSink notifies through an Apprise API endpoint
// (for example http://apprise:8000/notify/guardian).
type AppriseSink struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type apprisePayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Type   string `json:"type"`
	Format string `json:"format"`
}

// NewAppriseSink creates an AppriseSink for url.
func NewAppriseSink(url string, timeout time.Duration) *AppriseSink {
	return &AppriseSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *AppriseSink) WithLogger(logger *slog.Logger) *AppriseSink {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Emit implements Sink.
func (s *AppriseSink) Emit(ctx context.Context, alert types.Alert) error {
	payload := apprisePayload{
		Title:  alert.Title(),
		Body:   fmt.Sprintf("%s\n\nProgram: %s\nTime: %s", alert.Message, alert.ProgramID, alert.Timestamp.UTC().Format(time.RFC3339)),
		Type:   appriseType(alert.Severity),
		Format: "text",
	}
	if err := postJSON(ctx, s.client, s.url, payload); err != nil {
		return fmt.Errorf("apprise: %w", err)
	}
	s.logger.Debug("apprise notification sent", "alert_id", alert.ID.String())
	return nil
}

// Close implements Sink.
func (s *AppriseSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func appriseType(severity types.Severity) string {
	switch severity {
	case types.SeverityCritical:
		return "failure"
	case types.SeverityHigh, types.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
