// Package classify maps transition events to alerts.
//
// Severity comes from a fixed table indexed by kind. Messages name the
// program, the kind, and the before/after values that matter for it.
package classify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lugondev/solana-guardian/internal/diff"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// severityTable is the free tier rule table, indexed by kind. A kind added
// without an entry compiles and reads as SeverityInfo; TestSeverityTableIsTotal
// catches it.
var severityTable = [types.NumTransitionKinds]types.Severity{
	types.AuthorityChanged:           types.SeverityCritical,
	types.ImmutableBecameUpgradeable: types.SeverityCritical,
	types.ProgramUpgraded:            types.SeverityHigh,
	types.BalanceShift:               types.SeverityMedium,
}

// DefaultSeverity returns the table severity for kind.
func DefaultSeverity(kind types.TransitionKind) (types.Severity, bool) {
	if !kind.Valid() {
		return 0, false
	}
	return severityTable[kind], true
}

// Override adjusts the table severity for a program. It is reserved for paid
// tiers; the free tier runs without one.
type Override func(program types.WatchedProgram, kind types.TransitionKind, severity types.Severity) types.Severity

// Classifier turns transition events into alerts.
type Classifier struct {
	override Override
	now      func() time.Time
	newID    func() uuid.UUID
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithOverride installs a per-program severity override.
func WithOverride(o Override) Option {
	return func(c *Classifier) {
		c.override = o
	}
}

// WithClock sets the clock used for alert timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// New creates a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify maps one event to an alert.
func (c *Classifier) Classify(program types.WatchedProgram, event types.TransitionEvent, tick uint64) (types.Alert, error) {
	severity, ok := DefaultSeverity(event.Kind)
	if !ok {
		return types.Alert{}, gerrors.ClassificationFailed(fmt.Sprintf("unknown transition kind %s for %s", event.Kind, program.Label))
	}

	if c.override != nil {
		severity = c.override(program, event.Kind, severity)
	}

	return types.Alert{
		ID:        c.newID(),
		ProgramID: event.ProgramID,
		Label:     program.Label,
		Severity:  severity,
		Kind:      event.Kind,
		Message:   Message(program, event),
		Timestamp: c.now(),
		Tick:      tick,
	}, nil
}

// ClassifyAll classifies events in order. Events that cannot be classified
// are returned as errors alongside the alerts that could.
func (c *Classifier) ClassifyAll(program types.WatchedProgram, events []types.TransitionEvent, tick uint64) ([]types.Alert, []error) {
	alerts := make([]types.Alert, 0, len(events))
	var errs []error
	for _, event := range events {
		alert, err := c.Classify(program, event, tick)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, errs
}

// Message renders the human readable text for an event.
func Message(program types.WatchedProgram, event types.TransitionEvent) string {
	prev, cur := event.Previous, event.Current

	switch event.Kind {
	case types.AuthorityChanged:
		return fmt.Sprintf("%s: %s %s -> %s",
			program.Label, event.Kind,
			types.OptionalKeyString(prev.UpgradeAuthority),
			types.OptionalKeyString(cur.UpgradeAuthority))

	case types.ImmutableBecameUpgradeable:
		return fmt.Sprintf("%s: %s (possible attack) authority %s -> %s, fingerprint %s -> %s",
			program.Label, event.Kind,
			types.OptionalKeyString(prev.UpgradeAuthority),
			types.OptionalKeyString(cur.UpgradeAuthority),
			shortFingerprint(prev.CodeFingerprint),
			shortFingerprint(cur.CodeFingerprint))

	case types.ProgramUpgraded:
		return fmt.Sprintf("%s: %s fingerprint %s -> %s, size %d -> %d bytes",
			program.Label, event.Kind,
			shortFingerprint(prev.CodeFingerprint),
			shortFingerprint(cur.CodeFingerprint),
			prev.CodeSize, cur.CodeSize)

	case types.BalanceShift:
		delta := int64(cur.Lamports) - int64(prev.Lamports)
		return fmt.Sprintf("%s: %s authority %s balance %d -> %d lamports (delta %+d, %.1f%%, %.4f SOL)",
			program.Label, event.Kind,
			types.OptionalKeyString(cur.UpgradeAuthority),
			prev.Lamports, cur.Lamports, delta,
			diff.RelativeChange(prev.Lamports, cur.Lamports)*100,
			types.LamportsToSOL(cur.Lamports))
	}

	return fmt.Sprintf("%s: %s", program.Label, event.Kind)
}

func shortFingerprint(fp string) string {
	if fp == "" {
		return "none"
	}
	if len(fp) > 16 {
		return fp[:16]
	}
	return fp
}
