package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity is the urgency of an alert.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityInfo:
		return "INFO"
	default:
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Alert is a classified transition ready for delivery.
type Alert struct {
	ID        uuid.UUID      `json:"id"`
	ProgramID Pubkey         `json:"program_id"`
	Label     string         `json:"label"`
	Severity  Severity       `json:"severity"`
	Kind      TransitionKind `json:"kind"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`

	// Tick is the scheduler cycle that produced the alert.
	Tick uint64 `json:"tick,omitempty"`
}

// Title renders "[SEVERITY] [label] kind".
func (a Alert) Title() string {
	return fmt.Sprintf("[%s] [%s] %s", a.Severity, a.Label, a.Kind)
}
