package scheduler

import (
	"fmt"
	"time"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Phase is where a single program's unit of work currently is.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseDiffing
	PhaseEmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseFetching:
		return "Fetching"
	case PhaseDiffing:
		return "Diffing"
	case PhaseEmitting:
		return "Emitting"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// TickReport summarizes one tick.
type TickReport struct {
	Tick     uint64
	Started  time.Time
	Duration time.Duration

	// Checked counts programs whose snapshot was updated.
	Checked int

	// Baselined counts first observations.
	Baselined int

	// Failed counts programs whose check failed; their snapshot is unchanged.
	Failed int

	// Alerts counts alerts handed to the sink.
	Alerts int

	// Skipped counts programs not dispatched or abandoned because of a
	// stop request.
	Skipped int
}

// Summary renders the one line tick summary.
func (r TickReport) Summary() string {
	var s string
	switch {
	case r.Alerts == 1:
		s = "1 alert"
	case r.Alerts > 1:
		s = fmt.Sprintf("%d alerts", r.Alerts)
	case r.Failed == 0:
		s = "all clear"
	default:
		s = "no alerts"
	}
	if r.Baselined > 0 {
		s += fmt.Sprintf(", %d programs baselined", r.Baselined)
	}
	if r.Failed > 0 {
		s += fmt.Sprintf(", %d failed", r.Failed)
	}
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	return s
}
