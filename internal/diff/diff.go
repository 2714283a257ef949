// Package diff compares two observations of a program and reports the
// security relevant transitions between them.
//
// Diff is a pure function: the same inputs always produce the same events,
// in a fixed order, with no hidden state.
package diff

import (
	"github.com/lugondev/solana-guardian/pkg/types"
)

// DefaultBalanceShiftThreshold is the relative authority balance change that
// raises a BalanceShift event.
const DefaultBalanceShiftThreshold = 0.20

// Options tunes the diff rules.
type Options struct {
	// BalanceShiftThreshold is the minimum |delta| / max(1, previous) that
	// fires BalanceShift. Zero or negative disables the rule.
	BalanceShiftThreshold float64
}

// DefaultOptions returns the free tier options.
func DefaultOptions() Options {
	return Options{BalanceShiftThreshold: DefaultBalanceShiftThreshold}
}

// OptionsFor applies a program's threshold overrides on top of base.
func OptionsFor(program types.WatchedProgram, base Options) Options {
	opts := base
	if program.Thresholds != nil && program.Thresholds.BalanceShift != nil {
		opts.BalanceShiftThreshold = *program.Thresholds.BalanceShift
	}
	return opts
}

// Diff returns the transitions from previous to current. A nil previous is
// a baseline observation and yields no events.
//
// Rules fire independently; events are ordered ImmutableBecameUpgradeable,
// AuthorityChanged, ProgramUpgraded, BalanceShift.
func Diff(previous *types.ProgramState, current types.ProgramState, opts Options) []types.TransitionEvent {
	if previous == nil {
		return nil
	}

	prev := *previous
	var events []types.TransitionEvent
	emit := func(kind types.TransitionKind) {
		events = append(events, types.TransitionEvent{
			ProgramID: current.ProgramID,
			Kind:      kind,
			Previous:  prev,
			Current:   current,
		})
	}

	if !prev.IsUpgradeable && current.IsUpgradeable {
		emit(types.ImmutableBecameUpgradeable)
	}

	if !types.EqualOptionalKeys(prev.UpgradeAuthority, current.UpgradeAuthority) {
		emit(types.AuthorityChanged)
	}

	if prev.IsUpgradeable && current.IsUpgradeable && prev.CodeFingerprint != current.CodeFingerprint {
		emit(types.ProgramUpgraded)
	}

	if BalanceShifted(prev.Lamports, current.Lamports, opts.BalanceShiftThreshold) {
		emit(types.BalanceShift)
	}

	return events
}

// BalanceShifted reports whether the relative change from previous to
// current reaches threshold. The denominator is max(1, previous) so a wallet
// funded from zero always counts as a full shift.
func BalanceShifted(previous, current uint64, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	return RelativeChange(previous, current) >= threshold
}

// RelativeChange returns |current - previous| / max(1, previous).
func RelativeChange(previous, current uint64) float64 {
	var delta uint64
	if current >= previous {
		delta = current - previous
	} else {
		delta = previous - current
	}
	denom := previous
	if denom < 1 {
		denom = 1
	}
	return float64(delta) / float64(denom)
}
