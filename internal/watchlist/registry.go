// Package watchlist holds the ordered, validated set of programs guardian
// monitors.
//
// A Registry is built once from configuration and never changes during a
// run. Any malformed or duplicate entry is a fatal configuration error.
package watchlist

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/solana-guardian/internal/config"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// ErrProgramNotFound is returned by Resolve for ids outside the watchlist.
var ErrProgramNotFound = gerrors.ErrNotFound

// Registry is an immutable ordered watchlist.
type Registry struct {
	programs []types.WatchedProgram
	index    map[solana.PublicKey]int
}

// Option configures registry construction.
type Option func(*options)

type options struct {
	maxPrograms int
}

// WithMaxPrograms caps the number of entries. Zero means unlimited.
func WithMaxPrograms(n int) Option {
	return func(o *options) {
		o.maxPrograms = n
	}
}

// New validates entries and builds a registry.
func New(entries []config.WatchEntry, opts ...Option) (*Registry, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if len(entries) == 0 {
		return nil, gerrors.ConfigInvalid("watchlist is empty")
	}
	if o.maxPrograms > 0 && len(entries) > o.maxPrograms {
		return nil, gerrors.ConfigInvalid("watchlist has %d programs, tier allows %d", len(entries), o.maxPrograms)
	}

	r := &Registry{
		programs: make([]types.WatchedProgram, 0, len(entries)),
		index:    make(map[solana.PublicKey]int, len(entries)),
	}

	for i, entry := range entries {
		program, err := parseEntry(entry)
		if err != nil {
			return nil, gerrors.ConfigInvalid("watchlist entry %d: %v", i, err)
		}
		if prev, dup := r.index[program.ID]; dup {
			return nil, gerrors.ConfigInvalid("watchlist entry %d: duplicate program %s (already entry %d)", i, program.ID, prev)
		}
		r.index[program.ID] = len(r.programs)
		r.programs = append(r.programs, program)
	}

	return r, nil
}

func parseEntry(entry config.WatchEntry) (types.WatchedProgram, error) {
	raw := strings.TrimSpace(entry.ID)
	if raw == "" {
		return types.WatchedProgram{}, fmt.Errorf("missing program id")
	}

	id, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return types.WatchedProgram{}, fmt.Errorf("malformed program id %q: %w", raw, err)
	}
	if id.IsZero() {
		return types.WatchedProgram{}, fmt.Errorf("program id %q is the zero key", raw)
	}

	label := strings.TrimSpace(entry.Label)
	if label == "" {
		label = types.ShortKey(id)
	}

	program := types.WatchedProgram{ID: id, Label: label}

	if entry.Thresholds != nil && entry.Thresholds.BalanceShift != nil {
		v := *entry.Thresholds.BalanceShift
		if v < 0 {
			return types.WatchedProgram{}, fmt.Errorf("negative balance_shift threshold %v for %s", v, label)
		}
		program.Thresholds = &types.Thresholds{BalanceShift: &v}
	}

	return program, nil
}

// List returns the programs in configured order. The slice is a copy.
func (r *Registry) List() []types.WatchedProgram {
	out := make([]types.WatchedProgram, len(r.programs))
	copy(out, r.programs)
	return out
}

// Resolve looks up a program by id.
func (r *Registry) Resolve(id solana.PublicKey) (types.WatchedProgram, error) {
	i, ok := r.index[id]
	if !ok {
		return types.WatchedProgram{}, gerrors.NotFound(fmt.Sprintf("program %s in watchlist", id))
	}
	return r.programs[i], nil
}

// Len returns the number of watched programs.
func (r *Registry) Len() int {
	return len(r.programs)
}
