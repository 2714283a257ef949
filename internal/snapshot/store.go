// Package snapshot keeps the last known state of every watched program.
//
// The scheduler is the only writer. Backends must never let an older
// observation replace a newer one; Put reports that case as
// ErrStaleSnapshot and leaves the stored state untouched.
package snapshot

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/solana-guardian/pkg/types"
)

// ErrStaleSnapshot is the cause of a Put whose state is older than the
// stored one.
var ErrStaleSnapshot = errors.New("snapshot is older than the stored state")

// Store persists the last observation per program.
type Store interface {
	// Get returns the stored state and true, or false when the program has
	// never been observed.
	Get(ctx context.Context, id solana.PublicKey) (types.ProgramState, bool, error)

	// Put replaces the stored state for id.
	Put(ctx context.Context, id solana.PublicKey, state types.ProgramState) error

	Close() error
}

// IsStale reports whether err was caused by a stale Put.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleSnapshot)
}
