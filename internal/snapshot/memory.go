package snapshot

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/pkg/types"
)

type partition struct {
	mu    sync.RWMutex
	state types.ProgramState
	ok    bool
}

// MemoryStore is a Store held in process memory.
//
// Each program has its own partition and lock, so writers for different
// programs never contend. The partition map itself is only write-locked
// the first time a program is seen.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[solana.PublicKey]*partition
}

// NewMemoryStore creates a MemoryStore with partitions for ids. Programs not
// listed get a partition on first use.
func NewMemoryStore(ids ...solana.PublicKey) *MemoryStore {
	s := &MemoryStore{
		partitions: make(map[solana.PublicKey]*partition, len(ids)),
	}
	for _, id := range ids {
		s.partitions[id] = &partition{}
	}
	return s
}

func (s *MemoryStore) lookup(id solana.PublicKey, create bool) *partition {
	s.mu.RLock()
	p, ok := s.partitions[id]
	s.mu.RUnlock()
	if ok || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[id]; !ok {
		p = &partition{}
		s.partitions[id] = p
	}
	return p
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id solana.PublicKey) (types.ProgramState, bool, error) {
	p := s.lookup(id, false)
	if p == nil {
		return types.ProgramState{}, false, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.ok, nil
}

// Put implements Store. A canceled context applies nothing.
func (s *MemoryStore) Put(ctx context.Context, id solana.PublicKey, state types.ProgramState) error {
	if err := ctx.Err(); err != nil {
		return gerrors.ErrContextCanceled.WithCause(err)
	}

	p := s.lookup(id, true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ok && state.ObservedAt.Before(p.state.ObservedAt) {
		return gerrors.StoreFailed("put snapshot for "+id.String(), ErrStaleSnapshot)
	}

	p.state = state
	p.ok = true
	return nil
}

// Len returns the number of programs with a stored state.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.partitions {
		p.mu.RLock()
		if p.ok {
			n++
		}
		p.mu.RUnlock()
	}
	return n
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
