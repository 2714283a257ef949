package snapshot

import (
	"context"
	"sort"
	"sync"

	"github.com/lugondev/solana-guardian/internal/config"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

// Factory opens a Store for a storage configuration.
type Factory func(ctx context.Context, cfg config.StorageConfig) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		config.StorageMemory: func(context.Context, config.StorageConfig) (Store, error) {
			return NewMemoryStore(), nil
		},
	}
)

// Register makes a backend available under name. Database backends call it
// from init so the core never imports a driver.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends returns the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the Store selected by cfg.Type. An empty type is memory.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	name := cfg.Type
	if name == "" {
		name = config.StorageMemory
	}

	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, gerrors.ConfigInvalid(
			"storage backend %q not registered - import _ \"github.com/lugondev/solana-guardian/internal/snapshot/%s\"",
			name, name)
	}

	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, gerrors.StoreFailed("open "+name+" snapshot store", err)
	}
	return store, nil
}
