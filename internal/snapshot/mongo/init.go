package mongo

import (
	"context"
	"fmt"

	"github.com/lugondev/solana-guardian/internal/config"
	"github.com/lugondev/solana-guardian/internal/snapshot"
)

func init() {
	snapshot.Register(config.StorageMongoDB, func(ctx context.Context, cfg config.StorageConfig) (snapshot.Store, error) {
		store, err := New(ctx, &cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create mongo snapshot store: %w", err)
		}
		return store, nil
	})
}
