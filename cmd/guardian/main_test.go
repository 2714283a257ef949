package main

import (
	"errors"
	"fmt"
	"testing"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"config error", gerrors.ConfigInvalid("guardian.workers must be at least 1, got %d", 0), 2},
		{"wrapped config error", fmt.Errorf("startup: %w", gerrors.ConfigInvalid("watchlist is empty")), 2},
		{"runtime error", gerrors.StoreFailed("open postgres snapshot store", errors.New("refused")), 1},
		{"plain error", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("Expected exit code %d, got %d", tt.want, got)
			}
		})
	}
}
