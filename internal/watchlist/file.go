package watchlist

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lugondev/solana-guardian/internal/config"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

// fileFormat is the on-disk watchlist layout:
//
//	programs:
//	  - id: JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4
//	    label: Jupiter v6
//	    thresholds:
//	      balance_shift: 0.1
type fileFormat struct {
	Programs []config.WatchEntry `yaml:"programs"`
}

// LoadFile reads a YAML watchlist.
func LoadFile(path string) ([]config.WatchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.ConfigInvalid("failed to read watchlist %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML watchlist document. Unknown keys are rejected so a
// typo cannot silently drop a threshold override.
func Parse(data []byte) ([]config.WatchEntry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f fileFormat
	if err := dec.Decode(&f); err != nil {
		return nil, gerrors.ConfigInvalid("failed to parse watchlist: %v", err)
	}
	return f.Programs, nil
}

// Entries picks the watchlist source: file, inline programs, or the free
// tier defaults.
func Entries(cfg config.WatchlistConfig) ([]config.WatchEntry, error) {
	if cfg.File != "" {
		return LoadFile(cfg.File)
	}
	if len(cfg.Programs) > 0 {
		return cfg.Programs, nil
	}
	return Defaults(), nil
}

// FromConfig builds the registry described by cfg.
func FromConfig(cfg *config.Config) (*Registry, error) {
	entries, err := Entries(cfg.Watchlist)
	if err != nil {
		return nil, err
	}
	return New(entries, WithMaxPrograms(cfg.Guardian.MaxPrograms))
}
