// Package postgres stores program snapshots in PostgreSQL.
//
// Import it for its side effect to make the "postgres" storage type
// available to snapshot.Open.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/solana-guardian/internal/config"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/internal/snapshot"
	"github.com/lugondev/solana-guardian/pkg/types"
)

const upsertQuery = `
	INSERT INTO program_snapshots (
		program_id, observed_at, slot, owner, executable, upgrade_authority,
		is_upgradeable, lamports, code_fingerprint, program_data_address, code_size, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (program_id) DO UPDATE SET
		observed_at = EXCLUDED.observed_at,
		slot = EXCLUDED.slot,
		owner = EXCLUDED.owner,
		executable = EXCLUDED.executable,
		upgrade_authority = EXCLUDED.upgrade_authority,
		is_upgradeable = EXCLUDED.is_upgradeable,
		lamports = EXCLUDED.lamports,
		code_fingerprint = EXCLUDED.code_fingerprint,
		program_data_address = EXCLUDED.program_data_address,
		code_size = EXCLUDED.code_size,
		updated_at = EXCLUDED.updated_at
	WHERE program_snapshots.observed_at <= EXCLUDED.observed_at
`

const selectQuery = `
	SELECT program_id, observed_at, slot, owner, executable, upgrade_authority,
		is_upgradeable, lamports, code_fingerprint, program_data_address, code_size, updated_at
	FROM program_snapshots WHERE program_id = $1
`

// Store is a snapshot.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// ConnString builds the pgx connection string for cfg.
func ConnString(cfg *config.PostgresConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)
}

// New connects, pings and migrates.
func New(ctx context.Context, cfg *config.PostgresConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := NewMigrator(pool).Up(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Get implements snapshot.Store.
func (s *Store) Get(ctx context.Context, id solana.PublicKey) (types.ProgramState, bool, error) {
	var m snapshot.Model
	err := s.pool.QueryRow(ctx, selectQuery, id.String()).Scan(
		&m.ProgramID, &m.ObservedAt, &m.Slot, &m.Owner, &m.Executable, &m.UpgradeAuthority,
		&m.IsUpgradeable, &m.Lamports, &m.CodeFingerprint, &m.ProgramDataAddress, &m.CodeSize, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ProgramState{}, false, nil
	}
	if err != nil {
		return types.ProgramState{}, false, gerrors.StoreFailed("load snapshot for "+id.String(), err)
	}

	state, err := m.State()
	if err != nil {
		return types.ProgramState{}, false, err
	}
	return state, true, nil
}

// Put implements snapshot.Store. The upsert only replaces a row whose
// observed_at is not newer than the incoming one.
func (s *Store) Put(ctx context.Context, id solana.PublicKey, state types.ProgramState) error {
	if err := ctx.Err(); err != nil {
		return gerrors.ErrContextCanceled.WithCause(err)
	}

	m := snapshot.ModelFromState(state)
	m.ProgramID = id.String()

	tag, err := s.pool.Exec(ctx, upsertQuery,
		m.ProgramID, m.ObservedAt, m.Slot, m.Owner, m.Executable, m.UpgradeAuthority,
		m.IsUpgradeable, m.Lamports, m.CodeFingerprint, m.ProgramDataAddress, m.CodeSize, m.UpdatedAt,
	)
	if err != nil {
		return gerrors.StoreFailed("save snapshot for "+id.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return gerrors.StoreFailed("save snapshot for "+id.String(), snapshot.ErrStaleSnapshot)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements snapshot.Store.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
