// Package fetcher reads program state from a Solana RPC node.
//
// A fetch is a sequence of read-only RPC calls: the program account, the
// programdata account for upgradeable programs, and the authority balance.
// Errors are mapped onto the guardian taxonomy so callers can decide what
// to retry without knowing the transport.
package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/lugondev/solana-guardian/internal/config"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// Fetcher produces a fresh ProgramState for a program.
type Fetcher interface {
	FetchProgramState(ctx context.Context, programID solana.PublicKey) (types.ProgramState, error)
}

// Client is the subset of the solana-go RPC client the fetcher needs.
// *rpc.Client satisfies it.
type Client interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// RPCFetcher implements Fetcher over JSON-RPC.
type RPCFetcher struct {
	client     Client
	commitment rpc.CommitmentType
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an RPCFetcher over client.
func New(client Client, commitment rpc.CommitmentType) *RPCFetcher {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &RPCFetcher{
		client:     client,
		commitment: commitment,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// NewFromConfig creates an RPCFetcher for the configured endpoint.
func NewFromConfig(cfg config.SolanaConfig) *RPCFetcher {
	return New(rpc.New(cfg.GetRPCEndpoint()), rpc.CommitmentType(cfg.Commitment))
}

// WithLogger sets a custom logger.
func (f *RPCFetcher) WithLogger(logger *slog.Logger) *RPCFetcher {
	f.logger = logger
	return f
}

// WithClock sets the clock used for ObservedAt.
func (f *RPCFetcher) WithClock(now func() time.Time) *RPCFetcher {
	f.now = now
	return f
}

// FetchProgramState implements Fetcher.
func (f *RPCFetcher) FetchProgramState(ctx context.Context, programID solana.PublicKey) (types.ProgramState, error) {
	account, slot, err := f.getAccount(ctx, programID, "program account "+programID.String())
	if err != nil {
		return types.ProgramState{}, err
	}

	state := types.ProgramState{
		ProgramID:  programID,
		Slot:       slot,
		Owner:      account.Owner,
		Executable: account.Executable,
	}

	if !account.Executable {
		return types.ProgramState{}, gerrors.DecodeFailed("program "+programID.String()+": account is not executable", nil)
	}

	data := accountData(account)

	switch {
	case account.Owner.Equals(solana.BPFLoaderUpgradeableProgramID):
		if err := f.fillUpgradeable(ctx, &state, data); err != nil {
			return types.ProgramState{}, err
		}

	case account.Owner.Equals(solana.BPFLoaderProgramID),
		account.Owner.Equals(solana.BPFLoaderDeprecatedProgramID),
		account.Owner.Equals(NativeLoaderProgramID):
		state.CodeFingerprint = Fingerprint(data)
		state.CodeSize = len(data)

	default:
		return types.ProgramState{}, gerrors.DecodeFailed("program "+programID.String()+": unknown loader "+account.Owner.String(), nil)
	}

	if state.UpgradeAuthority != nil {
		lamports, err := f.getBalance(ctx, *state.UpgradeAuthority)
		if err != nil {
			return types.ProgramState{}, err
		}
		state.Lamports = lamports
	}

	state.ObservedAt = f.now()

	f.logger.Debug("fetched program state",
		"program", programID.String(),
		"slot", state.Slot,
		"mutability", state.Mutability(),
		"authority", types.OptionalKeyString(state.UpgradeAuthority),
		"code_size", state.CodeSize,
	)

	return state, nil
}

func (f *RPCFetcher) fillUpgradeable(ctx context.Context, state *types.ProgramState, data []byte) error {
	program, err := DecodeProgramAccount(data)
	if err != nil {
		return err
	}

	pdAddress := program.ProgramDataAddress
	state.ProgramDataAddress = &pdAddress

	pdAccount, pdSlot, err := f.getAccount(ctx, pdAddress, "programdata account "+pdAddress.String())
	if err != nil {
		return err
	}
	if pdSlot > state.Slot {
		state.Slot = pdSlot
	}

	pd, err := DecodeProgramData(accountData(pdAccount))
	if err != nil {
		return err
	}

	state.UpgradeAuthority = pd.UpgradeAuthority
	state.IsUpgradeable = pd.UpgradeAuthority != nil
	state.CodeFingerprint = Fingerprint(pd.Code)
	state.CodeSize = len(pd.Code)
	return nil
}

func (f *RPCFetcher) getAccount(ctx context.Context, pubkey solana.PublicKey, what string) (*rpc.Account, uint64, error) {
	result, err := f.client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: f.commitment,
	})
	if err != nil {
		return nil, 0, classifyRPCError(what, err)
	}
	if result == nil || result.Value == nil {
		return nil, 0, gerrors.NotFound(what)
	}
	return result.Value, result.Context.Slot, nil
}

func (f *RPCFetcher) getBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	what := "balance of " + pubkey.String()
	result, err := f.client.GetBalance(ctx, pubkey, f.commitment)
	if err != nil {
		return 0, classifyRPCError(what, err)
	}
	if result == nil {
		return 0, gerrors.FetchFailed(what, nil)
	}
	return result.Value, nil
}

func accountData(account *rpc.Account) []byte {
	if account == nil || account.Data == nil {
		return nil
	}
	return account.Data.GetBinary()
}
