package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

var (
	programX    = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	programData = solana.MustPublicKeyFromBase58("4Ec7ZxZS6Sbdg5UGSLHbAnM7GQHp2eFd4KYWRexAipQT")
	authorityA  = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
)

type fakeClient struct {
	accounts   map[solana.PublicKey]*rpc.Account
	balances   map[solana.PublicKey]uint64
	accountErr error
	balanceErr error
	calls      int
}

func (c *fakeClient) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	c.calls++
	if c.accountErr != nil {
		return nil, c.accountErr
	}
	acc, ok := c.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: 250_000_000}},
		Value:      acc,
	}, nil
}

func (c *fakeClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	c.calls++
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return &rpc.GetBalanceResult{Value: c.balances[account]}, nil
}

func upgradeableClient(authority *solana.PublicKey, code []byte) *fakeClient {
	return &fakeClient{
		accounts: map[solana.PublicKey]*rpc.Account{
			programX: {
				Owner:      solana.BPFLoaderUpgradeableProgramID,
				Executable: true,
				Data:       rpc.DataBytesOrJSONFromBytes(EncodeProgramAccount(programData)),
			},
			programData: {
				Owner: solana.BPFLoaderUpgradeableProgramID,
				Data:  rpc.DataBytesOrJSONFromBytes(EncodeProgramData(123, authority, code)),
			},
		},
		balances: map[solana.PublicKey]uint64{
			authorityA: 5 * solana.LAMPORTS_PER_SOL,
		},
	}
}

func TestDecodeProgramDataRoundTrip(t *testing.T) {
	code := []byte("\x7fELF fake program")
	pd, err := DecodeProgramData(EncodeProgramData(42, &authorityA, code))
	if err != nil {
		t.Fatalf("DecodeProgramData failed: %v", err)
	}
	if pd.Slot != 42 {
		t.Errorf("Expected slot 42, got %d", pd.Slot)
	}
	if pd.UpgradeAuthority == nil || !pd.UpgradeAuthority.Equals(authorityA) {
		t.Errorf("Expected authority %s, got %v", authorityA, pd.UpgradeAuthority)
	}
	if string(pd.Code) != string(code) {
		t.Errorf("Unexpected code bytes %q", pd.Code)
	}

	immutable, err := DecodeProgramData(EncodeProgramData(42, nil, code))
	if err != nil {
		t.Fatalf("DecodeProgramData failed: %v", err)
	}
	if immutable.UpgradeAuthority != nil {
		t.Error("Expected no authority")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"short program", func() error { _, err := DecodeProgramAccount([]byte{2, 0, 0}); return err }},
		{"wrong program tag", func() error {
			data := EncodeProgramAccount(programData)
			data[0] = 3
			_, err := DecodeProgramAccount(data)
			return err
		}},
		{"short programdata", func() error { _, err := DecodeProgramData(make([]byte, 20)); return err }},
		{"bad option byte", func() error {
			data := EncodeProgramData(1, nil, nil)
			data[12] = 7
			_, err := DecodeProgramData(data)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !gerrors.Is(err, gerrors.ErrDecodeFailed) {
				t.Errorf("Expected decode error, got %v", err)
			}
		})
	}
}

func TestFetchUpgradeable(t *testing.T) {
	code := []byte("program v1")
	observed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := New(upgradeableClient(&authorityA, code), rpc.CommitmentConfirmed).
		WithClock(func() time.Time { return observed })

	state, err := f.FetchProgramState(context.Background(), programX)
	if err != nil {
		t.Fatalf("FetchProgramState failed: %v", err)
	}

	if !state.IsUpgradeable {
		t.Error("Expected upgradeable program")
	}
	if state.UpgradeAuthority == nil || !state.UpgradeAuthority.Equals(authorityA) {
		t.Errorf("Unexpected authority %v", state.UpgradeAuthority)
	}
	if state.Lamports != 5*solana.LAMPORTS_PER_SOL {
		t.Errorf("Expected authority balance, got %d", state.Lamports)
	}
	if state.CodeFingerprint != Fingerprint(code) || state.CodeSize != len(code) {
		t.Errorf("Unexpected fingerprint %s size %d", state.CodeFingerprint, state.CodeSize)
	}
	if state.ProgramDataAddress == nil || !state.ProgramDataAddress.Equals(programData) {
		t.Error("Expected programdata address")
	}
	if !state.ObservedAt.Equal(observed) {
		t.Errorf("Unexpected ObservedAt %v", state.ObservedAt)
	}
}

func TestFetchImmutable(t *testing.T) {
	client := upgradeableClient(nil, []byte("frozen"))
	state, err := New(client, "").FetchProgramState(context.Background(), programX)
	if err != nil {
		t.Fatalf("FetchProgramState failed: %v", err)
	}
	if state.IsUpgradeable || state.UpgradeAuthority != nil {
		t.Error("Expected immutable program")
	}
	if state.Lamports != 0 {
		t.Errorf("Expected zero lamports without authority, got %d", state.Lamports)
	}
	// Two account reads, no balance call.
	if client.calls != 2 {
		t.Errorf("Expected 2 RPC calls, got %d", client.calls)
	}
}

func TestFetchLegacyLoader(t *testing.T) {
	client := &fakeClient{accounts: map[solana.PublicKey]*rpc.Account{
		programX: {
			Owner:      solana.BPFLoaderProgramID,
			Executable: true,
			Data:       rpc.DataBytesOrJSONFromBytes([]byte("legacy elf")),
		},
	}}

	state, err := New(client, "").FetchProgramState(context.Background(), programX)
	if err != nil {
		t.Fatalf("FetchProgramState failed: %v", err)
	}
	if state.IsUpgradeable || state.CodeFingerprint != Fingerprint([]byte("legacy elf")) {
		t.Errorf("Unexpected legacy state %+v", state)
	}
}

func TestFetchDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		account *rpc.Account
	}{
		{"not executable", &rpc.Account{Owner: solana.BPFLoaderUpgradeableProgramID, Data: rpc.DataBytesOrJSONFromBytes(EncodeProgramAccount(programData))}},
		{"unknown loader", &rpc.Account{Owner: solana.TokenProgramID, Executable: true}},
		{"garbled", &rpc.Account{Owner: solana.BPFLoaderUpgradeableProgramID, Executable: true, Data: rpc.DataBytesOrJSONFromBytes([]byte{1, 2})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{accounts: map[solana.PublicKey]*rpc.Account{programX: tt.account}}
			_, err := New(client, "").FetchProgramState(context.Background(), programX)
			if !gerrors.Is(err, gerrors.ErrDecodeFailed) {
				t.Errorf("Expected decode error, got %v", err)
			}
			if gerrors.IsRetryable(err) {
				t.Error("Decode errors must not be retryable")
			}
		})
	}
}

func TestFetchMissingProgramData(t *testing.T) {
	client := upgradeableClient(&authorityA, nil)
	delete(client.accounts, programData)

	_, err := New(client, "").FetchProgramState(context.Background(), programX)
	if !gerrors.Is(err, gerrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestClassifyRPCError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{"not found", rpc.ErrNotFound, gerrors.ErrNotFound, false},
		{"rate limited", jsonrpc.NewHTTPError(429, errors.New("too many requests")), gerrors.ErrRPCRateLimited, true},
		{"bad gateway", jsonrpc.NewHTTPError(502, errors.New("bad gateway")), gerrors.ErrRPCTimeout, true},
		{"forbidden", jsonrpc.NewHTTPError(403, errors.New("forbidden")), gerrors.ErrFetchFailed, false},
		{"rpc error object", &jsonrpc.RPCError{Code: -32602, Message: "invalid param"}, gerrors.ErrFetchFailed, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), gerrors.ErrRPCTimeout, true},
		{"canceled", context.Canceled, gerrors.ErrContextCanceled, false},
		{"transport", errors.New("connection reset by peer"), gerrors.ErrRPCTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRPCError("program", tt.err)
			if !gerrors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if gerrors.IsRetryable(err) != tt.retryable {
				t.Errorf("Expected retryable=%v for %v", tt.retryable, err)
			}
		})
	}
}

func TestFetchBalanceErrorPropagates(t *testing.T) {
	client := upgradeableClient(&authorityA, []byte("code"))
	client.balanceErr = jsonrpc.NewHTTPError(429, errors.New("slow down"))

	_, err := New(client, "").FetchProgramState(context.Background(), programX)
	if !gerrors.Is(err, gerrors.ErrRPCRateLimited) {
		t.Errorf("Expected rate limited, got %v", err)
	}
}
