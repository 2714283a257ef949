package diff

import (
	"reflect"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/solana-guardian/pkg/types"
)

var (
	programX   = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	authorityA = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	authorityB = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
)

func keyPtr(k solana.PublicKey) *solana.PublicKey { return &k }

func upgradeable(authority solana.PublicKey, fingerprint string, lamports uint64) types.ProgramState {
	return types.ProgramState{
		ProgramID:        programX,
		ObservedAt:       time.Unix(1700000000, 0),
		Owner:            solana.BPFLoaderUpgradeableProgramID,
		Executable:       true,
		UpgradeAuthority: keyPtr(authority),
		IsUpgradeable:    true,
		Lamports:         lamports,
		CodeFingerprint:  fingerprint,
	}
}

func immutable(fingerprint string, lamports uint64) types.ProgramState {
	return types.ProgramState{
		ProgramID:       programX,
		ObservedAt:      time.Unix(1700000000, 0),
		Owner:           solana.BPFLoaderUpgradeableProgramID,
		Executable:      true,
		IsUpgradeable:   false,
		Lamports:        lamports,
		CodeFingerprint: fingerprint,
	}
}

func kinds(events []types.TransitionEvent) []types.TransitionKind {
	out := make([]types.TransitionKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestDiffBaseline(t *testing.T) {
	if events := Diff(nil, upgradeable(authorityA, "h1", 1000), DefaultOptions()); len(events) != 0 {
		t.Errorf("Expected no events for baseline, got %v", kinds(events))
	}
}

func TestDiffIdempotent(t *testing.T) {
	states := []types.ProgramState{
		upgradeable(authorityA, "h1", 1000),
		immutable("h2", 0),
		{ProgramID: programX},
	}
	for _, s := range states {
		prev := s
		cur := s
		cur.ObservedAt = s.ObservedAt.Add(5 * time.Minute)
		if events := Diff(&prev, cur, DefaultOptions()); len(events) != 0 {
			t.Errorf("Expected no events for identical state, got %v", kinds(events))
		}
	}
}

func TestDiffAuthorityChanged(t *testing.T) {
	tests := []struct {
		name string
		prev types.ProgramState
		cur  types.ProgramState
		want []types.TransitionKind
	}{
		{
			name: "reassigned",
			prev: upgradeable(authorityA, "h1", 1000),
			cur:  upgradeable(authorityB, "h1", 1000),
			want: []types.TransitionKind{types.AuthorityChanged},
		},
		{
			name: "renounced",
			prev: upgradeable(authorityA, "h1", 0),
			cur:  immutable("h1", 0),
			want: []types.TransitionKind{types.AuthorityChanged},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Diff(&tt.prev, tt.cur, DefaultOptions())
			if got := kinds(events); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			e := events[0]
			if !types.EqualOptionalKeys(e.Previous.UpgradeAuthority, tt.prev.UpgradeAuthority) ||
				!types.EqualOptionalKeys(e.Current.UpgradeAuthority, tt.cur.UpgradeAuthority) {
				t.Error("Event must carry both authority values verbatim")
			}
		})
	}
}

func TestDiffProgramUpgraded(t *testing.T) {
	prev := upgradeable(authorityA, "h1", 1000)
	cur := upgradeable(authorityA, "h2", 1000)
	if got := kinds(Diff(&prev, cur, DefaultOptions())); !reflect.DeepEqual(got, []types.TransitionKind{types.ProgramUpgraded}) {
		t.Errorf("Expected ProgramUpgraded, got %v", got)
	}

	// Fingerprint changes on an immutable program are not upgrades.
	prevImm := immutable("h1", 0)
	curImm := immutable("h2", 0)
	if got := kinds(Diff(&prevImm, curImm, DefaultOptions())); len(got) != 0 {
		t.Errorf("Expected no events for immutable fingerprint change, got %v", got)
	}
}

func TestDiffBalanceThreshold(t *testing.T) {
	opts := Options{BalanceShiftThreshold: 0.2}
	prev := upgradeable(authorityA, "h1", 1000)

	fired := Diff(&prev, upgradeable(authorityA, "h1", 1300), opts)
	if got := kinds(fired); !reflect.DeepEqual(got, []types.TransitionKind{types.BalanceShift}) {
		t.Errorf("Expected BalanceShift for 30%% change, got %v", got)
	}

	quiet := Diff(&prev, upgradeable(authorityA, "h1", 1100), opts)
	if len(quiet) != 0 {
		t.Errorf("Expected no event for 10%% change, got %v", kinds(quiet))
	}

	exact := Diff(&prev, upgradeable(authorityA, "h1", 800), opts)
	if got := kinds(exact); !reflect.DeepEqual(got, []types.TransitionKind{types.BalanceShift}) {
		t.Errorf("Expected BalanceShift for exactly 20%% drop, got %v", got)
	}
}

func TestDiffBalanceFromZero(t *testing.T) {
	prev := upgradeable(authorityA, "h1", 0)
	if got := kinds(Diff(&prev, upgradeable(authorityA, "h1", 1), DefaultOptions())); len(got) != 1 {
		t.Errorf("Expected BalanceShift when funding from zero, got %v", got)
	}
}

func TestDiffImmutableBecameUpgradeable(t *testing.T) {
	// Program X immutable at t0, upgradeable with authority A at t1, same code and balance.
	t0 := immutable("H1", 1000)
	t1 := upgradeable(authorityA, "H1", 1000)

	events := Diff(&t0, t1, DefaultOptions())
	want := []types.TransitionKind{types.ImmutableBecameUpgradeable, types.AuthorityChanged}
	if got := kinds(events); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestDiffImmutableBecameUpgradeableWithCodeChange(t *testing.T) {
	t0 := immutable("H1", 1000)
	t1 := upgradeable(authorityA, "H2", 1000)

	got := kinds(Diff(&t0, t1, DefaultOptions()))
	if len(got) == 0 || got[0] != types.ImmutableBecameUpgradeable {
		t.Fatalf("Expected ImmutableBecameUpgradeable first, got %v", got)
	}
	for _, k := range got {
		if k == types.ProgramUpgraded {
			t.Error("ProgramUpgraded requires both observations to be upgradeable")
		}
	}
}

func TestOptionsFor(t *testing.T) {
	override := 0.05
	program := types.WatchedProgram{ID: programX, Label: "X", Thresholds: &types.Thresholds{BalanceShift: &override}}

	opts := OptionsFor(program, DefaultOptions())
	if opts.BalanceShiftThreshold != 0.05 {
		t.Errorf("Expected override 0.05, got %v", opts.BalanceShiftThreshold)
	}

	plain := OptionsFor(types.WatchedProgram{ID: programX}, DefaultOptions())
	if plain.BalanceShiftThreshold != DefaultBalanceShiftThreshold {
		t.Errorf("Expected default threshold, got %v", plain.BalanceShiftThreshold)
	}
}

func TestBalanceShiftDisabled(t *testing.T) {
	if BalanceShifted(1000, 1_000_000, 0) {
		t.Error("Zero threshold must disable the rule")
	}
}
