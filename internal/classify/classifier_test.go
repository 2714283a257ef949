package classify

import (
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/solana-guardian/internal/diff"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/pkg/types"
)

var (
	programX   = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	authorityA = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	authorityB = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
	watched    = types.WatchedProgram{ID: programX, Label: "Jupiter v6"}
	fixedNow   = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

func keyPtr(k solana.PublicKey) *solana.PublicKey { return &k }

func TestSeverityTableIsTotal(t *testing.T) {
	want := map[types.TransitionKind]types.Severity{
		types.AuthorityChanged:           types.SeverityCritical,
		types.ImmutableBecameUpgradeable: types.SeverityCritical,
		types.ProgramUpgraded:            types.SeverityHigh,
		types.BalanceShift:               types.SeverityMedium,
	}

	for _, kind := range types.AllTransitionKinds() {
		got, ok := DefaultSeverity(kind)
		if !ok {
			t.Errorf("Kind %s has no severity", kind)
			continue
		}
		if got != want[kind] {
			t.Errorf("Kind %s: expected %s, got %s", kind, want[kind], got)
		}
	}
}

func TestClassifyUnknownKind(t *testing.T) {
	c := New()
	_, err := c.Classify(watched, types.TransitionEvent{ProgramID: programX, Kind: types.NumTransitionKinds}, 1)
	if !gerrors.Is(err, gerrors.ErrClassificationFailed) {
		t.Errorf("Expected classification error, got %v", err)
	}
}

func TestClassifyAuthorityChanged(t *testing.T) {
	c := New(WithClock(func() time.Time { return fixedNow }))
	event := types.TransitionEvent{
		ProgramID: programX,
		Kind:      types.AuthorityChanged,
		Previous:  types.ProgramState{UpgradeAuthority: keyPtr(authorityA), IsUpgradeable: true},
		Current:   types.ProgramState{UpgradeAuthority: keyPtr(authorityB), IsUpgradeable: true},
	}

	alert, err := c.Classify(watched, event, 7)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if alert.Severity != types.SeverityCritical {
		t.Errorf("Expected CRITICAL, got %s", alert.Severity)
	}
	if !alert.Timestamp.Equal(fixedNow) || alert.Tick != 7 || alert.Label != "Jupiter v6" {
		t.Errorf("Unexpected alert metadata: %+v", alert)
	}
	for _, want := range []string{"Jupiter v6", "AuthorityChanged", authorityA.String(), authorityB.String()} {
		if !strings.Contains(alert.Message, want) {
			t.Errorf("Expected message to contain %q, got %q", want, alert.Message)
		}
	}
}

func TestClassifyRenouncedMentionsNone(t *testing.T) {
	event := types.TransitionEvent{
		Kind:     types.AuthorityChanged,
		Previous: types.ProgramState{UpgradeAuthority: keyPtr(authorityA)},
		Current:  types.ProgramState{},
	}
	if msg := Message(watched, event); !strings.HasSuffix(msg, "-> none") {
		t.Errorf("Expected renouncement to render as none, got %q", msg)
	}
}

func TestClassifyMessages(t *testing.T) {
	tests := []struct {
		kind     types.TransitionKind
		prev     types.ProgramState
		cur      types.ProgramState
		severity types.Severity
		contains []string
	}{
		{
			kind:     types.ProgramUpgraded,
			prev:     types.ProgramState{CodeFingerprint: "aaaaaaaaaaaaaaaaaaaaaaaa", CodeSize: 100},
			cur:      types.ProgramState{CodeFingerprint: "bbbbbbbbbbbbbbbbbbbbbbbb", CodeSize: 120},
			severity: types.SeverityHigh,
			contains: []string{"ProgramUpgraded", "aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb", "100 -> 120"},
		},
		{
			kind:     types.BalanceShift,
			prev:     types.ProgramState{Lamports: 1000, UpgradeAuthority: keyPtr(authorityA)},
			cur:      types.ProgramState{Lamports: 1300, UpgradeAuthority: keyPtr(authorityA)},
			severity: types.SeverityMedium,
			contains: []string{"BalanceShift", "1000 -> 1300", "+300", "30.0%"},
		},
		{
			kind:     types.ImmutableBecameUpgradeable,
			prev:     types.ProgramState{CodeFingerprint: "H1"},
			cur:      types.ProgramState{CodeFingerprint: "H1", UpgradeAuthority: keyPtr(authorityA), IsUpgradeable: true},
			severity: types.SeverityCritical,
			contains: []string{"ImmutableBecameUpgradeable", "none -> " + authorityA.String()},
		},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			alert, err := c.Classify(watched, types.TransitionEvent{ProgramID: programX, Kind: tt.kind, Previous: tt.prev, Current: tt.cur}, 1)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if alert.Severity != tt.severity {
				t.Errorf("Expected %s, got %s", tt.severity, alert.Severity)
			}
			for _, want := range tt.contains {
				if !strings.Contains(alert.Message, want) {
					t.Errorf("Expected message to contain %q, got %q", want, alert.Message)
				}
			}
		})
	}
}

func TestOverrideHook(t *testing.T) {
	c := New(WithOverride(func(p types.WatchedProgram, k types.TransitionKind, s types.Severity) types.Severity {
		if k == types.BalanceShift {
			return types.SeverityHigh
		}
		return s
	}))

	alert, err := c.Classify(watched, types.TransitionEvent{Kind: types.BalanceShift}, 1)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if alert.Severity != types.SeverityHigh {
		t.Errorf("Expected override to apply, got %s", alert.Severity)
	}
}

// Scenario: program X immutable at t0, upgradeable with authority A at t1,
// same fingerprint and balance. Two CRITICAL alerts and nothing else.
func TestImmutableBecameUpgradeableScenario(t *testing.T) {
	t0 := types.ProgramState{ProgramID: programX, CodeFingerprint: "H1", Lamports: 1000}
	t1 := types.ProgramState{ProgramID: programX, CodeFingerprint: "H1", Lamports: 1000, IsUpgradeable: true, UpgradeAuthority: keyPtr(authorityA)}

	events := diff.Diff(&t0, t1, diff.DefaultOptions())
	alerts, errs := New().ClassifyAll(watched, events, 2)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(alerts))
	}

	seen := map[types.TransitionKind]types.Severity{}
	for _, a := range alerts {
		seen[a.Kind] = a.Severity
	}
	if seen[types.ImmutableBecameUpgradeable] != types.SeverityCritical {
		t.Error("Expected CRITICAL ImmutableBecameUpgradeable")
	}
	if seen[types.AuthorityChanged] != types.SeverityCritical {
		t.Error("Expected CRITICAL AuthorityChanged")
	}
	if _, ok := seen[types.ProgramUpgraded]; ok {
		t.Error("Unexpected ProgramUpgraded")
	}
	if _, ok := seen[types.BalanceShift]; ok {
		t.Error("Unexpected BalanceShift")
	}
}
