package types

import "fmt"

// TransitionKind identifies a security relevant change between two
// observations. The set is closed; values outside it are defects.
type TransitionKind uint8

const (
	AuthorityChanged TransitionKind = iota
	ProgramUpgraded
	BalanceShift
	ImmutableBecameUpgradeable

	// NumTransitionKinds is the number of valid kinds. Tables indexed by
	// kind are sized with it.
	NumTransitionKinds
)

var transitionKindNames = [NumTransitionKinds]string{
	AuthorityChanged:           "AuthorityChanged",
	ProgramUpgraded:            "ProgramUpgraded",
	BalanceShift:               "BalanceShift",
	ImmutableBecameUpgradeable: "ImmutableBecameUpgradeable",
}

// AllTransitionKinds lists every valid kind.
func AllTransitionKinds() []TransitionKind {
	kinds := make([]TransitionKind, 0, NumTransitionKinds)
	for k := TransitionKind(0); k < NumTransitionKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is one of the known kinds.
func (k TransitionKind) Valid() bool {
	return k < NumTransitionKinds
}

func (k TransitionKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("TransitionKind(%d)", uint8(k))
	}
	return transitionKindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k TransitionKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid transition kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// TransitionEvent is a single detected change for one program.
type TransitionEvent struct {
	ProgramID Pubkey
	Kind      TransitionKind
	Previous  ProgramState
	Current   ProgramState
}
