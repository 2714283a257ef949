package types

import (
	"time"
)

// Thresholds holds per-program overrides for diff thresholds.
// A nil field means "use the configured default".
type Thresholds struct {
	// BalanceShift is the relative authority balance change that raises a
	// BalanceShift transition (0.2 means 20%).
	BalanceShift *float64 `json:"balance_shift,omitempty" yaml:"balance_shift,omitempty"`
}

// WatchedProgram is a single entry of the watchlist.
type WatchedProgram struct {
	// ID is the program address.
	ID Pubkey `json:"id"`

	// Label is the human readable name used in alerts and logs.
	Label string `json:"label"`

	// Thresholds are optional per-program overrides.
	Thresholds *Thresholds `json:"thresholds,omitempty"`
}

// String returns "Label (short id)".
func (p WatchedProgram) String() string {
	return p.Label + " (" + ShortKey(p.ID) + ")"
}

// ProgramState is a point-in-time observation of a program.
//
// States are passed by value; a new observation replaces the old one and
// is never edited in place.
type ProgramState struct {
	// ProgramID is the observed program address.
	ProgramID Pubkey `json:"program_id"`

	// ObservedAt is the local time the observation completed.
	ObservedAt time.Time `json:"observed_at"`

	// Slot is the context slot reported by the RPC node.
	Slot uint64 `json:"slot"`

	// Owner is the loader that owns the program account.
	Owner Pubkey `json:"owner"`

	// Executable mirrors the account's executable flag.
	Executable bool `json:"executable"`

	// UpgradeAuthority is nil when the program is immutable.
	UpgradeAuthority *Pubkey `json:"upgrade_authority,omitempty"`

	// IsUpgradeable is true when the program's code can still be replaced.
	IsUpgradeable bool `json:"is_upgradeable"`

	// Lamports is the balance of the upgrade authority wallet.
	Lamports uint64 `json:"lamports"`

	// CodeFingerprint is the hex SHA-256 of the executable bytes.
	CodeFingerprint string `json:"code_fingerprint"`

	// ProgramDataAddress is set for programs owned by the upgradeable loader.
	ProgramDataAddress *Pubkey `json:"program_data_address,omitempty"`

	// CodeSize is the length of the executable bytes.
	CodeSize int `json:"code_size"`
}

// Equivalent reports whether two observations describe the same chain state,
// ignoring when they were taken.
func (s ProgramState) Equivalent(other ProgramState) bool {
	return s.ProgramID.Equals(other.ProgramID) &&
		s.Owner.Equals(other.Owner) &&
		s.Executable == other.Executable &&
		EqualOptionalKeys(s.UpgradeAuthority, other.UpgradeAuthority) &&
		s.IsUpgradeable == other.IsUpgradeable &&
		s.Lamports == other.Lamports &&
		s.CodeFingerprint == other.CodeFingerprint &&
		EqualOptionalKeys(s.ProgramDataAddress, other.ProgramDataAddress) &&
		s.CodeSize == other.CodeSize
}

// Mutability returns "upgradeable" or "immutable".
func (s ProgramState) Mutability() string {
	if s.IsUpgradeable {
		return "upgradeable"
	}
	return "immutable"
}
