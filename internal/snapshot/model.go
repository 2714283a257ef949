package snapshot

import (
	"time"

	"github.com/gagliardetto/solana-go"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// Model is the persisted form of a ProgramState shared by the database
// backends.
type Model struct {
	ProgramID          string    `json:"program_id" bson:"program_id" db:"program_id"`
	ObservedAt         time.Time `json:"observed_at" bson:"observed_at" db:"observed_at"`
	Slot               int64     `json:"slot" bson:"slot" db:"slot"`
	Owner              string    `json:"owner" bson:"owner" db:"owner"`
	Executable         bool      `json:"executable" bson:"executable" db:"executable"`
	UpgradeAuthority   *string   `json:"upgrade_authority,omitempty" bson:"upgrade_authority,omitempty" db:"upgrade_authority"`
	IsUpgradeable      bool      `json:"is_upgradeable" bson:"is_upgradeable" db:"is_upgradeable"`
	Lamports           int64     `json:"lamports" bson:"lamports" db:"lamports"`
	CodeFingerprint    string    `json:"code_fingerprint" bson:"code_fingerprint" db:"code_fingerprint"`
	ProgramDataAddress *string   `json:"program_data_address,omitempty" bson:"program_data_address,omitempty" db:"program_data_address"`
	CodeSize           int       `json:"code_size" bson:"code_size" db:"code_size"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ModelFromState converts a state for persistence.
func ModelFromState(state types.ProgramState) Model {
	return Model{
		ProgramID:          state.ProgramID.String(),
		ObservedAt:         state.ObservedAt.UTC(),
		Slot:               int64(state.Slot),
		Owner:              state.Owner.String(),
		Executable:         state.Executable,
		UpgradeAuthority:   keyString(state.UpgradeAuthority),
		IsUpgradeable:      state.IsUpgradeable,
		Lamports:           int64(state.Lamports),
		CodeFingerprint:    state.CodeFingerprint,
		ProgramDataAddress: keyString(state.ProgramDataAddress),
		CodeSize:           state.CodeSize,
		UpdatedAt:          time.Now().UTC(),
	}
}

// State converts a persisted model back to a ProgramState.
func (m Model) State() (types.ProgramState, error) {
	programID, err := solana.PublicKeyFromBase58(m.ProgramID)
	if err != nil {
		return types.ProgramState{}, gerrors.DecodeFailed("stored program id", err)
	}
	owner, err := solana.PublicKeyFromBase58(m.Owner)
	if err != nil {
		return types.ProgramState{}, gerrors.DecodeFailed("stored owner", err)
	}
	authority, err := parseKey(m.UpgradeAuthority)
	if err != nil {
		return types.ProgramState{}, gerrors.DecodeFailed("stored upgrade authority", err)
	}
	programData, err := parseKey(m.ProgramDataAddress)
	if err != nil {
		return types.ProgramState{}, gerrors.DecodeFailed("stored programdata address", err)
	}

	return types.ProgramState{
		ProgramID:          programID,
		ObservedAt:         m.ObservedAt,
		Slot:               uint64(m.Slot),
		Owner:              owner,
		Executable:         m.Executable,
		UpgradeAuthority:   authority,
		IsUpgradeable:      m.IsUpgradeable,
		Lamports:           uint64(m.Lamports),
		CodeFingerprint:    m.CodeFingerprint,
		ProgramDataAddress: programData,
		CodeSize:           m.CodeSize,
	}, nil
}

func keyString(key *solana.PublicKey) *string {
	if key == nil {
		return nil
	}
	s := key.String()
	return &s
}

func parseKey(s *string) (*solana.PublicKey, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	key, err := solana.PublicKeyFromBase58(*s)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
