package fetcher

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

// Upgradeable loader account tags.
const (
	loaderTagProgram     uint32 = 2
	loaderTagProgramData uint32 = 3
)

// Upgradeable loader layouts.
const (
	programAccountSize    = 4 + 32
	programDataHeaderSize = 4 + 8 + 1 + 32
	programDataSlotOffset = 4
	programDataOptOffset  = 12
	programDataAuthOffset = 13
	programDataCodeOffset = programDataHeaderSize
	pubkeyLength          = 32
)

// NativeLoaderProgramID owns builtin programs.
var NativeLoaderProgramID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

// ProgramAccount is the decoded upgradeable loader program account.
type ProgramAccount struct {
	ProgramDataAddress solana.PublicKey
}

// ProgramData is the decoded upgradeable loader programdata account.
type ProgramData struct {
	Slot             uint64
	UpgradeAuthority *solana.PublicKey
	Code             []byte
}

// DecodeProgramAccount decodes an upgradeable loader Program account.
func DecodeProgramAccount(data []byte) (ProgramAccount, error) {
	if len(data) < programAccountSize {
		return ProgramAccount{}, gerrors.DecodeFailed(
			fmt.Sprintf("program account: %d bytes, need %d", len(data), programAccountSize), nil)
	}

	tag := binary.LittleEndian.Uint32(data[0:4])
	if tag != loaderTagProgram {
		return ProgramAccount{}, gerrors.DecodeFailed(
			fmt.Sprintf("program account: unexpected tag %d", tag), nil)
	}

	return ProgramAccount{
		ProgramDataAddress: solana.PublicKeyFromBytes(data[4:programAccountSize]),
	}, nil
}

// DecodeProgramData decodes an upgradeable loader ProgramData account.
func DecodeProgramData(data []byte) (ProgramData, error) {
	if len(data) < programDataHeaderSize {
		return ProgramData{}, gerrors.DecodeFailed(
			fmt.Sprintf("programdata account: %d bytes, need %d", len(data), programDataHeaderSize), nil)
	}

	tag := binary.LittleEndian.Uint32(data[0:4])
	if tag != loaderTagProgramData {
		return ProgramData{}, gerrors.DecodeFailed(
			fmt.Sprintf("programdata account: unexpected tag %d", tag), nil)
	}

	pd := ProgramData{
		Slot: binary.LittleEndian.Uint64(data[programDataSlotOffset:programDataOptOffset]),
		Code: data[programDataCodeOffset:],
	}

	switch data[programDataOptOffset] {
	case 0:
	case 1:
		authority := solana.PublicKeyFromBytes(data[programDataAuthOffset : programDataAuthOffset+pubkeyLength])
		pd.UpgradeAuthority = &authority
	default:
		return ProgramData{}, gerrors.DecodeFailed(
			fmt.Sprintf("programdata account: invalid authority option %d", data[programDataOptOffset]), nil)
	}

	return pd, nil
}

// Fingerprint returns the hex SHA-256 of code.
func Fingerprint(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}

// EncodeProgramAccount builds Program account bytes.
func EncodeProgramAccount(programData solana.PublicKey) []byte {
	out := make([]byte, programAccountSize)
	binary.LittleEndian.PutUint32(out[0:4], loaderTagProgram)
	copy(out[4:], programData[:])
	return out
}

// EncodeProgramData builds ProgramData account bytes.
func EncodeProgramData(slot uint64, authority *solana.PublicKey, code []byte) []byte {
	out := make([]byte, programDataHeaderSize+len(code))
	binary.LittleEndian.PutUint32(out[0:4], loaderTagProgramData)
	binary.LittleEndian.PutUint64(out[programDataSlotOffset:programDataOptOffset], slot)
	if authority != nil {
		out[programDataOptOffset] = 1
		copy(out[programDataAuthOffset:], authority[:])
	}
	copy(out[programDataCodeOffset:], code)
	return out
}
