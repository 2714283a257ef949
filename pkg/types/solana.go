// Package types provides the domain types shared by the guardian components.
// It wraps solana-go types where a chain value is involved.
package types

import (
	"github.com/gagliardetto/solana-go"
)

// Pubkey is a Solana public key (32 bytes).
type Pubkey = solana.PublicKey

// LamportsToSOL converts lamports to SOL for display.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}

// ShortKey renders a key as "abcd1234...wxyz" for log lines and messages.
func ShortKey(key Pubkey) string {
	s := key.String()
	if len(s) <= 12 {
		return s
	}
	return s[:8] + "..." + s[len(s)-4:]
}

// OptionalKeyString returns the base58 key or "none" when absent.
func OptionalKeyString(key *Pubkey) string {
	if key == nil {
		return "none"
	}
	return key.String()
}

// EqualOptionalKeys reports whether two optional keys hold the same value.
func EqualOptionalKeys(a, b *Pubkey) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equals(*b)
}
