package watchlist

import "github.com/lugondev/solana-guardian/internal/config"

// Defaults returns the free tier watchlist: widely used DeFi programs.
func Defaults() []config.WatchEntry {
	return []config.WatchEntry{
		{ID: "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4", Label: "Jupiter v6"},
		{ID: "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc", Label: "Orca Whirlpool"},
		{ID: "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK", Label: "Raydium CPMM"},
		{ID: "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8", Label: "Raydium AMM v4"},
		{ID: "MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA", Label: "Marginfi v2"},
		{ID: "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo", Label: "Solend"},
		{ID: "SSwpkEEcbUqx4vtoEByFjSkhKdCT862DNVb52nZg1UZ", Label: "Saber Stable Swap"},
		{ID: "DjVE6JNiYqPL2QXyCUUh8rNjHrbz9hXHNYt99MQ59qw1", Label: "Orca Token Swap"},
		{ID: "PhoeNiXZ8ByJGLkxNfZRnkUfjvmuYqLR89jjFHGqdXY", Label: "Phoenix DEX"},
		{ID: "6m2CDdhRgxpH4WjvdzxAYbGxwdGUz5MziiL5jek2kBma", Label: "Drift Protocol"},
		{ID: "MangoCzJ36AjZyKwVj3VnYU4GTonjfVEnJmvvWaxLac", Label: "Mango Markets v3"},
		{ID: "srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX", Label: "Serum DEX v3"},
		{ID: "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo", Label: "Meteora DLMM"},
		{ID: "FLUXubRmkEi2q6K3Y9kBPg9248ggaZVsoSFhtJHSrm1X", Label: "FluxBeam"},
		{ID: "MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD", Label: "Marinade Finance"},
	}
}
