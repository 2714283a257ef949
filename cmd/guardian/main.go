package main

import (
	"os"

	"github.com/lugondev/solana-guardian/cmd/guardian/cmd"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

func main() {
	os.Exit(exitCode(cmd.Execute()))
}

// exitCode is 2 for configuration errors and 1 for anything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case gerrors.IsFatal(err):
		return 2
	default:
		return 1
	}
}
