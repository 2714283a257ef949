package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/internal/fetcher"
	"github.com/lugondev/solana-guardian/internal/watchlist"
	"github.com/lugondev/solana-guardian/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [program-id...]",
	Short: "Fetch and print the current state of programs",
	Long: `Fetch each program once and print its loader, upgrade authority, code
fingerprint and authority balance. Without arguments the watchlist is used.

Ends with the authority power map: every authority that controls more than
one of the inspected programs.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

type inspected struct {
	program types.WatchedProgram
	state   types.ProgramState
	err     error
}

func runInspect(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	programs, err := inspectTargets(args)
	if err != nil {
		return err
	}

	f := fetcher.NewFromConfig(cfg.Solana).WithLogger(logger)
	results := make([]inspected, len(programs))

	var g errgroup.Group
	g.SetLimit(cfg.Guardian.Workers)
	for i, p := range programs {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Guardian.FetchTimeout)
			defer cancel()

			state, err := f.FetchProgramState(ctx, p.ID)
			results[i] = inspected{program: p, state: state, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := cmd.OutOrStdout()
	states := make([]types.ProgramState, 0, len(results))
	labels := make(map[solana.PublicKey]string, len(results))
	for _, r := range results {
		printState(out, r)
		if r.err == nil {
			states = append(states, r.state)
			labels[r.program.ID] = r.program.Label
		}
	}

	printPowerMap(out, AuthorityConcentration(states), labels)
	return nil
}

func inspectTargets(args []string) ([]types.WatchedProgram, error) {
	registry, err := watchlist.FromConfig(cfg)
	if len(args) == 0 {
		if err != nil {
			return nil, err
		}
		return registry.List(), nil
	}

	out := make([]types.WatchedProgram, 0, len(args))
	for _, arg := range args {
		id, perr := solana.PublicKeyFromBase58(arg)
		if perr != nil {
			return nil, gerrors.ConfigInvalid("invalid program id %q: %v", arg, perr)
		}
		p := types.WatchedProgram{ID: id, Label: types.ShortKey(id)}
		if registry != nil {
			if known, rerr := registry.Resolve(id); rerr == nil {
				p = known
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func printState(w io.Writer, r inspected) {
	fmt.Fprintf(w, "%s (%s)\n", r.program.Label, r.program.ID)
	if r.err != nil {
		fmt.Fprintf(w, "  Error:       %v\n\n", r.err)
		return
	}

	s := r.state
	fmt.Fprintf(w, "  Loader:      %s\n", s.Owner)
	fmt.Fprintf(w, "  Mutability:  %s\n", s.Mutability())
	fmt.Fprintf(w, "  Authority:   %s\n", types.OptionalKeyString(s.UpgradeAuthority))
	if s.UpgradeAuthority != nil {
		fmt.Fprintf(w, "  Balance:     %.4f SOL\n", types.LamportsToSOL(s.Lamports))
	}
	fmt.Fprintf(w, "  Fingerprint: %s\n", s.CodeFingerprint)
	fmt.Fprintf(w, "  Code Size:   %d bytes\n", s.CodeSize)
	fmt.Fprintf(w, "  Slot:        %d\n\n", s.Slot)
}

// AuthorityGroup is an upgrade authority and the programs it controls.
type AuthorityGroup struct {
	Authority solana.PublicKey
	Programs  []solana.PublicKey
}

// AuthorityConcentration returns the authorities controlling more than one
// program, largest group first.
func AuthorityConcentration(states []types.ProgramState) []AuthorityGroup {
	byAuthority := make(map[solana.PublicKey][]solana.PublicKey)
	for _, s := range states {
		if s.UpgradeAuthority == nil {
			continue
		}
		byAuthority[*s.UpgradeAuthority] = append(byAuthority[*s.UpgradeAuthority], s.ProgramID)
	}

	var groups []AuthorityGroup
	for authority, programs := range byAuthority {
		if len(programs) > 1 {
			groups = append(groups, AuthorityGroup{Authority: authority, Programs: programs})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Programs) != len(groups[j].Programs) {
			return len(groups[i].Programs) > len(groups[j].Programs)
		}
		return groups[i].Authority.String() < groups[j].Authority.String()
	})
	return groups
}

func printPowerMap(w io.Writer, groups []AuthorityGroup, labels map[solana.PublicKey]string) {
	fmt.Fprintln(w, "Authority power map:")
	if len(groups) == 0 {
		fmt.Fprintln(w, "  no authority controls more than one program")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(w, "  %s controls %d programs\n", g.Authority, len(g.Programs))
		for _, id := range g.Programs {
			fmt.Fprintf(w, "    - %s (%s)\n", labels[id], id)
		}
	}
}
