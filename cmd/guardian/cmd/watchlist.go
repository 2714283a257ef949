package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lugondev/solana-guardian/internal/diff"
	"github.com/lugondev/solana-guardian/internal/watchlist"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Print the resolved watchlist",
	Long:  `Print every watched program with its label and effective balance shift threshold.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := watchlist.FromConfig(cfg)
		if err != nil {
			return err
		}

		base := diff.Options{BalanceShiftThreshold: cfg.Guardian.BalanceShiftThreshold}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tPROGRAM ID\tBALANCE SHIFT")
		for _, p := range registry.List() {
			opts := diff.OptionsFor(p, base)
			fmt.Fprintf(tw, "%s\t%s\t%.0f%%\n", p.Label, p.ID, opts.BalanceShiftThreshold*100)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
}
