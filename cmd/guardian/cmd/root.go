package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lugondev/solana-guardian/internal/common"
	"github.com/lugondev/solana-guardian/internal/config"
)

var (
	cfgFile string

	// cfg and logger are populated before any subcommand runs.
	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Guardian - Solana program upgrade monitor",
	Long: `Guardian watches a list of Solana programs and raises an alert when
one of them changes in a way that matters to its users:

- the upgrade authority changes or is renounced
- the deployed code is replaced
- an immutable program becomes upgradeable again
- the authority wallet balance shifts sharply`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.guardian.yaml or $HOME/.guardian.yaml)")
	flags.String("rpc", "", "Solana RPC endpoint (overrides network)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("watchlist", "", "YAML watchlist file (default is the built-in list)")

	bindFlag(rootCmd, "solana.rpc", "rpc")
	bindFlag(rootCmd, "log.level", "log-level")
	bindFlag(rootCmd, "log.format", "log-format")
	bindFlag(rootCmd, "watchlist.file", "watchlist")
}

func bindFlag(c *cobra.Command, key, name string) {
	flag := c.PersistentFlags().Lookup(name)
	if flag == nil {
		flag = c.Flags().Lookup(name)
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding flag: %v\n", err)
	}
}

func loadConfig(c *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	l, err := common.NewLogger(loaded.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("invalid log settings: %w", err)
	}
	slog.SetDefault(l)

	if used := viper.ConfigFileUsed(); used != "" {
		l.Debug("using config file", "path", used)
	}

	cfg = loaded
	logger = l
	return nil
}
