// Package cmd implements the iguana command line
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	mdwlog "github.com/msto63/iguana/foundation/core/log"
)

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

var _ pflag.Value = (*mdwlog.Level)(nil)

// underscoreFlags accepts config key spellings such as --log_level
func underscoreFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{logLevel: mdwlog.LevelWarn}

	rootCmd := &cobra.Command{
		Use:   "iguana",
		Short: "Iguana - query languages for the issue tracker",
		Long: `Iguana compiles the issue tracker's two input languages:

  search  - structured queries with a full-text fallback
  olea    - quick-add lines that create or update issues

Records come from a fixture file or the configured store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.SetGlobalNormalizationFunc(underscoreFlags)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $IGUANA_CONFIG, ./iguana.toml)")
	flags.Var(&a.logLevel, "log-level", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&a.fixtures, "fixtures", "", "fixture file with records (.yaml, .json, .jsonc)")
	flags.StringVarP(&a.user, "user", "u", "", "username the input runs for")
	flags.StringVar(&a.remote, "remote", "", "address of an iguana server to send the input to")

	rootCmd.AddCommand(
		newSearchCommand(a),
		newOleaCommand(a),
		newTokensCommand(a),
		newServeCommand(a),
		newShellCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return rootCmd
}
