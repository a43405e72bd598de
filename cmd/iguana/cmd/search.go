package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <expression>",
		Short: "Run a search expression",
		Long: `Runs a search expression. Structured queries are compiled and
executed; anything that does not compile is answered by a full-text
search over the titles and descriptions.

Examples:
  iguana search 'Issue.title ~~ "login"'
  iguana search 'Project.shortName = "PRJ" SORT BY name'
  iguana search login page`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ctx := cmd.Context()

			b, err := a.backend(ctx, "", 0)
			if err != nil {
				return err
			}
			reply, err := b.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), reply)
			}
			printSearchReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reply as JSON")
	return cmd
}
