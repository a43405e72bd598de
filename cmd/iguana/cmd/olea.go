package cmd

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/server"
)

func newOleaCommand(a *app) *cobra.Command {
	var (
		project string
		sprint  int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "olea [line]",
		Short: "Apply an Olea quick-add line",
		Long: `Creates or updates an issue from an Olea line. Without an argument
every line of stdin is applied in order; processing stops at the first
rejected line.

Examples:
  iguana olea -p PRJ 'Fix login :Bug !2 @alice #auth'
  iguana olea -p PRJ '>PRJ-12 &done $1h30m'
  iguana olea -p PRJ < lines.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ctx := cmd.Context()

			lines := args
			if len(lines) == 0 {
				var err error
				if lines, err = readLines(cmd); err != nil {
					return err
				}
			}
			if len(lines) == 0 {
				return mdwerror.New("no Olea line given").WithCode(mdwerror.CodeInvalidInput)
			}

			b, err := a.backend(ctx, project, sprint)
			if err != nil {
				return err
			}
			replies := make([]*server.QuickAddReply, 0, len(lines))
			for _, line := range lines {
				reply, err := b.QuickAdd(ctx, line)
				if err != nil {
					return err
				}
				if !asJSON {
					printQuickAddReply(cmd.OutOrStdout(), reply)
				}
				replies = append(replies, reply)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), replies)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "short name of the project new issues are created in")
	cmd.Flags().IntVar(&sprint, "sprint", 0, "sprint new issues are added to")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the replies as JSON")
	return cmd
}

// readLines returns the non-blank lines of the command's input
func readLines(cmd *cobra.Command) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
