package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msto63/iguana/internal/tui"
)

func newShellCommand(a *app) *cobra.Command {
	var (
		project   string
		sprint    int
		mode      string
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive search and quick-add shell",
		Long: `Opens the interactive shell. Tab switches between search and Olea
input, up and down walk the history of the current mode. A rejected
input is put back into the input line for correction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()

			var startMode tui.Mode
			switch strings.ToLower(mode) {
			case "search", "":
				startMode = tui.ModeSearch
			case "olea":
				startMode = tui.ModeOlea
			default:
				return fmt.Errorf("unknown mode %q, expected search or olea", mode)
			}

			b, err := a.backend(cmd.Context(), project, sprint)
			if err != nil {
				return err
			}

			var historyFile string
			if !noHistory {
				historyFile = filepath.Join(a.cfg.General.DataDir, "shell_history.json")
			}
			return tui.Run(tui.Config{
				Backend:     b,
				Project:     project,
				User:        a.user,
				Mode:        startMode,
				HistoryFile: historyFile,
				Timeout:     a.cfg.Search.Timeout.Duration,
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "short name of the project new issues are created in")
	cmd.Flags().IntVar(&sprint, "sprint", 0, "sprint new issues are added to")
	cmd.Flags().StringVar(&mode, "mode", "search", "start mode (search, olea)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not persist the input history")
	return cmd
}
