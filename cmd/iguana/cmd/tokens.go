package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/repository"
	"github.com/msto63/iguana/internal/server"
)

func newTokensCommand(a *app) *cobra.Command {
	var (
		language string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "tokens <input>",
		Short: "Print the token stream of an input",
		Long: `Prints every token with its offset and length, the data editors use
for highlighting.

Examples:
  iguana tokens 'Issue.priority > 2 AND Issue.title ~ "^Fix"'
  iguana tokens --lang olea 'Title :Bug !2 @alice'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ctx := cmd.Context()
			input := strings.Join(args, " ")

			var reply *server.TokenizeReply
			if a.remote != "" {
				client, err := a.remoteClient()
				if err != nil {
					return err
				}
				if reply, err = client.Tokenize(ctx, server.TokenizeRequest{Language: language, Input: input}); err != nil {
					return err
				}
			} else {
				// tokens need no records
				m, err := repository.NewMemory(repository.MemoryOptions{Logger: a.logger})
				if err != nil {
					return err
				}
				e, err := a.newEngine(m, nil)
				if err != nil {
					return err
				}
				tokens, err := e.Tokenize(language, input)
				if err != nil {
					return err
				}
				r := server.NewTokenizeReply(tokens)
				reply = &r
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), reply)
			}
			printTokens(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "lang", "l", engine.LanguageSearch, "language of the input (search, olea)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tokens as JSON")
	return cmd
}
