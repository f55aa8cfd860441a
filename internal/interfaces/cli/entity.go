package cli

import (
	"github.com/spf13/cobra"
)

// NewEntityCmd creates the "entity" command, which fetches one resolved
// substance from the knowledge graph by name or key.
func NewEntityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <name-or-key>",
		Short: "Look up a resolved substance in the knowledge graph",
		Long: "Look up a substance vertex by name or normalized key. The server\n" +
			"normalizes the argument, so \"Ivosidenib\" and \"ivosidenib\" match the\n" +
			"same vertex.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			sub, err := cliCtx.Client.Entities().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, sub)
		},
	}
}
