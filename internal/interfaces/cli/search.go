package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/RxGraph-Intelligence/pkg/client"
)

// searchResultView wraps a SearchResult for table output.
type searchResultView struct {
	*client.SearchResult
}

func (v searchResultView) TableHeaders() []string {
	return []string{"KEY", "NAME", "UNII", "RXCUI", "ENRICHED"}
}

func (v searchResultView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Results))
	for _, s := range v.Results {
		enriched := "no"
		if s.IsEnriched {
			enriched = "yes"
		}
		rows = append(rows, []string{s.Key, s.Name, s.UNII, s.RxCUI, enriched})
	}
	return rows
}

// NewSearchCmd creates the "search" command, which finds substances by
// partial name match.
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search substances in the knowledge graph by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			result, err := cliCtx.Client.Entities().Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "table") {
				return PrintResult(cmd, searchResultView{result})
			}
			return PrintResult(cmd, result)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "maximum number of results")

	return cmd
}
