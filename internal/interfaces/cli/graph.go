package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// graphCountsView renders collection counts as a table.
type graphCountsView struct {
	counts map[string]int
}

func (v graphCountsView) TableHeaders() []string {
	return []string{"COLLECTION", "COUNT"}
}

func (v graphCountsView) TableRows() [][]string {
	names := make([]string, 0, len(v.counts))
	for name := range v.counts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", v.counts[name])})
	}
	return rows
}

// NewGraphCmd creates the "graph" command group for knowledge graph
// statistics.
func NewGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Knowledge graph statistics",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "counts",
		Short: "Show vertex and edge counts per collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			counts, err := cliCtx.Client.Entities().GraphCounts(cmd.Context())
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "table") {
				return PrintResult(cmd, graphCountsView{counts})
			}
			return PrintResult(cmd, counts)
		},
	})

	return cmd
}
