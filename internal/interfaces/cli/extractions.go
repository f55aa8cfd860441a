package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/RxGraph-Intelligence/pkg/client"
)

// extractionListView wraps a slice of extraction records for table output.
type extractionListView struct {
	records []client.Extraction
}

func (v extractionListView) TableHeaders() []string {
	return []string{"CONTENT_KEY", "FILENAME", "STATUS", "ENTITIES", "CREATED_AT"}
}

func (v extractionListView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.records))
	for _, r := range v.records {
		rows = append(rows, []string{
			r.ContentKey,
			r.Filename,
			r.Status,
			fmt.Sprintf("%d", r.EntityCount),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

// NewExtractionsCmd creates the "extractions" command group for inspecting
// processed documents.
func NewExtractionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extractions",
		Short: "Inspect extraction records for processed documents",
	}

	cmd.AddCommand(newExtractionsListCmd(), newExtractionsGetCmd())

	return cmd
}

func newExtractionsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent extraction records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			records, err := cliCtx.Client.Documents().ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "table") {
				return PrintResult(cmd, extractionListView{records})
			}
			return PrintResult(cmd, records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")

	return cmd
}

func newExtractionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <content-key>",
		Short: "Show one extraction record with its entities and links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			detail, err := cliCtx.Client.Documents().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, detail)
		},
	}
}
