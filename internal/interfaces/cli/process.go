package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/client"
)

// processResultView wraps a ProcessResult for table output.
type processResultView struct {
	*client.ProcessResult
}

func (v processResultView) TableHeaders() []string {
	return []string{"NAME", "TYPE", "CONFIDENCE"}
}

func (v processResultView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Entities))
	for _, e := range v.Entities {
		rows = append(rows, []string{e.Name, e.Type, fmt.Sprintf("%d", e.Confidence)})
	}
	return rows
}

// NewProcessCmd creates the "process" command, which submits a document for
// entity extraction and enrichment.
func NewProcessCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "process [file]",
		Short: "Submit a document for entity extraction and graph enrichment",
		Long: "Submit a document to the pipeline. Pass a file path to upload it, or use\n" +
			"--text to submit inline text. PDF files are parsed server-side.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			if text == "" && len(args) == 0 {
				return fmt.Errorf("either a file argument or --text is required")
			}
			if text != "" && len(args) > 0 {
				return fmt.Errorf("--text and a file argument are mutually exclusive")
			}

			docs := cliCtx.Client.Documents()

			var result *client.ProcessResult
			if text != "" {
				result, err = docs.ProcessText(cmd.Context(), text, "")
			} else {
				path := args[0]
				f, openErr := os.Open(path)
				if openErr != nil {
					return fmt.Errorf("cannot open %s: %w", path, openErr)
				}
				defer f.Close()

				cliCtx.Logger.Debug("uploading document", logging.String("path", path))
				result, err = docs.Upload(cmd.Context(), filepath.Base(path), f)
			}
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "table") {
				return PrintResult(cmd, processResultView{result})
			}
			if err := PrintResult(cmd, result); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("extraction %s: %d entities, %d substances resolved",
				result.ExtractionID, len(result.Entities), len(result.Substances)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "inline document text to process")

	return cmd
}
