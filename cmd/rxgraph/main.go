// Command rxgraph is the CLI client for the RxGraph-Intelligence API.
package main

import (
	"os"

	"github.com/turtacn/RxGraph-Intelligence/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// Execute prints errors itself; just propagate the exit code.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
