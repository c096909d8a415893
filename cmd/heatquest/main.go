// Command heatquest is the CLI entry point: it serves the API and talks to a
// running server for scans, analysis, and missions.
package main

import (
	"os"

	"github.com/edu008/HeatQuest/internal/interfaces/cli"
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
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
