// Package main provides the entry point for the stableids CLI.
package main

import (
	"context"
	"os"

	"github.com/roach88/stableids/internal/cli"
)

// Version information populated at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = version + " (" + commit + ")"

	// update installs its own signal handling so a cancelled run rolls back.
	err := cmd.ExecuteContext(context.Background())
	os.Exit(cli.GetExitCode(err))
}
