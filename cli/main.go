package main

import (
	"fmt"
	"os"

	"github.com/trebuchet-org/treb-release/internal/cli"
	"github.com/trebuchet-org/treb-release/internal/cli/render"
	"github.com/trebuchet-org/treb-release/internal/config"
)

// Set via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	config.SetBuildFlags(version, commit, date)

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, render.FormatError(err))
		os.Exit(1)
	}
}
