// Package main is the entry point for the CipherLink CLI.
package main

import (
	"os"

	"github.com/cipherlink/cipherlink/internal/cli"
)

// Build metadata, injected via -ldflags.
//
//nolint:gochecknoglobals // ldflags injection requires package-level variables
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	cli.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: date})

	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
