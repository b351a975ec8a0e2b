// Package main is the entry point of dietool.
package main

import (
	"os"

	"github.com/atinyakov/diecompare/internal/cli"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	cmd := cli.NewRootCommand(cli.BuildInfo{Version: version, BuildDate: buildDate})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
