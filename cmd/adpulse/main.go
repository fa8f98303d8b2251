package main

import (
	_ "embed"
	"strings"

	"github.com/adpulse/adpulse/internal/cli"
	"github.com/adpulse/adpulse/internal/logging"
)

//go:embed VERSION
var versionFile string

var executeCLI = cli.Execute

func run() error {
	version := strings.TrimSpace(versionFile)
	return executeCLI(version)
}

func main() {
	if err := run(); err != nil {
		logging.Fatal("adpulse execution failed", "error", err)
	}
}
