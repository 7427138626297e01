package main

import (
	"os"

	"github.com/runnerr0/tabcycle/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// go-flags has already printed the error.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
