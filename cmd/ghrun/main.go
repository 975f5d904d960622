// Command ghrun validates and executes GitHub Actions-style workflow
// files against a local Docker daemon or an in-process emulation
// runtime.
package main

import (
	"os"

	"github.com/me/ghrun/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
