// agent-memory is the thin CLI driver for the hierarchical memory
// engine (spec.md §6): an interactive read-eval loop against one agent,
// plus two admin commands (stats, delete-agent).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rcliao/hierarchical-memory-engine/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
