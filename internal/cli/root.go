// Package cli implements the agent-memory command surface: the
// interactive REPL and two admin commands, over the hierarchical
// memory engine (spec.md §6's "CLI surface (thin collaborator)").
package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/hierarchical-memory-engine/internal/config"
)

var cfg = config.Defaults()

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-memory",
	Short: "Run a long-running conversational agent with hierarchical memory",
	Long: "agent-memory drives a single agent through an interactive read-eval loop,\n" +
		"backed by a four-tier memory hierarchy: system, working, FIFO, and archival\n" +
		"(vector-searchable) memory.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfg.AgentName, "agent", "", "Agent name (required)")
	RootCmd.PersistentFlags().StringVar(&cfg.ModelID, "model", cfg.ModelID, "Chat model id")
	RootCmd.PersistentFlags().StringVar(&cfg.WorkspaceRoot, "workspace", "", "Agent workspace root")
	RootCmd.PersistentFlags().IntVar(&cfg.FIFOCapacity, "context", cfg.FIFOCapacity, "FIFO capacity (recent-turn window size)")
	RootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (default: $MEMORY_ENGINE_DB or ~/.agent-memory/memory.db)")
}

// ExitError carries the process exit code spec.md §6 assigns to a
// failure class: 2 for configuration errors, 3 for an unreachable
// database. Commands that hit one of these return *ExitError instead
// of a plain error; cmd/agent-memory/main.go unwraps it to choose
// os.Exit's argument.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func configError(err error) error {
	return &ExitError{Code: 2, Err: err}
}

func backendUnavailable(err error) error {
	return &ExitError{Code: 3, Err: err}
}

// resolvedConfig applies environment overrides on top of the flags
// already parsed into cfg and validates the result (§7's
// "Configuration error... fatal at startup").
func resolvedConfig() (config.Config, error) {
	c := cfg
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return c, configError(err)
	}
	return c, nil
}
