package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/hierarchical-memory-engine/internal/archival"
	"github.com/rcliao/hierarchical-memory-engine/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "delete-agent",
		Short: "Delete the configured agent and cascade-remove its memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteAgent()
		},
	}
	RootCmd.AddCommand(cmd)
}

func runDeleteAgent() error {
	c, err := resolvedConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(c.DBPath)
	if err != nil {
		return backendUnavailable(fmt.Errorf("cli: open database: %w", err))
	}
	defer db.Close()

	a, err := db.GetAgentByName(c.AgentName)
	if err != nil {
		return fmt.Errorf("cli: agent %q not found: %w", c.AgentName, err)
	}

	embedder, err := buildEmbedder(c)
	if err != nil {
		return configError(err)
	}
	arch := archival.New(db, embedder)

	if err := db.DeleteAgent(a.ID); err != nil {
		return fmt.Errorf("cli: delete agent %q: %w", c.AgentName, err)
	}
	arch.DeleteAgent(a.ID)

	fmt.Printf("Deleted agent %q and all its memory.\n", c.AgentName)
	return nil
}
