package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/hierarchical-memory-engine/internal/archival"
	"github.com/rcliao/hierarchical-memory-engine/internal/store"
)

// agentStats reports FIFO utilization, archival count, and
// working-memory size for one agent — an admin read-only surface,
// outside the closed 12-tool set an LLM may call (§4.6's closure),
// grounded on rcliao-agent-memory's store.Stats/cli stats command.
type agentStats struct {
	Agent             string `json:"agent"`
	FIFOLength        int    `json:"fifo_length"`
	FIFOCapacity      int    `json:"fifo_capacity"`
	ArchivalCount     int    `json:"archival_count"`
	WorkingMemorySize int    `json:"working_memory_bytes"`
	WorkingMemoryCap  int    `json:"working_memory_cap_bytes"`
}

func init() {
	var efSearch int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory-hierarchy utilization for the configured agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(efSearch)
		},
	}
	cmd.Flags().IntVar(&efSearch, "ef-search", 64, "Runtime-tunable HNSW ef_search to apply before reporting (§4.1)")
	RootCmd.AddCommand(cmd)
}

func runStats(efSearch int) error {
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
	if err := arch.SetEfSearch(a.ID, efSearch); err != nil {
		return fmt.Errorf("cli: set ef_search: %w", err)
	}

	archivalCount, err := arch.Count(a.ID)
	if err != nil {
		return fmt.Errorf("cli: count archival entries: %w", err)
	}

	recent, err := db.RecentConversation(a.ID, a.FIFOCapacity)
	if err != nil {
		return fmt.Errorf("cli: load conversation: %w", err)
	}

	st := agentStats{
		Agent:             a.Name,
		FIFOLength:        len(recent),
		FIFOCapacity:      a.FIFOCapacity,
		ArchivalCount:     archivalCount,
		WorkingMemorySize: len(a.WorkingMemoryText),
		WorkingMemoryCap:  2 * 1024,
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
