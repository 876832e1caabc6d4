package cli

import (
	"fmt"
	"strings"

	"github.com/rcliao/hierarchical-memory-engine/internal/agent"
	"github.com/rcliao/hierarchical-memory-engine/internal/archival"
	"github.com/rcliao/hierarchical-memory-engine/internal/chat"
	memcontext "github.com/rcliao/hierarchical-memory-engine/internal/context"
	"github.com/rcliao/hierarchical-memory-engine/internal/config"
	"github.com/rcliao/hierarchical-memory-engine/internal/embedding"
	"github.com/rcliao/hierarchical-memory-engine/internal/fifo"
	"github.com/rcliao/hierarchical-memory-engine/internal/idgen"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
	"github.com/rcliao/hierarchical-memory-engine/internal/store"
	"github.com/rcliao/hierarchical-memory-engine/internal/tools"
	"github.com/rcliao/hierarchical-memory-engine/internal/workingmem"
)

// systemMemoryTemplateMarker is the structural marker compared against
// a stored agent's system_memory_text at startup (§6's schema migration
// hook). Bumping this string is how a future binary signals that the
// default template shape changed and existing agents should be
// migrated.
const systemMemoryTemplateMarker = "# agent-memory system template v1"

func defaultSystemMemory(name string) string {
	return systemMemoryTemplateMarker + "\n\n" +
		"You are " + name + ", a long-running assistant with persistent memory.\n" +
		"Be direct and helpful. Use your tools to read and change the workspace,\n" +
		"run commands, fetch pages, and manage your own memory."
}

// ensureAgent loads the named agent, creating it with the compiled-in
// default system memory on first use, or running the idempotent
// migration hook (§6) if the stored template predates the current
// binary's template marker.
func ensureAgent(db *store.Store, c config.Config) (*model.Agent, error) {
	a, err := db.GetAgentByName(c.AgentName)
	if err != nil {
		sb, sbErr := sandbox.New(c.WorkspaceRoot)
		if sbErr != nil {
			return nil, fmt.Errorf("cli: prepare workspace: %w", sbErr)
		}
		newAgent := model.Agent{
			ID:                idgen.New(),
			Name:              c.AgentName,
			ModelID:           c.ModelID,
			SystemMemoryText:  defaultSystemMemory(c.AgentName),
			WorkingMemoryText: "",
			FIFOCapacity:      c.FIFOCapacity,
			WorkspaceRoot:     sb.Root(),
		}
		if err := db.CreateAgent(newAgent); err != nil {
			return nil, fmt.Errorf("cli: create agent %q: %w", c.AgentName, err)
		}
		return &newAgent, nil
	}

	if !strings.HasPrefix(a.SystemMemoryText, systemMemoryTemplateMarker) {
		migrated := defaultSystemMemory(a.Name)
		if err := db.UpdateSystemMemory(a.ID, migrated); err != nil {
			return nil, fmt.Errorf("cli: migrate system memory for %q: %w", a.Name, err)
		}
		a.SystemMemoryText = migrated
	}
	return a, nil
}

// engineDeps bundles everything openDeps builds and buildEngine wires
// together for the run command. The stats and delete-agent commands do
// not use it; they open the store directly.
type engineDeps struct {
	db      *store.Store
	arch    *archival.Store
	fifo    *fifo.Store
	wm      *workingmem.Store
	sandbox *sandbox.Sandbox
	agent   *model.Agent
}

func openDeps(c config.Config) (*engineDeps, error) {
	db, err := store.Open(c.DBPath)
	if err != nil {
		return nil, backendUnavailable(fmt.Errorf("cli: open database: %w", err))
	}

	a, err := ensureAgent(db, c)
	if err != nil {
		db.Close()
		return nil, err
	}

	sb, err := sandbox.New(a.WorkspaceRoot)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cli: prepare workspace: %w", err)
	}

	embedder, err := buildEmbedder(c)
	if err != nil {
		db.Close()
		return nil, configError(err)
	}

	arch := archival.New(db, embedder)
	fifoStore := fifo.New(db, arch)
	if err := fifoStore.LoadFromLog(a.ID, a.FIFOCapacity); err != nil {
		db.Close()
		return nil, fmt.Errorf("cli: load conversation log: %w", err)
	}

	return &engineDeps{
		db:      db,
		arch:    arch,
		fifo:    fifoStore,
		wm:      workingmem.New(db),
		sandbox: sb,
		agent:   a,
	}, nil
}

func (d *engineDeps) Close() error {
	return d.db.Close()
}

func buildEmbedder(c config.Config) (embedding.Embedder, error) {
	switch c.EmbedProvider {
	case "", "ollama":
		model := c.EmbedModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return embedding.NewOllamaEmbedder(c.EmbedURL, model, c.EmbedDim), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(c.EmbedURL, c.OpenAIAPIKey, c.EmbedModel, c.EmbedDim), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.EmbedProvider)
	}
}

func buildRegistry(d *engineDeps) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewReadFileTool(d.sandbox))
	reg.Register(tools.NewWriteFileTool(d.sandbox))
	reg.Register(tools.NewEditFileTool(d.sandbox))
	reg.Register(tools.NewDeleteFileTool(d.sandbox))
	reg.Register(tools.NewFindFilesTool(d.sandbox))
	reg.Register(tools.NewSearchInFilesTool(d.sandbox))
	reg.Register(tools.NewRunCommandTool(d.sandbox.Root()))
	reg.Register(tools.NewRunPythonTool(d.sandbox.Root()))
	reg.Register(tools.NewFetchURLTool())
	reg.Register(tools.NewSaveMemoryTool(d.arch, d.agent.ID))
	reg.Register(tools.NewSearchMemoryTool(d.arch, d.agent.ID))
	reg.Register(tools.NewUpdateWorkingMemoryTool(d.wm, d.agent.ID))
	return reg
}

func buildEngine(d *engineDeps, chatClient chat.Client) *agent.Engine {
	registry := buildRegistry(d)
	assembler := memcontext.New()
	return agent.New(d.agent.ID, d.agent.SystemMemoryText, chatClient, d.fifo, d.wm, registry, assembler, agent.DefaultToolIterationCeiling)
}
