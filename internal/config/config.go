// Package config holds the memory engine's typed startup configuration
// (§6): CLI flags and environment variables, no config-file parser (out
// of scope per spec.md §1 — "Configuration file parsing... treated as a
// typed config struct at startup").
package config

import (
	"fmt"
	"os"
)

// Config is the full set of parameters the CLI needs to construct one
// running agent (§6's "CLI surface" flags plus the env vars for the
// database, embedding, and chat endpoints).
type Config struct {
	AgentName     string
	ModelID       string
	WorkspaceRoot string
	FIFOCapacity  int
	LogLevel      string

	DBPath string

	ChatURL string

	EmbedProvider string
	EmbedModel    string
	EmbedURL      string
	EmbedDim      int
	OpenAIAPIKey  string
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Defaults returns a Config populated with the reference values spec.md
// §3/§6 names, before flags and environment overrides are applied.
func Defaults() Config {
	return Config{
		ModelID:      "llama3.1",
		FIFOCapacity: 50,
		LogLevel:     "info",
		DBPath:       defaultDBPath(),
		EmbedDim:     768,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agent-memory.db"
	}
	return home + "/.agent-memory/memory.db"
}

// ApplyEnv overlays the environment variables spec.md §6 names ("Database
// connection string, embedding-service endpoint, chat-service endpoint. No
// credentials on disk.") onto c, without overriding anything already set
// by a flag.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MEMORY_ENGINE_DB"); v != "" && c.DBPath == defaultDBPath() {
		c.DBPath = v
	}
	if v := os.Getenv("MEMORY_ENGINE_CHAT_URL"); v != "" {
		c.ChatURL = v
	}
	if v := os.Getenv("MEMORY_ENGINE_EMBED_PROVIDER"); v != "" {
		c.EmbedProvider = v
	}
	if v := os.Getenv("MEMORY_ENGINE_EMBED_MODEL"); v != "" {
		c.EmbedModel = v
	}
	if v := os.Getenv("MEMORY_ENGINE_EMBED_URL"); v != "" {
		c.EmbedURL = v
	}
	if v := os.Getenv("MEMORY_ENGINE_EMBED_DIM"); v != "" {
		var dim int
		if _, err := fmt.Sscanf(v, "%d", &dim); err == nil && dim > 0 {
			c.EmbedDim = dim
		}
	}
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
}

// Validate checks the configuration error taxonomy's "Configuration
// error" class (§7): agent name, model id, workspace path and database
// path must be non-empty, FIFO capacity and embedding dimension
// positive, and the log level one of the four known names. It does not
// check that the workspace path is usable or that the model exists.
// These errors are fatal at startup, exit code 2 (§6).
func (c Config) Validate() error {
	if c.AgentName == "" {
		return fmt.Errorf("config: agent name is required (--agent)")
	}
	if c.ModelID == "" {
		return fmt.Errorf("config: model id is required (--model)")
	}
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("config: workspace path is required (--workspace)")
	}
	if c.FIFOCapacity <= 0 {
		return fmt.Errorf("config: fifo capacity must be positive, got %d (--context)", c.FIFOCapacity)
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: database path is required (set MEMORY_ENGINE_DB or pass --db)")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("config: invalid log level %q, must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.EmbedDim)
	}
	return nil
}
