package config

import "testing"

func validConfig() Config {
	c := Defaults()
	c.AgentName = "assistant"
	c.WorkspaceRoot = "/tmp/workspace"
	return c
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_MissingAgentName(t *testing.T) {
	c := validConfig()
	c.AgentName = ""
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing agent name")
	}
}

func TestValidate_MissingModelID(t *testing.T) {
	c := validConfig()
	c.ModelID = ""
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing model id")
	}
}

func TestValidate_MissingWorkspace(t *testing.T) {
	c := validConfig()
	c.WorkspaceRoot = ""
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing workspace")
	}
}

func TestValidate_NonPositiveFIFOCapacity(t *testing.T) {
	c := validConfig()
	c.FIFOCapacity = 0
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for zero fifo capacity")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for invalid log level")
	}
}

func TestValidate_NonPositiveEmbedDim(t *testing.T) {
	c := validConfig()
	c.EmbedDim = 0
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for zero embedding dimension")
	}
}

func TestApplyEnv_OverridesDBPath(t *testing.T) {
	t.Setenv("MEMORY_ENGINE_DB", "/custom/path.db")
	c := Defaults()
	c.ApplyEnv()
	if c.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q, want /custom/path.db", c.DBPath)
	}
}

func TestApplyEnv_InvalidEmbedDimIgnored(t *testing.T) {
	t.Setenv("MEMORY_ENGINE_EMBED_DIM", "not-a-number")
	c := Defaults()
	want := c.EmbedDim
	c.ApplyEnv()
	if c.EmbedDim != want {
		t.Errorf("EmbedDim = %d, want unchanged %d", c.EmbedDim, want)
	}
}
