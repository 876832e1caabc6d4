// Package chat implements the chat-client contract (§6): send a message
// list and tool schemas, receive a reply plus any structured tool calls.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rcliao/hierarchical-memory-engine/internal/idgen"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

// Message is one entry in the list handed to the chat client — the wire
// form the context assembler (§4.3) produces.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []model.ToolCall // set on assistant messages that requested tools
	ToolCallID string           // set on role="tool" messages, echoes the correlation id
}

// ToolSchema is the JSON-schema description of one registered tool,
// supplied to the chat client on every call (§4.3, §6).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Reply is the chat client's response: terminal text, or tool calls the
// engine must dispatch before the loop continues.
type Reply struct {
	Text      string
	ToolCalls []model.ToolCall
}

// Client is the chat-client contract (§6). Implementations call out to
// an LLM inference service; the engine never inspects the model's raw
// wire format — it receives {text, tool_calls[]} already parsed.
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSchema, temperature float64) (Reply, error)
}

// ─── Ollama implementation ────────────────────────────────────────────────

// OllamaClient calls a local Ollama instance's /api/chat endpoint, using
// Ollama's native tool-calling support — the engine does not regex
// fenced JSON blocks out of free text, unlike the harmony/JSON-block
// dual-format parsing this replaces (spec.md §9).
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates an Ollama-backed chat client for modelID.
func NewOllamaClient(baseURL, modelID string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   modelID,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaWireMessage struct {
	Role      string               `json:"role"`
	Content   string               `json:"content"`
	ToolCalls []ollamaWireToolCall `json:"tool_calls,omitempty"`
}

type ollamaWireToolCall struct {
	Function ollamaWireFunction `json:"function"`
}

type ollamaWireFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaWireTool struct {
	Type     string                `json:"type"`
	Function ollamaWireToolFuncDef `json:"function"`
}

type ollamaWireToolFuncDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaWireMessage `json:"messages"`
	Tools    []ollamaWireTool    `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatResponse struct {
	Message ollamaWireMessage `json:"message"`
}

func (c *OllamaClient) Chat(ctx context.Context, messages []Message, tools []ToolSchema, temperature float64) (Reply, error) {
	// Ollama's /api/chat expects tool results under role "tool" with
	// plain content; there is no wire field for the correlation id, so
	// tool-result messages must follow their tool_calls in order.
	wireMessages := make([]ollamaWireMessage, len(messages))
	for i, m := range messages {
		wireMessages[i] = ollamaWireMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			wireMessages[i].ToolCalls = append(wireMessages[i].ToolCalls, ollamaWireToolCall{
				Function: ollamaWireFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
	}

	wireTools := make([]ollamaWireTool, len(tools))
	for i, t := range tools {
		wireTools[i] = ollamaWireTool{
			Type: "function",
			Function: ollamaWireToolFuncDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}

	reqBody := ollamaChatRequest{
		Model:    c.model,
		Messages: wireMessages,
		Tools:    wireTools,
		Stream:   false,
		Options:  ollamaOptions{Temperature: temperature},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, fmt.Errorf("chat: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("chat: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Reply{}, fmt.Errorf("chat: ollama error %d: %s", resp.StatusCode, string(b))
	}

	var wireResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return Reply{}, fmt.Errorf("chat: decode ollama response: %w", err)
	}

	reply := Reply{Text: wireResp.Message.Content}
	for _, tc := range wireResp.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, model.ToolCall{
			ID:        idgen.New(),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply, nil
}

// NewFromEnv builds an OllamaClient from environment variables per
// spec.md §6 ("chat-service endpoint" as an env var).
//
//	MEMORY_ENGINE_CHAT_URL  base URL override (default http://localhost:11434)
func NewFromEnv(modelID string) *OllamaClient {
	return NewOllamaClient(os.Getenv("MEMORY_ENGINE_CHAT_URL"), modelID)
}
