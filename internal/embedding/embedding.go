// Package embedding provides the Embedder contract (§6) used by the
// archival store to turn text into fixed-dimension vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Vector is a dense embedding of the deployment-fixed dimension D.
type Vector = []float32

// Embedder produces a fixed-dimension vector for a text. On failure it
// returns an error the calling tool converts to a tool-result string
// (§4.1 failure semantics); the engine never retries on the hot path.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// ─── Ollama provider ─────────────────────────────────────────────────────

// OllamaEmbedder calls a local Ollama instance's /api/embeddings endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama-backed embedder. dims is the
// deployment-fixed D (§3, §6) the archival store will reject mismatches
// against; it is not derived from the model name.
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: ollama error %d: %s", resp.StatusCode, string(b))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode ollama response: %w", err)
	}
	if len(result.Embedding) != e.dims {
		return nil, fmt.Errorf("embedding: ollama returned dim %d, deployment expects %d", len(result.Embedding), e.dims)
	}
	return result.Embedding, nil
}

func (e *OllamaEmbedder) Dims() int { return e.dims }

// ─── OpenAI-compatible provider ──────────────────────────────────────────

// OpenAIEmbedder calls any OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

type openAIEmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedder.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(openAIEmbedRequest{Input: text, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: openai error %d: %s", resp.StatusCode, string(b))
	}

	var result openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode openai response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding: openai returned no embeddings")
	}
	if len(result.Data[0].Embedding) != e.dims {
		return nil, fmt.Errorf("embedding: openai returned dim %d, deployment expects %d", len(result.Data[0].Embedding), e.dims)
	}
	return result.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

// ─── Factory ──────────────────────────────────────────────────────────────

// NewFromEnv builds an Embedder from environment variables per spec.md §6
// ("embedding-service endpoint" as an env var, no credentials on disk).
//
//	MEMORY_ENGINE_EMBED_PROVIDER  "ollama" | "openai"
//	MEMORY_ENGINE_EMBED_MODEL     model name
//	MEMORY_ENGINE_EMBED_URL       base URL override
//	MEMORY_ENGINE_EMBED_DIM       deployment-fixed D (default 768)
//	OPENAI_API_KEY                bearer token for the openai provider
func NewFromEnv() (Embedder, error) {
	dims := 768
	if v := os.Getenv("MEMORY_ENGINE_EMBED_DIM"); v != "" {
		var parsed int
		if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil || parsed <= 0 {
			return nil, fmt.Errorf("embedding: invalid MEMORY_ENGINE_EMBED_DIM %q", v)
		}
		dims = parsed
	}

	provider := os.Getenv("MEMORY_ENGINE_EMBED_PROVIDER")
	model := os.Getenv("MEMORY_ENGINE_EMBED_MODEL")
	url := os.Getenv("MEMORY_ENGINE_EMBED_URL")

	switch provider {
	case "", "ollama":
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(url, model, dims), nil
	case "openai":
		return NewOpenAIEmbedder(url, os.Getenv("OPENAI_API_KEY"), model, dims), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", provider)
	}
}
