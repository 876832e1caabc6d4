package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rcliao/hierarchical-memory-engine/internal/chat"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

func TestOllamaClient_Chat_ParsesTextReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "llama3" {
			t.Fatalf("model = %v, want llama3", req["model"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "hello back"},
		})
	}))
	defer srv.Close()

	c := chat.NewOllamaClient(srv.URL, "llama3")
	reply, err := c.Chat(context.Background(), []chat.Message{
		{Role: "user", Content: "hi"},
	}, nil, 0.7)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Text != "hello back" {
		t.Fatalf("reply.Text = %q, want %q", reply.Text, "hello back")
	}
	if len(reply.ToolCalls) != 0 {
		t.Fatalf("reply.ToolCalls = %#v, want none", reply.ToolCalls)
	}
}

func TestOllamaClient_Chat_ParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{
					{"function": map[string]any{
						"name":      "search_memory",
						"arguments": map[string]any{"query": "cats"},
					}},
				},
			},
		})
	}))
	defer srv.Close()

	c := chat.NewOllamaClient(srv.URL, "llama3")
	reply, err := c.Chat(context.Background(), nil, nil, 0.7)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(reply.ToolCalls) != 1 {
		t.Fatalf("len(reply.ToolCalls) = %d, want 1", len(reply.ToolCalls))
	}
	tc := reply.ToolCalls[0]
	if tc.Name != "search_memory" || tc.ID == "" {
		t.Fatalf("unexpected tool call: %#v", tc)
	}
	if tc.Arguments["query"] != "cats" {
		t.Fatalf("arguments = %#v", tc.Arguments)
	}
}

func TestOllamaClient_Chat_EchoesAssistantToolCallsOnWire(t *testing.T) {
	var seenToolCalls []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role      string `json:"role"`
				ToolCalls []any  `json:"tool_calls"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, m := range req.Messages {
			if m.Role == "assistant" {
				seenToolCalls = m.ToolCalls
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "ok"},
		})
	}))
	defer srv.Close()

	c := chat.NewOllamaClient(srv.URL, "llama3")
	_, err := c.Chat(context.Background(), []chat.Message{
		{Role: "user", Content: "do something"},
		{Role: "assistant", Content: "", ToolCalls: []model.ToolCall{
			{ID: "call-1", Name: "read_file", Arguments: map[string]any{"path": "a.txt"}},
		}},
		{Role: "tool", Content: "file contents", ToolCallID: "call-1"},
	}, nil, 0.7)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(seenToolCalls) != 1 {
		t.Fatalf("assistant message carried %d tool_calls on the wire, want 1", len(seenToolCalls))
	}
}

func TestOllamaClient_Chat_PropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := chat.NewOllamaClient(srv.URL, "llama3")
	if _, err := c.Chat(context.Background(), nil, nil, 0.7); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestNewOllamaClient_DefaultsBaseURL(t *testing.T) {
	c := chat.NewOllamaClient("", "llama3")
	if c == nil {
		t.Fatal("expected non-nil client")
	}
}
