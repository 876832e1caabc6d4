// Package workingmem implements the second memory tier (§4.1): a single
// mutable, size-capped document per agent, editable only through the
// update_working_memory tool.
package workingmem

import (
	"fmt"
	"sync"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/store"
)

// Store manages the working-memory document for every agent. The
// document itself lives in the agents table (internal/store); this
// type adds the size-cap rule and in-process caching so every read
// doesn't round-trip to SQLite.
type Store struct {
	db *store.Store

	mu    sync.Mutex
	cache map[string]string
}

// New creates a working-memory Store over db.
func New(db *store.Store) *Store {
	return &Store{db: db, cache: make(map[string]string)}
}

// Get returns the current working-memory document for agentID,
// loading it from durable storage on first access.
func (s *Store) Get(agentID string) (string, error) {
	s.mu.Lock()
	if doc, ok := s.cache[agentID]; ok {
		s.mu.Unlock()
		return doc, nil
	}
	s.mu.Unlock()

	a, err := s.db.GetAgent(agentID)
	if err != nil {
		return "", fmt.Errorf("workingmem: load agent %s: %w", agentID, err)
	}

	s.mu.Lock()
	s.cache[agentID] = a.WorkingMemoryText
	s.mu.Unlock()
	return a.WorkingMemoryText, nil
}

// Replace overwrites the working-memory document wholesale. Callers
// (the update_working_memory tool) are responsible for producing the
// merged field-path update; Replace enforces only the cap.
func (s *Store) Replace(agentID, newContent string) error {
	if len(newContent) > model.WorkingMemoryCap {
		return fmt.Errorf("workingmem: document is %d bytes, exceeds cap of %d", len(newContent), model.WorkingMemoryCap)
	}
	if err := s.db.UpdateWorkingMemory(agentID, newContent); err != nil {
		return fmt.Errorf("workingmem: persist: %w", err)
	}

	s.mu.Lock()
	s.cache[agentID] = newContent
	s.mu.Unlock()
	return nil
}
