// Package fifo implements the third memory tier (§4.2): a bounded,
// in-memory view of the last K conversation rows for an agent, backed
// by the append-only conversation log in internal/store. Overflow
// promotes the oldest eligible entry into archival memory.
package fifo

import (
	"context"
	"log"
	"sync"

	"github.com/rcliao/hierarchical-memory-engine/internal/archival"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/store"
)

// Store manages the FIFO view for every agent in the process.
type Store struct {
	db   *store.Store
	arch *archival.Store

	mu       sync.Mutex
	views    map[string][]model.ConversationEntry
	capacity map[string]int
}

// New creates a FIFO Store. arch receives best-effort overflow
// promotions; it may be nil in tests that don't exercise overflow.
func New(db *store.Store, arch *archival.Store) *Store {
	return &Store{
		db:       db,
		arch:     arch,
		views:    make(map[string][]model.ConversationEntry),
		capacity: make(map[string]int),
	}
}

// LoadFromLog seeds the in-memory view for agentID with the last K
// conversation rows, in chronological order (§4.2). Called once on
// agent instantiation; no overflow promotion is re-run (the persisted
// log is already the ground truth for what has been promoted).
func (s *Store) LoadFromLog(agentID string, k int) error {
	rows, err := s.db.RecentConversation(agentID, k)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[agentID] = rows
	s.capacity[agentID] = k
	return nil
}

// Items returns the current bounded view for agentID, oldest first.
func (s *Store) Items(agentID string) []model.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.views[agentID]
	out := make([]model.ConversationEntry, len(view))
	copy(out, view)
	return out
}

// Append persists entry to the conversation log, then adds it to the
// tail of the in-memory view. The log write happens first so the two
// operations form a single logical step per §4.7's persistence
// ordering: a crash between them leaves the log (ground truth)
// consistent and the view reconstructable via LoadFromLog.
func (s *Store) Append(ctx context.Context, agentID string, entry model.ConversationEntry) error {
	if err := s.db.AppendConversation(entry); err != nil {
		return err
	}

	s.mu.Lock()
	capacity, ok := s.capacity[agentID]
	if !ok {
		capacity = model.DefaultFIFOCapacity
		s.capacity[agentID] = capacity
	}
	view := append(s.views[agentID], entry)

	var overflowed []model.ConversationEntry
	for len(view) > capacity {
		overflowed = append(overflowed, view[0])
		view = view[1:]
	}
	s.views[agentID] = view
	s.mu.Unlock()

	for _, old := range overflowed {
		s.promote(ctx, agentID, old)
	}
	return nil
}

// promote is the best-effort overflow hook (§4.2): failures are logged
// and do not affect the caller, since the entry is retained forever in
// the conversation log regardless of whether archival promotion
// succeeds.
func (s *Store) promote(ctx context.Context, agentID string, entry model.ConversationEntry) {
	if s.arch == nil || !entry.Promotable() {
		return
	}
	if _, err := s.arch.Save(ctx, agentID, entry.Content, map[string]string{
		"source_role": string(entry.Role),
		"source_id":   entry.ID,
	}); err != nil {
		log.Printf("fifo: overflow promotion failed for agent %s entry %s: %v", agentID, entry.ID, err)
	}
}
