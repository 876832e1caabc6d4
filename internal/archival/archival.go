// Package archival implements the fourth memory tier (§4.1): an
// unbounded, per-agent similarity-searchable store backed by HNSW
// approximate nearest-neighbor search over cosine distance.
//
// The HNSW index is held in process memory only; SQLite via
// internal/store is the durable source of truth. On first use for an
// agent the graph is rebuilt from every row that agent owns.
package archival

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/rcliao/hierarchical-memory-engine/internal/embedding"
	"github.com/rcliao/hierarchical-memory-engine/internal/idgen"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/store"
)

// HNSW parameters set on every new graph. m is fixed; ef_search starts
// at defaultEfSearch and can be changed per agent with SetEfSearch.
// ef_construction has no separate knob in github.com/coder/hnsw — graph
// quality at insert time is instead driven by Ml, which newGraph sets
// to the fixed constant 0.25.
const (
	defaultM        = 16
	defaultEfSearch = 64
)

// Result is one similarity-search hit: the stored entry plus its
// similarity score, 1 - cosine_distance, in [-1, 1] (§4.1).
type Result struct {
	Entry      model.MemoryEntry
	Similarity float32
}

// Store is the archival memory tier. One Store instance serves every
// agent in the deployment; per-agent graphs are built lazily and kept
// warm for the process lifetime.
type Store struct {
	db       *store.Store
	embedder embedding.Embedder

	mu     sync.Mutex
	graphs map[string]*hnsw.Graph[string] // agentID -> graph
	byID   map[string]map[string]model.MemoryEntry
}

// New creates an archival Store over db, using embedder to vectorize
// text on Save.
func New(db *store.Store, embedder embedding.Embedder) *Store {
	return &Store{
		db:       db,
		embedder: embedder,
		graphs:   make(map[string]*hnsw.Graph[string]),
		byID:     make(map[string]map[string]model.MemoryEntry),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = defaultM
	g.Ml = 0.25
	g.EfSearch = defaultEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// graphFor returns the agent's graph, rebuilding it from durable storage
// on first access. Caller must hold mu.
func (s *Store) graphFor(agentID string) (*hnsw.Graph[string], error) {
	if g, ok := s.graphs[agentID]; ok {
		return g, nil
	}

	entries, err := s.db.AllMemoryEntries(agentID)
	if err != nil {
		return nil, fmt.Errorf("archival: load entries for agent %s: %w", agentID, err)
	}

	g := newGraph()
	index := make(map[string]model.MemoryEntry, len(entries))
	nodes := make([]hnsw.Node[string], 0, len(entries))
	for _, e := range entries {
		index[e.ID] = e
		nodes = append(nodes, hnsw.MakeNode(e.ID, hnsw.Vector(e.Vector)))
	}
	if len(nodes) > 0 {
		g.Add(nodes...)
	}

	s.graphs[agentID] = g
	s.byID[agentID] = index
	return g, nil
}

// SetEfSearch overrides the runtime-tunable ef_search parameter (§4.1)
// for an agent's graph, building it first if necessary.
func (s *Store) SetEfSearch(agentID string, ef int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.graphFor(agentID)
	if err != nil {
		return err
	}
	g.EfSearch = ef
	return nil
}

// Save embeds text and inserts it as a new archival entry for agentID.
// Rejected before insert if the vector's length doesn't match the
// embedder's configured dimension, Dims() (§3: "an entry is rejected
// before insert if dim(vector) != D").
func (s *Store) Save(ctx context.Context, agentID, text string, metadata map[string]string) (model.MemoryEntry, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return model.MemoryEntry{}, fmt.Errorf("archival: embed: %w", err)
	}
	if len(vec) != s.embedder.Dims() {
		return model.MemoryEntry{}, fmt.Errorf("archival: embedding dim %d != configured dim %d", len(vec), s.embedder.Dims())
	}

	entry := model.MemoryEntry{
		ID:        idgen.New(),
		AgentID:   agentID,
		Content:   text,
		Vector:    vec,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.InsertMemoryEntry(entry); err != nil {
		return model.MemoryEntry{}, fmt.Errorf("archival: persist entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.graphFor(agentID)
	if err != nil {
		// entry is already durable; the in-memory graph will pick it up
		// on next rebuild, so this is not fatal to the caller.
		return entry, nil
	}
	if _, loaded := s.byID[agentID][entry.ID]; loaded {
		// graphFor just rebuilt the graph from storage, which already
		// includes the row persisted above.
		return entry, nil
	}
	g.Add(hnsw.MakeNode(entry.ID, hnsw.Vector(entry.Vector)))
	s.byID[agentID][entry.ID] = entry
	return entry, nil
}

// Search returns the k archival entries for agentID most similar to
// query, most similar first. Ties in similarity are broken by more
// recent CreatedAt (§4.1).
func (s *Store) Search(ctx context.Context, agentID, query string, k int) ([]Result, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("archival: embed query: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.graphFor(agentID)
	if err != nil {
		return nil, err
	}

	hits := g.Search(hnsw.Vector(vec), k)
	index := s.byID[agentID]

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		entry, ok := index[h.Key]
		if !ok {
			continue
		}
		dist := hnsw.CosineDistance(hnsw.Vector(vec), h.Value)
		results = append(results, Result{Entry: entry, Similarity: 1 - dist})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of archival entries held for agentID,
// without requiring the graph to already be built (used by the admin
// stats surface).
func (s *Store) Count(agentID string) (int, error) {
	return s.db.MemoryEntryCount(agentID)
}

// DeleteAgent drops an agent's in-memory graph. Durable rows are
// removed via store.Store.DeleteAgent's cascade; this only evicts the
// cached index so a deleted agent's memory can't leak into a reused id.
func (s *Store) DeleteAgent(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.graphs, agentID)
	delete(s.byID, agentID)
}
