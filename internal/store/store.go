// Package store implements the persistence layer for the hierarchical
// memory engine: agents, the append-only conversation log, and archival
// memory-entry rows, over SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec  func(db execer, query string, args ...any) (sql.Result, error)
	query func(db queryer, query string, args ...any) (*sql.Rows, error)
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(db execer, query string, args ...any) (sql.Result, error) {
			return db.Exec(query, args...)
		},
		query: func(db queryer, query string, args ...any) (*sql.Rows, error) {
			return db.Query(query, args...)
		},
	}
}

// Store is the SQLite-backed persistence layer.
type Store struct {
	db    *sql.DB
	hooks storeHooks
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryHook(db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(db, query, args...)
	}
	return db.Query(query, args...)
}

// Open creates the parent directory if needed, opens SQLite in WAL mode,
// and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, hooks: defaultStoreHooks()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL UNIQUE,
			model_id            TEXT NOT NULL,
			system_memory_text  TEXT NOT NULL,
			working_memory_text TEXT NOT NULL DEFAULT '',
			fifo_capacity       INTEGER NOT NULL DEFAULT 50,
			workspace_root      TEXT NOT NULL,
			created_at          TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			updated_at          TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		);

		CREATE TABLE IF NOT EXISTS memory_entries (
			id         TEXT PRIMARY KEY,
			agent_id   TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			content    TEXT NOT NULL,
			embedding  BLOB NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		);

		CREATE INDEX IF NOT EXISTS idx_memory_entries_agent ON memory_entries(agent_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS conversation_history (
			id                  TEXT PRIMARY KEY,
			agent_id            TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			role                TEXT NOT NULL,
			content             TEXT NOT NULL,
			tool_name           TEXT,
			tool_args           TEXT,
			tool_correlation_id TEXT,
			created_at          TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		);

		CREATE INDEX IF NOT EXISTS idx_conv_agent_created ON conversation_history(agent_id, created_at DESC);
	`
	if _, err := s.execHook(s.db, schema); err != nil {
		return err
	}
	return nil
}

// ─── Agents ──────────────────────────────────────────────────────────────

// CreateAgent inserts a new agent row. The caller is responsible for
// generating a's ID beforehand (internal/idgen).
func (s *Store) CreateAgent(a model.Agent) error {
	_, err := s.execHook(s.db,
		`INSERT INTO agents (id, name, model_id, system_memory_text, working_memory_text, fifo_capacity, workspace_root)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.ModelID, a.SystemMemoryText, a.WorkingMemoryText, a.FIFOCapacity, a.WorkspaceRoot,
	)
	if err != nil {
		return fmt.Errorf("store: create agent: %w", err)
	}
	return nil
}

// GetAgentByName retrieves an agent by its unique display name.
func (s *Store) GetAgentByName(name string) (*model.Agent, error) {
	return s.scanAgentRow(s.db.QueryRow(
		`SELECT id, name, model_id, system_memory_text, working_memory_text, fifo_capacity, workspace_root, created_at, updated_at
		 FROM agents WHERE name = ?`, name,
	))
}

// GetAgent retrieves an agent by its opaque ID.
func (s *Store) GetAgent(id string) (*model.Agent, error) {
	return s.scanAgentRow(s.db.QueryRow(
		`SELECT id, name, model_id, system_memory_text, working_memory_text, fifo_capacity, workspace_root, created_at, updated_at
		 FROM agents WHERE id = ?`, id,
	))
}

func (s *Store) scanAgentRow(row *sql.Row) (*model.Agent, error) {
	var a model.Agent
	var created, updated string
	if err := row.Scan(&a.ID, &a.Name, &a.ModelID, &a.SystemMemoryText, &a.WorkingMemoryText,
		&a.FIFOCapacity, &a.WorkspaceRoot, &created, &updated); err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &a, nil
}

// UpdateWorkingMemory overwrites an agent's working-memory document.
func (s *Store) UpdateWorkingMemory(agentID, text string) error {
	_, err := s.execHook(s.db,
		`UPDATE agents SET working_memory_text = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE id = ?`,
		text, agentID,
	)
	return err
}

// UpdateSystemMemory overwrites an agent's static system-memory text.
// Used only by the startup migration hook (§6) when the compiled-in
// template shape changes.
func (s *Store) UpdateSystemMemory(agentID, text string) error {
	_, err := s.execHook(s.db,
		`UPDATE agents SET system_memory_text = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE id = ?`,
		text, agentID,
	)
	return err
}

// DeleteAgent removes an agent and cascades to its memory_entries and
// conversation_history rows.
func (s *Store) DeleteAgent(id string) error {
	_, err := s.execHook(s.db, `DELETE FROM agents WHERE id = ?`, id)
	return err
}

// ─── Conversation history ───────────────────────────────────────────────

// AppendConversation persists one conversation row. Each append is its
// own transaction (a single INSERT), per §4.8.
func (s *Store) AppendConversation(e model.ConversationEntry) error {
	var argsJSON any
	if e.ToolArgs != nil {
		b, err := json.Marshal(e.ToolArgs)
		if err != nil {
			return fmt.Errorf("store: marshal tool args: %w", err)
		}
		argsJSON = string(b)
	}
	_, err := s.execHook(s.db,
		`INSERT INTO conversation_history (id, agent_id, role, content, tool_name, tool_args, tool_correlation_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AgentID, string(e.Role), e.Content,
		nullableString(e.ToolName), argsJSON, nullableString(e.ToolCorrelationID),
	)
	if err != nil {
		return fmt.Errorf("store: append conversation: %w", err)
	}
	return nil
}

// RecentConversation returns the last K conversation rows for agentID,
// in chronological order (oldest first) — the shape load_from_log (§4.2)
// needs to seed a FIFO view.
func (s *Store) RecentConversation(agentID string, limit int) ([]model.ConversationEntry, error) {
	rows, err := s.queryHook(s.db,
		`SELECT id, agent_id, role, content, ifnull(tool_name,''), ifnull(tool_args,''), ifnull(tool_correlation_id,''), created_at
		 FROM conversation_history
		 WHERE agent_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent conversation: %w", err)
	}
	defer rows.Close()

	var entries []model.ConversationEntry
	for rows.Next() {
		var e model.ConversationEntry
		var role, created, argsText string
		if err := rows.Scan(&e.ID, &e.AgentID, &role, &e.Content, &e.ToolName, &argsText, &e.ToolCorrelationID, &created); err != nil {
			return nil, err
		}
		e.Role = model.Role(role)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		if argsText != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(argsText), &args); err == nil {
				e.ToolArgs = args
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse: query is newest-first, the FIFO view wants oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ─── Memory entries (archival) ──────────────────────────────────────────

// InsertMemoryEntry persists one archival row. Each insert is its own
// transaction, per §4.8.
func (s *Store) InsertMemoryEntry(e model.MemoryEntry) error {
	metaJSON := "{}"
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata: %w", err)
		}
		metaJSON = string(b)
	}
	_, err := s.execHook(s.db,
		`INSERT INTO memory_entries (id, agent_id, content, embedding, metadata) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.AgentID, e.Content, EncodeVector(e.Vector), metaJSON,
	)
	if err != nil {
		return fmt.Errorf("store: insert memory entry: %w", err)
	}
	return nil
}

// AllMemoryEntries returns every archival row for agentID, oldest first.
// Used to rebuild the in-process HNSW graph from durable storage
// (internal/archival) on first use per agent.
func (s *Store) AllMemoryEntries(agentID string) ([]model.MemoryEntry, error) {
	rows, err := s.queryHook(s.db,
		`SELECT id, agent_id, content, embedding, metadata, created_at
		 FROM memory_entries WHERE agent_id = ? ORDER BY created_at ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: all memory entries: %w", err)
	}
	defer rows.Close()

	var entries []model.MemoryEntry
	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MemoryEntryCount returns the number of archival rows for agentID.
func (s *Store) MemoryEntryCount(agentID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_entries WHERE agent_id = ?`, agentID).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemoryEntry(r rowScanner) (model.MemoryEntry, error) {
	var e model.MemoryEntry
	var blob []byte
	var metaText, created string
	if err := r.Scan(&e.ID, &e.AgentID, &e.Content, &blob, &metaText, &created); err != nil {
		return e, err
	}
	vec, err := DecodeVector(blob)
	if err != nil {
		return e, fmt.Errorf("store: decode vector: %w", err)
	}
	e.Vector = vec
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if metaText != "" && metaText != "{}" {
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaText), &meta); err == nil {
			e.Metadata = meta
		}
	}
	return e, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
