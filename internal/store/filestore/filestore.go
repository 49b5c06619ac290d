// Package filestore is the file-backed reference implementation of
// internal/store's ProjectStore/MessageStore/TokenUsageStore, letting
// the CLI/server run standalone and tests exercise real
// idempotent-by-message-id behavior without a database.
//
// Grounded on the teacher's internal/store/file package (FileSessionStore
// wrapping an in-memory manager, one JSON file per key under a root
// directory), narrowed from the teacher's full session/message-history
// persistence to the three store interfaces spec.md §6.2 names.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/forgecode/internal/store"
)

// Store is a mutex-guarded, JSON-file-per-record persistence layer
// rooted at a directory, implementing all three store interfaces.
type Store struct {
	mu   sync.Mutex
	root string
}

// New creates a Store rooted at dir, creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	for _, sub := range []string{"projects", "messages", "tokens"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{root: dir}, nil
}

func sanitize(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (s *Store) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.root, rel)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) readJSON(rel string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SaveProject implements store.ProjectStore.
func (s *Store) SaveProject(rec store.ProjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(filepath.Join("projects", sanitize(rec.Name)+".json"), rec)
}

// LoadProject implements store.ProjectStore.
func (s *Store) LoadProject(name string) (store.ProjectRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec store.ProjectRecord
	ok, err := s.readJSON(filepath.Join("projects", sanitize(name)+".json"), &rec)
	return rec, ok, err
}

// SaveMessage implements store.MessageStore. Writing the same ID twice
// overwrites the same file, giving idempotent-by-message-id semantics
// for free.
func (s *Store) SaveMessage(rec store.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionDir := filepath.Join("messages", sanitize(rec.SessionID))
	if err := os.MkdirAll(filepath.Join(s.root, sessionDir), 0o755); err != nil {
		return err
	}
	return s.writeJSON(filepath.Join(sessionDir, sanitize(rec.ID)+".json"), rec)
}

// ListMessages implements store.MessageStore.
func (s *Store) ListMessages(sessionID string) ([]store.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionDir := filepath.Join(s.root, "messages", sanitize(sessionID))
	entries, err := os.ReadDir(sessionDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]store.MessageRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var rec store.MessageRecord
		if _, err := s.readJSON(filepath.Join("messages", sanitize(sessionID), e.Name()), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// AccumulateTokens implements store.TokenUsageStore: reads the
// existing record for (sessionID, provider, model), adds input/output,
// and writes it back.
func (s *Store) AccumulateTokens(sessionID, provider, model string, input, output int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := filepath.Join("tokens", sanitize(sessionID)+"_"+sanitize(provider)+"_"+sanitize(model)+".json")
	var rec store.TokenUsageRecord
	if _, err := s.readJSON(rel, &rec); err != nil {
		return err
	}
	rec.SessionID, rec.Provider, rec.Model = sessionID, provider, model
	rec.InputTokens += input
	rec.OutputTokens += output
	return s.writeJSON(rel, rec)
}

// GetTokenUsage implements store.TokenUsageStore.
func (s *Store) GetTokenUsage(sessionID string) ([]store.TokenUsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, "tokens")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prefix := sanitize(sessionID) + "_"
	records := make([]store.TokenUsageRecord, 0)
	for _, e := range entries {
		if e.IsDir() || len(e.Name()) < len(prefix) || e.Name()[:len(prefix)] != prefix {
			continue
		}
		var rec store.TokenUsageRecord
		if _, err := s.readJSON(filepath.Join("tokens", e.Name()), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
