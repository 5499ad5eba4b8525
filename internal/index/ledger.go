package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Record is the ledger entry for one indexed document. The ledger is
// authoritative for "what is currently indexed": exactly one record exists
// per distinct doc_id.
type Record struct {
	DocID      string    `json:"doc_id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	PageCount  int       `json:"page_count"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// Ledger persists the doc_id → Record mapping as a single JSON file.
// A missing or corrupt file loads as an empty ledger rather than failing:
// the vector store can always be rebuilt from the source files.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Record
}

// LoadLedger reads the ledger at path, tolerating absence and corruption.
func LoadLedger(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		path:    path,
		logger:  logger,
		entries: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("reading ledger, starting empty", "path", path, "error", err)
		}
		return l
	}

	if err := json.Unmarshal(data, &l.entries); err != nil {
		logger.Warn("parsing ledger, starting empty", "path", path, "error", err)
		l.entries = make(map[string]Record)
	}
	return l
}

// Get returns the record for docID, if present.
func (l *Ledger) Get(docID string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.entries[docID]
	return rec, ok
}

// Put upserts a record and persists the ledger.
func (l *Ledger) Put(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[rec.DocID] = rec
	return l.save()
}

// Remove deletes the record for docID, if present, and persists the ledger.
func (l *Ledger) Remove(docID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[docID]; !ok {
		return nil
	}
	delete(l.entries, docID)
	return l.save()
}

// Clear removes every record and persists the empty ledger.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]Record)
	return l.save()
}

// All returns a snapshot of every record, ordered by filename.
func (l *Ledger) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := make([]Record, 0, len(l.entries))
	for _, rec := range l.entries {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})
	return records
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// save writes the ledger atomically (temp file + rename) so a crash
// mid-write never leaves a truncated ledger on disk. Callers hold l.mu.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp ledger: %w", err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}
