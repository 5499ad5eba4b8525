// Package index keeps the policy knowledge base consistent with the files
// in the policies directory: chunking, content-addressed identification,
// upsert, delete, and full reset against the vector store and the ledger.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mkrause/deskd/internal/knowledge"
	"github.com/mkrause/deskd/internal/pdf"
)

// ErrNotFound indicates the referenced source file does not exist.
var ErrNotFound = errors.New("file not found")

// ErrInvalidFilename indicates the filename contains path components.
var ErrInvalidFilename = errors.New("invalid filename")

// ChunkStore is the slice of the vector store the engine needs.
type ChunkStore interface {
	Add(ctx context.Context, chunks []knowledge.Chunk) error
	DeleteByDoc(ctx context.Context, docID string) error
	Reset(ctx context.Context) error
}

// TextExtractor converts a source file into page-separated text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) ([]pdf.Page, error)
}

// IndexResult summarizes a successful Index call.
type IndexResult struct {
	DocID  string
	Chunks int
	Pages  int
}

// FileStatus is the per-file outcome of a ResetAll batch.
type FileStatus struct {
	Filename string
	Err      error // nil on success
}

// Config collects the engine's dependencies.
type Config struct {
	Store       ChunkStore
	Extractor   TextExtractor
	Ledger      *Ledger
	PoliciesDir string
	Logger      *slog.Logger
}

// Engine owns the lifecycle of indexed policy documents.
//
// Writes are serialized per doc_id: concurrent Index calls for the same
// filename never interleave the delete and insert phases. Operations on
// distinct documents proceed concurrently. Retrieval is not blocked during
// re-indexing, so a search racing a re-index may briefly see no chunks for
// that document.
type Engine struct {
	store       ChunkStore
	extractor   TextExtractor
	ledger      *Ledger
	policiesDir string
	logger      *slog.Logger
	now         func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an indexing engine. All Config fields except Logger are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("chunk store is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("text extractor is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.PoliciesDir == "" {
		return nil, errors.New("policies directory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:       cfg.Store,
		extractor:   cfg.Extractor,
		ledger:      cfg.Ledger,
		policiesDir: cfg.PoliciesDir,
		logger:      logger,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// DocID derives the stable identity of a document from its filename.
// It is a pure function of the name, not the content: re-saving the same
// name overwrites in place, renaming creates a new identity.
func DocID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:16])
}

// Index loads, chunks, and (re)indexes one file from the policies directory.
//
// Existing chunks for the document are deleted before the new set is
// inserted, so a changed file never leaves stale chunks mixed with fresh
// ones. The ledger is updated last: a crash after the vector store write is
// recovered by simply re-running Index.
func (e *Engine) Index(ctx context.Context, filename string) (IndexResult, error) {
	if err := validateFilename(filename); err != nil {
		return IndexResult{}, err
	}

	docID := DocID(filename)
	unlock := e.lockDoc(docID)
	defer unlock()

	path := filepath.Join(e.policiesDir, filename)
	pages, err := e.extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, pdf.ErrNotFound) {
			return IndexResult{}, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return IndexResult{}, fmt.Errorf("extracting %s: %w", filename, err)
	}

	indexedAt := e.now().UTC().Truncate(time.Second)
	chunks := e.buildChunks(docID, filename, pages, indexedAt)
	if len(chunks) == 0 {
		return IndexResult{}, fmt.Errorf("no indexable content in %s", filename)
	}

	e.logger.Debug("indexing document",
		"filename", filename, "doc_id", docID,
		"pages", len(pages), "chunks", len(chunks))

	// Delete-then-insert keeps the store free of stale chunks at the cost
	// of a brief window with zero searchable chunks for this document.
	if err := e.store.DeleteByDoc(ctx, docID); err != nil {
		return IndexResult{}, fmt.Errorf("clearing previous chunks for %s: %w", filename, err)
	}
	if err := e.store.Add(ctx, chunks); err != nil {
		return IndexResult{}, fmt.Errorf("storing chunks for %s: %w", filename, err)
	}

	rec := Record{
		DocID:      docID,
		Filename:   filename,
		ChunkCount: len(chunks),
		PageCount:  len(pages),
		IndexedAt:  indexedAt,
	}
	if err := e.ledger.Put(rec); err != nil {
		return IndexResult{}, fmt.Errorf("recording %s in ledger: %w", filename, err)
	}

	return IndexResult{DocID: docID, Chunks: len(chunks), Pages: len(pages)}, nil
}

// Delete removes a document from the vector store, the ledger, and disk,
// in that order so the ledger never claims chunks that are gone. Best-effort:
// a failed step is reported but later steps still run.
func (e *Engine) Delete(ctx context.Context, filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	docID := DocID(filename)
	unlock := e.lockDoc(docID)
	defer unlock()

	var errs []error

	if err := e.store.DeleteByDoc(ctx, docID); err != nil {
		errs = append(errs, fmt.Errorf("deleting chunks: %w", err))
	}
	if err := e.ledger.Remove(docID); err != nil {
		errs = append(errs, fmt.Errorf("removing ledger entry: %w", err))
	}

	path := filepath.Join(e.policiesDir, filename)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("removing source file: %w", err))
	}

	e.logger.Info("deleted document", "filename", filename, "doc_id", docID,
		"errors", len(errs))
	return errors.Join(errs...)
}

// ResetAll wipes the ledger and the vector store, then re-indexes every PDF
// currently in the policies directory. One file's failure does not abort the
// rest; the per-file report carries the outcomes.
func (e *Engine) ResetAll(ctx context.Context) ([]FileStatus, error) {
	if err := e.ledger.Clear(); err != nil {
		return nil, fmt.Errorf("clearing ledger: %w", err)
	}
	if err := e.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("clearing vector store: %w", err)
	}

	entries, err := os.ReadDir(e.policiesDir)
	if err != nil {
		return nil, fmt.Errorf("listing policies directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	report := make([]FileStatus, 0, len(names))
	for _, name := range names {
		_, err := e.Index(ctx, name)
		report = append(report, FileStatus{Filename: name, Err: err})
		if err != nil {
			e.logger.Warn("re-index failed", "filename", name, "error", err)
		}
	}

	e.logger.Info("reset complete", "files", len(report))
	return report, nil
}

// ListIndexed returns the ledger's current records. Read-only; the vector
// store is not touched.
func (e *Engine) ListIndexed() []Record {
	return e.ledger.All()
}

// buildChunks splits every page into overlapping chunks with full
// provenance metadata. Chunk ordinals run across the whole document.
func (e *Engine) buildChunks(docID, filename string, pages []pdf.Page, indexedAt time.Time) []knowledge.Chunk {
	var chunks []knowledge.Chunk
	ordinal := 0
	for _, page := range pages {
		for _, text := range SplitText(page.Text, ChunkSize, ChunkOverlap) {
			chunks = append(chunks, knowledge.Chunk{
				ID:        fmt.Sprintf("%s_%d", docID, ordinal),
				DocID:     docID,
				Filename:  filename,
				Page:      page.Number,
				Text:      text,
				IndexedAt: indexedAt,
			})
			ordinal++
		}
	}
	return chunks
}

// lockDoc serializes operations on one doc_id and returns the unlock func.
func (e *Engine) lockDoc(docID string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[docID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[docID] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// validateFilename rejects names with path components so a filename can
// never escape the policies directory.
func validateFilename(filename string) error {
	if filename == "" || filename != filepath.Base(filename) ||
		filename == "." || filename == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}
