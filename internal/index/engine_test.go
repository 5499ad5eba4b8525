package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mkrause/deskd/internal/knowledge"
	"github.com/mkrause/deskd/internal/log"
	"github.com/mkrause/deskd/internal/pdf"
)

// mockStore implements ChunkStore for testing.
type mockStore struct {
	mu sync.Mutex

	addErr    error
	deleteErr error
	resetErr  error

	chunks map[string][]knowledge.Chunk // keyed by doc_id

	addCalls    int
	deleteCalls int
	resetCalls  int
}

func newMockStore() *mockStore {
	return &mockStore{chunks: make(map[string][]knowledge.Chunk)}
}

func (m *mockStore) Add(_ context.Context, chunks []knowledge.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.addErr != nil {
		return m.addErr
	}
	for _, c := range chunks {
		m.chunks[c.DocID] = append(m.chunks[c.DocID], c)
	}
	return nil
}

func (m *mockStore) DeleteByDoc(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.chunks, docID)
	return nil
}

func (m *mockStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	if m.resetErr != nil {
		return m.resetErr
	}
	m.chunks = make(map[string][]knowledge.Chunk)
	return nil
}

func (m *mockStore) chunksFor(docID string) []knowledge.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[docID]
}

// mockExtractor implements TextExtractor. Files named "corrupt*" fail;
// files must exist on disk, mirroring the real extractor's stat check.
type mockExtractor struct {
	pages map[string][]pdf.Page // keyed by base filename
}

func (m *mockExtractor) Extract(_ context.Context, path string) ([]pdf.Page, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", pdf.ErrNotFound, path)
	}
	name := filepath.Base(path)
	pages, ok := m.pages[name]
	if !ok {
		return nil, fmt.Errorf("unreadable PDF %s", name)
	}
	return pages, nil
}

type engineFixture struct {
	engine    *Engine
	store     *mockStore
	ledger    *Ledger
	dir       string
	clockTime time.Time
}

func newEngineFixture(t *testing.T, pages map[string][]pdf.Page) *engineFixture {
	t.Helper()
	dir := t.TempDir()

	store := newMockStore()
	ledger := LoadLedger(filepath.Join(dir, "indexed_state.json"), log.NewNop())
	engine, err := New(Config{
		Store:       store,
		Extractor:   &mockExtractor{pages: pages},
		Ledger:      ledger,
		PoliciesDir: dir,
		Logger:      log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	f := &engineFixture{
		engine:    engine,
		store:     store,
		ledger:    ledger,
		dir:       dir,
		clockTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	engine.now = func() time.Time { return f.clockTime }
	return f
}

func (f *engineFixture) writeFile(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func singlePage(text string) []pdf.Page {
	return []pdf.Page{{Number: 1, Text: text}}
}

func TestIndexHappyPath(t *testing.T) {
	f := newEngineFixture(t, map[string][]pdf.Page{
		"refunds.pdf": {
			{Number: 1, Text: "refunds are issued within 30 days"},
			{Number: 2, Text: "exceptions apply for digital goods"},
		},
	})
	f.writeFile(t, "refunds.pdf")

	res, err := f.engine.Index(context.Background(), "refunds.pdf")
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}

	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2", res.Pages)
	}
	if res.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", res.Chunks)
	}
	if res.DocID != DocID("refunds.pdf") {
		t.Errorf("DocID = %q, want digest of filename", res.DocID)
	}

	rec, ok := f.ledger.Get(res.DocID)
	if !ok {
		t.Fatal("ledger entry missing after Index")
	}
	if rec.ChunkCount != 2 || rec.PageCount != 2 {
		t.Errorf("ledger record = %+v", rec)
	}

	chunks := f.store.chunksFor(res.DocID)
	if len(chunks) != 2 {
		t.Fatalf("stored %d chunks, want 2", len(chunks))
	}
	first := chunks[0]
	if first.ID != res.DocID+"_0" {
		t.Errorf("chunk ID = %q, want %q", first.ID, res.DocID+"_0")
	}
	if first.Page != 1 || chunks[1].Page != 2 {
		t.Errorf("chunk pages = %d,%d, want 1,2", first.Page, chunks[1].Page)
	}
	if first.Filename != "refunds.pdf" {
		t.Errorf("chunk filename = %q", first.Filename)
	}
}

func TestIndexMissingFile(t *testing.T) {
	f := newEngineFixture(t, nil)

	_, err := f.engine.Index(context.Background(), "absent.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Index(absent) error = %v, want ErrNotFound", err)
	}
	if f.store.addCalls != 0 {
		t.Errorf("store touched for missing file: %d add calls", f.store.addCalls)
	}
}

func TestIndexRejectsPathComponents(t *testing.T) {
	f := newEngineFixture(t, nil)

	for _, name := range []string{"../escape.pdf", "dir/file.pdf", "", "."} {
		if _, err := f.engine.Index(context.Background(), name); !errors.Is(err, ErrInvalidFilename) {
			t.Errorf("Index(%q) error = %v, want ErrInvalidFilename", name, err)
		}
	}
}

func TestIndexTwiceIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, map[string][]pdf.Page{
		"refunds.pdf": singlePage("refund policy text"),
	})
	f.writeFile(t, "refunds.pdf")
	ctx := context.Background()

	first, err := f.engine.Index(ctx, "refunds.pdf")
	if err != nil {
		t.Fatalf("first Index() error: %v", err)
	}
	firstRec, _ := f.ledger.Get(first.DocID)

	f.clockTime = f.clockTime.Add(time.Hour)

	second, err := f.engine.Index(ctx, "refunds.pdf")
	if err != nil {
		t.Fatalf("second Index() error: %v", err)
	}

	if f.ledger.Len() != 1 {
		t.Errorf("ledger has %d entries, want 1", f.ledger.Len())
	}
	rec, _ := f.ledger.Get(second.DocID)
	if rec.ChunkCount != firstRec.ChunkCount {
		t.Errorf("chunk_count changed on re-index: %d → %d", firstRec.ChunkCount, rec.ChunkCount)
	}
	if !rec.IndexedAt.After(firstRec.IndexedAt) {
		t.Errorf("indexed_at not updated: %v → %v", firstRec.IndexedAt, rec.IndexedAt)
	}

	// Old chunks were deleted before the new set went in.
	if got := len(f.store.chunksFor(second.DocID)); got != firstRec.ChunkCount {
		t.Errorf("store has %d chunks after re-index, want %d", got, firstRec.ChunkCount)
	}
	if f.store.deleteCalls != 2 {
		t.Errorf("deleteCalls = %d, want delete before each insert", f.store.deleteCalls)
	}
}

func TestIndexThenDeleteRoundTrip(t *testing.T) {
	f := newEngineFixture(t, map[string][]pdf.Page{
		"refunds.pdf": singlePage("refund policy text"),
	})
	f.writeFile(t, "refunds.pdf")
	ctx := context.Background()

	res, err := f.engine.Index(ctx, "refunds.pdf")
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}

	if err := f.engine.Delete(ctx, "refunds.pdf"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, ok := f.ledger.Get(res.DocID); ok {
		t.Error("ledger entry survives Delete")
	}
	if len(f.store.chunksFor(res.DocID)) != 0 {
		t.Error("chunks survive Delete")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "refunds.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Error("source file survives Delete")
	}
}

func TestDeleteIsBestEffort(t *testing.T) {
	f := newEngineFixture(t, map[string][]pdf.Page{
		"refunds.pdf": singlePage("refund policy text"),
	})
	f.writeFile(t, "refunds.pdf")
	ctx := context.Background()

	res, err := f.engine.Index(ctx, "refunds.pdf")
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}

	// Vector store failure must not stop ledger and disk cleanup.
	f.store.deleteErr = errors.New("store down")

	err = f.engine.Delete(ctx, "refunds.pdf")
	if err == nil {
		t.Fatal("Delete() with failing store returned nil error")
	}
	if _, ok := f.ledger.Get(res.DocID); ok {
		t.Error("ledger entry not removed despite best-effort semantics")
	}
	if _, statErr := os.Stat(filepath.Join(f.dir, "refunds.pdf")); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("source file not removed despite best-effort semantics")
	}
}

func TestResetAllMixedOutcome(t *testing.T) {
	// One readable file and one the extractor cannot parse.
	f := newEngineFixture(t, map[string][]pdf.Page{
		"good.pdf": singlePage("valid policy content"),
	})
	f.writeFile(t, "good.pdf")
	f.writeFile(t, "corrupt.pdf")

	report, err := f.engine.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll() error: %v", err)
	}

	if len(report) != 2 {
		t.Fatalf("report has %d entries, want 2", len(report))
	}

	byName := make(map[string]error, len(report))
	for _, st := range report {
		byName[st.Filename] = st.Err
	}
	if byName["good.pdf"] != nil {
		t.Errorf("good.pdf failed: %v", byName["good.pdf"])
	}
	if byName["corrupt.pdf"] == nil {
		t.Error("corrupt.pdf unexpectedly succeeded")
	}

	if f.ledger.Len() != 1 {
		t.Errorf("ledger has %d entries, want 1 (only the valid file)", f.ledger.Len())
	}
	if f.store.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", f.store.resetCalls)
	}
}

func TestResetAllIgnoresNonPDFs(t *testing.T) {
	f := newEngineFixture(t, map[string][]pdf.Page{
		"good.pdf": singlePage("valid policy content"),
	})
	f.writeFile(t, "good.pdf")
	f.writeFile(t, "notes.txt")

	report, err := f.engine.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll() error: %v", err)
	}
	if len(report) != 1 || report[0].Filename != "good.pdf" {
		t.Errorf("report = %+v, want only good.pdf", report)
	}
}

func TestListIndexed(t *testing.T) {
	f := newEngineFixture(t, map[string][]pdf.Page{
		"a.pdf": singlePage("content a"),
		"b.pdf": singlePage("content b"),
	})
	f.writeFile(t, "a.pdf")
	f.writeFile(t, "b.pdf")
	ctx := context.Background()

	for _, name := range []string{"b.pdf", "a.pdf"} {
		if _, err := f.engine.Index(ctx, name); err != nil {
			t.Fatalf("Index(%s) error: %v", name, err)
		}
	}

	records := f.engine.ListIndexed()
	if len(records) != 2 {
		t.Fatalf("ListIndexed() returned %d records, want 2", len(records))
	}
	if records[0].Filename != "a.pdf" || records[1].Filename != "b.pdf" {
		t.Errorf("records not sorted by filename: %+v", records)
	}
}

func TestDocIDIsPureFunctionOfFilename(t *testing.T) {
	if DocID("refunds.pdf") != DocID("refunds.pdf") {
		t.Error("DocID not deterministic")
	}
	if DocID("refunds.pdf") == DocID("shipping.pdf") {
		t.Error("distinct filenames share a DocID")
	}
}

func TestConcurrentIndexSameDocSerializes(t *testing.T) {
	f := newEngineFixture(t, map[string][]pdf.Page{
		"refunds.pdf": singlePage("refund policy text"),
	})
	f.writeFile(t, "refunds.pdf")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Index(ctx, "refunds.pdf"); err != nil {
				t.Errorf("concurrent Index() error: %v", err)
			}
		}()
	}
	wg.Wait()

	docID := DocID("refunds.pdf")
	if got := len(f.store.chunksFor(docID)); got != 1 {
		t.Errorf("store has %d chunks after concurrent re-index, want 1", got)
	}
	if f.ledger.Len() != 1 {
		t.Errorf("ledger has %d entries, want 1", f.ledger.Len())
	}
}
