package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkrause/deskd/internal/log"
)

func testRecord(filename string) Record {
	return Record{
		DocID:      DocID(filename),
		Filename:   filename,
		ChunkCount: 7,
		PageCount:  2,
		IndexedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLedgerPersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexed_state.json")

	l := LoadLedger(path, log.NewNop())
	rec := testRecord("refunds.pdf")
	if err := l.Put(rec); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	reloaded := LoadLedger(path, log.NewNop())
	got, ok := reloaded.Get(rec.DocID)
	if !ok {
		t.Fatal("record missing after reload")
	}
	if got != rec {
		t.Errorf("reloaded record = %+v, want %+v", got, rec)
	}
}

func TestLedgerMissingFileIsEmpty(t *testing.T) {
	l := LoadLedger(filepath.Join(t.TempDir(), "absent.json"), log.NewNop())
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestLedgerCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexed_state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing corrupt ledger: %v", err)
	}

	l := LoadLedger(path, log.NewNop())
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for corrupt file", l.Len())
	}

	// Corrupt ledger must still be writable afterwards.
	if err := l.Put(testRecord("refunds.pdf")); err != nil {
		t.Errorf("Put() after corrupt load error: %v", err)
	}
}

func TestLedgerRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexed_state.json")
	l := LoadLedger(path, log.NewNop())

	rec := testRecord("refunds.pdf")
	if err := l.Put(rec); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := l.Remove(rec.DocID); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, ok := l.Get(rec.DocID); ok {
		t.Error("record still present after Remove")
	}

	// Removing an absent record is a no-op.
	if err := l.Remove("missing"); err != nil {
		t.Errorf("Remove(missing) error: %v", err)
	}
}

func TestLedgerAllSortedByFilename(t *testing.T) {
	l := LoadLedger(filepath.Join(t.TempDir(), "indexed_state.json"), log.NewNop())

	for _, name := range []string{"shipping.pdf", "refunds.pdf", "warranty.pdf"} {
		if err := l.Put(testRecord(name)); err != nil {
			t.Fatalf("Put(%s) error: %v", name, err)
		}
	}

	all := l.All()
	want := []string{"refunds.pdf", "shipping.pdf", "warranty.pdf"}
	if len(all) != len(want) {
		t.Fatalf("All() returned %d records, want %d", len(all), len(want))
	}
	for i, rec := range all {
		if rec.Filename != want[i] {
			t.Errorf("All()[%d].Filename = %q, want %q", i, rec.Filename, want[i])
		}
	}
}

func TestLedgerClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexed_state.json")
	l := LoadLedger(path, log.NewNop())

	if err := l.Put(testRecord("refunds.pdf")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := l.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", l.Len())
	}

	if reloaded := LoadLedger(path, log.NewNop()); reloaded.Len() != 0 {
		t.Errorf("reloaded Len() = %d, want 0", reloaded.Len())
	}
}
