package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) *FileLedger {
	t.Helper()
	dir := t.TempDir()
	l := NewFileLedger(filepath.Join(dir, "processed_orders.json"), filepath.Join(dir, "record_errors.txt"))
	l.retryDelay = time.Millisecond
	return l
}

func TestMarkProcessedIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	if !l.MarkProcessed(ctx, "20240501000001", "https://desk/t/1", at) {
		t.Fatal("first mark should insert")
	}
	if l.MarkProcessed(ctx, "20240501000001", "https://desk/t/other", at.Add(time.Hour)) {
		t.Fatal("second mark must not insert")
	}

	entries := l.Load(ctx)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	e := entries["20240501000001"]
	if e.ProcessedTime != "2024-05-01 12:30:00" {
		t.Fatalf("processed_time changed by second call: %s", e.ProcessedTime)
	}
	if e.URL != "https://desk/t/1" {
		t.Fatalf("url changed by second call: %s", e.URL)
	}
}

func TestMarkProcessedDurable(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if !l.MarkProcessed(ctx, "20240501000002", "https://desk/t/2", time.Now()) {
		t.Fatal("mark should insert")
	}

	// Fresh ledger over the same file simulates a process restart.
	restarted := NewFileLedger(l.path, l.failurePath)
	if !restarted.IsProcessed(ctx, "20240501000002") {
		t.Fatal("entry lost across restart")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if err := os.WriteFile(l.path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries := l.Load(ctx)
	if len(entries) != 0 {
		t.Fatalf("corrupt ledger should load empty, got %d entries", len(entries))
	}

	matches, err := filepath.Glob(l.path + ".corrupt.*")
	if err != nil || len(matches) != 1 {
		t.Fatalf("corrupt file not preserved: %v %v", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil || string(data) != "{not json" {
		t.Fatalf("backup content altered: %q %v", data, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := newTestLedger(t)
	if entries := l.Load(context.Background()); len(entries) != 0 {
		t.Fatalf("missing ledger should load empty, got %d", len(entries))
	}
}

func TestMarkProcessedConcurrent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	var wg sync.WaitGroup
	inserted := make([]bool, 8)
	for i := range inserted {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted[i] = l.MarkProcessed(ctx, "20240501000003", "https://desk/t/3", time.Now())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range inserted {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one insert, got %d", wins)
	}
}

func TestMarkProcessedWriteFailureLogged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// Point the ledger at a path whose parent is a file, so every write fails.
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewFileLedger(filepath.Join(blocker, "ledger.json"), filepath.Join(dir, "record_errors.txt"))
	l.retryDelay = time.Millisecond

	if !l.MarkProcessed(ctx, "20240501000004", "https://desk/t/4", time.Now()) {
		t.Fatal("write failure must not surface to the caller")
	}

	data, err := os.ReadFile(l.failurePath)
	if err != nil {
		t.Fatalf("failure log not written: %v", err)
	}
	if !strings.Contains(string(data), "20240501000004") {
		t.Fatalf("failure log missing ticket id: %s", data)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.Local)
	recent := time.Now()
	l.MarkProcessed(ctx, "20230101000001", "", old)
	l.MarkProcessed(ctx, "20240601000001", "", recent)

	removed, err := l.Prune(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}
	if l.IsProcessed(ctx, "20230101000001") {
		t.Fatal("old entry survived prune")
	}
	if !l.IsProcessed(ctx, "20240601000001") {
		t.Fatal("recent entry lost by prune")
	}
}
