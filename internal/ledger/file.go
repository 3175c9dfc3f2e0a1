package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"shipment-ticket-resolver/internal/models"
	"shipment-ticket-resolver/internal/telemetry"
)

// FileLedger persists the ledger as one JSON object mapping ticket ids to
// entries. The file is shared between independent automation instances, so
// every mutation re-reads the file and replaces it atomically; no in-memory
// copy is trusted across calls.
type FileLedger struct {
	path        string
	failurePath string
	maxRetries  int
	retryDelay  time.Duration

	mu sync.Mutex
}

// NewFileLedger creates a file-backed ledger. failurePath receives one line
// per update that could not be persisted after bounded retries.
func NewFileLedger(path, failurePath string) *FileLedger {
	return &FileLedger{
		path:        path,
		failurePath: failurePath,
		maxRetries:  3,
		retryDelay:  time.Second,
	}
}

func (l *FileLedger) IsProcessed(ctx context.Context, id string) bool {
	_, ok := l.Load(ctx)[id]
	return ok
}

func (l *FileLedger) MarkProcessed(ctx context.Context, id, url string, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		entries := l.read()
		if _, exists := entries[id]; exists {
			return false
		}
		entries[id] = models.LedgerEntry{
			URL:           url,
			ProcessedTime: at.Format(models.LedgerTimeLayout),
		}
		if err := l.replace(entries); err != nil {
			lastErr = err
			logrus.Errorf("ledger write failed (attempt %d/%d): %v", attempt, l.maxRetries, err)
			select {
			case <-ctx.Done():
				attempt = l.maxRetries
			case <-time.After(l.retryDelay):
			}
			continue
		}
		return true
	}

	// Durability is best effort here; the ticket is already closed in the
	// external system, so losing the marker must not block the loop.
	l.logFailure(id, lastErr)
	return true
}

func (l *FileLedger) Load(_ context.Context) map[string]models.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// read loads the ledger file without locking. A corrupt file is renamed
// aside with a timestamp suffix and an empty ledger is returned.
func (l *FileLedger) read() map[string]models.LedgerEntry {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]models.LedgerEntry{}
	}
	if err != nil {
		logrus.Errorf("read ledger %s: %v", l.path, err)
		return map[string]models.LedgerEntry{}
	}

	entries := map[string]models.LedgerEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		backup := fmt.Sprintf("%s.corrupt.%s", l.path, time.Now().Format("20060102150405"))
		if renameErr := os.Rename(l.path, backup); renameErr != nil {
			logrus.Errorf("backup corrupt ledger: %v", renameErr)
		} else {
			logrus.WithField("backup", backup).Warn("ledger file corrupt, starting empty")
		}
		return map[string]models.LedgerEntry{}
	}
	return entries
}

// replace writes the full ledger to a temp file in the same directory and
// atomically swaps it into place.
func (l *FileLedger) replace(entries map[string]models.LedgerEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (l *FileLedger) logFailure(id string, cause error) {
	telemetry.LedgerWriteFailures.Inc()
	line := fmt.Sprintf("%s - 無法保存工單 %s 的處理記錄: %v\n",
		time.Now().Format(models.LedgerTimeLayout), id, cause)
	f, err := os.OpenFile(l.failurePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logrus.Errorf("open ledger failure log: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		logrus.Errorf("append ledger failure log: %v", err)
	}
}

// Prune removes entries whose processed time is before the cutoff and
// reports how many were dropped. Used by operator tooling; normal
// processing never deletes entries.
func (l *FileLedger) Prune(before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.read()
	removed := 0
	for id, e := range entries {
		t, err := time.ParseInLocation(models.LedgerTimeLayout, e.ProcessedTime, time.Local)
		if err != nil {
			continue
		}
		if t.Before(before) {
			delete(entries, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := l.replace(entries); err != nil {
		return 0, err
	}
	return removed, nil
}

// Path returns the backing file location (used by the archiver and tools).
func (l *FileLedger) Path() string {
	return l.path
}
