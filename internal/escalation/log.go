// Package escalation routes tickets the engine cannot auto-resolve to human
// triage: append-only exception log files (one per reason category) plus the
// per-ticket record files operators review.
package escalation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shipment-ticket-resolver/internal/models"
)

// Writer appends exception records and ticket records under a base
// directory. Log files are named after the reason category, matching the
// files the operators already watch.
type Writer struct {
	dir string

	mu     sync.Mutex
	recent []models.ExceptionRecord
}

// recentKeep bounds the in-memory tail served by the ops API.
const recentKeep = 200

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Append writes one exception line and remembers it for the ops API.
// Failures are logged and swallowed: escalation bookkeeping must never
// break the processing loop.
func (w *Writer) Append(ticketID, reason, note string) models.ExceptionRecord {
	rec := models.ExceptionRecord{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		Reason:     reason,
		Note:       note,
		RecordedAt: time.Now(),
	}

	line := fmt.Sprintf("工單號:%s : %s\n", ticketID, note)
	if err := w.appendLine(reason+".txt", line); err != nil {
		logrus.Errorf("append exception log: %v", err)
	}

	w.mu.Lock()
	w.recent = append(w.recent, rec)
	if len(w.recent) > recentKeep {
		w.recent = w.recent[len(w.recent)-recentKeep:]
	}
	w.mu.Unlock()

	return rec
}

// Recent returns up to n of the latest exception records, newest last.
func (w *Writer) Recent(n int) []models.ExceptionRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n <= 0 || n > len(w.recent) {
		n = len(w.recent)
	}
	out := make([]models.ExceptionRecord, n)
	copy(out, w.recent[len(w.recent)-n:])
	return out
}

// WriteRecord writes the per-ticket record file (records/<id>.txt) with the
// ticket basics and whatever the status query returned.
func (w *Writer) WriteRecord(item models.WorkItem, status models.CarrierStatus) error {
	dir := filepath.Join(w.dir, "records")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}

	body := fmt.Sprintf("工单号: %s\n运单号: %s\n", item.ID, item.Waybill)
	if status.RawCode != "" || status.ResultDesc != "" {
		body += fmt.Sprintf("\nNPPS 狀態查詢:\n結果: type=%s name=%s errorCode=%d %s\n",
			status.RawCode, status.Description, status.ResultCode, status.ResultDesc)
	}

	path := filepath.Join(dir, item.ID+".txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", path, err)
	}
	return nil
}

// RecordsDir is where per-ticket record files live (used by the archiver).
func (w *Writer) RecordsDir() string {
	return filepath.Join(w.dir, "records")
}

func (w *Writer) appendLine(name, line string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create exception dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	return nil
}
