// Package source supplies candidate work items to the orchestrator. The
// discovery itself (scraping the console's ticket list) belongs to the UI
// layer; sources only hand over what was discovered.
package source

import (
	"context"

	"shipment-ticket-resolver/internal/models"
)

// Source yields the next batch of candidate work items. An empty batch
// means no work right now; the orchestrator sleeps and asks again.
type Source interface {
	Next(ctx context.Context, limit int) ([]models.WorkItem, error)
}

// Static serves a fixed batch once, then nothing. Useful for one-shot runs
// and tests.
type Static struct {
	items []models.WorkItem
}

func NewStatic(items []models.WorkItem) *Static {
	cp := make([]models.WorkItem, len(items))
	copy(cp, items)
	return &Static{items: cp}
}

func (s *Static) Next(_ context.Context, limit int) ([]models.WorkItem, error) {
	if len(s.items) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(s.items) {
		limit = len(s.items)
	}
	batch := s.items[:limit]
	s.items = s.items[limit:]
	return batch, nil
}
