// Package ledger provides the durable record of processed tickets. The
// ledger is what makes the whole pipeline at-most-once: a ticket id, once
// present, is never processed again by any automation instance.
package ledger

import (
	"context"
	"time"

	"shipment-ticket-resolver/internal/models"
)

// Ledger is the processed-ticket record shared by all automation instances.
type Ledger interface {
	// IsProcessed reports whether the id exists in the durable store.
	IsProcessed(ctx context.Context, id string) bool

	// MarkProcessed inserts the entry only if absent and reports whether an
	// insert happened. It never fails the caller: a persistent write error
	// is routed to a side-channel failure log, because the externally
	// visible outcome (a closed ticket) has already happened.
	MarkProcessed(ctx context.Context, id, url string, at time.Time) bool

	// Load reads the whole ledger. Corrupt or missing backing data yields
	// an empty map, never an error that stops processing.
	Load(ctx context.Context) map[string]models.LedgerEntry
}
