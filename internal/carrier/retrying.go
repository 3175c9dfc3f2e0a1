package carrier

import (
	"context"
	"time"

	"shipment-ticket-resolver/internal/models"
	"shipment-ticket-resolver/internal/retry"
)

// Retrying wraps a Client with a bounded, constant-delay retry. Status
// queries are read-only, so repeating a failed one is safe.
type Retrying struct {
	client   *Client
	attempts int
	delay    time.Duration
}

func NewRetrying(client *Client, attempts int, delay time.Duration) *Retrying {
	return &Retrying{client: client, attempts: attempts, delay: delay}
}

func (r *Retrying) GetStatus(ctx context.Context, shipmentNo string) (models.CarrierStatus, error) {
	return retry.Value(ctx, r.attempts, r.delay, func() (models.CarrierStatus, error) {
		return r.client.GetStatus(ctx, shipmentNo)
	})
}
