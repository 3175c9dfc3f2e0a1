// Package automation is the seam between the decision core and whatever
// drives the console UI. The core hands over a classify.Action; the
// executor owns windows, element location and submission entirely.
package automation

import (
	"context"

	"github.com/sirupsen/logrus"

	"shipment-ticket-resolver/internal/classify"
	"shipment-ticket-resolver/internal/models"
)

// Executor applies a resolution action to the console for one ticket.
// Implementations live outside this module (browser drivers); a returned
// error means the decided action was not applied and the ticket must go to
// a human.
type Executor interface {
	Execute(ctx context.Context, item models.WorkItem, action classify.Action) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, item models.WorkItem, action classify.Action) error

func (f ExecutorFunc) Execute(ctx context.Context, item models.WorkItem, action classify.Action) error {
	return f(ctx, item, action)
}

// DryRun logs the action instead of touching the console. Used for
// rehearsal runs against the live ledger and API, and in tests.
type DryRun struct{}

func (DryRun) Execute(_ context.Context, item models.WorkItem, action classify.Action) error {
	logrus.WithFields(logrus.Fields{
		"ticket":   item.ID,
		"code":     action.RawCode,
		"category": action.Category,
	}).Infof("dry-run: would submit %q", action.MessageText)
	return nil
}
