// Package worker drives the ticket processing loop: pull candidate
// tickets, query the carrier, classify, act, and always record the
// outcome in the ledger.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shipment-ticket-resolver/internal/automation"
	"shipment-ticket-resolver/internal/classify"
	"shipment-ticket-resolver/internal/escalation"
	"shipment-ticket-resolver/internal/ledger"
	"shipment-ticket-resolver/internal/models"
	"shipment-ticket-resolver/internal/source"
	"shipment-ticket-resolver/internal/telemetry"
)

// StatusFetcher answers carrier status queries for a waybill.
type StatusFetcher interface {
	GetStatus(ctx context.Context, shipmentNo string) (models.CarrierStatus, error)
}

// Options tune the loop cadence. Zero values take the defaults the
// operators run with.
type Options struct {
	PassInterval  time.Duration // pause after a pass that found work
	IdleInterval  time.Duration // pause after a pass that found nothing
	ErrorInterval time.Duration // pause after a pass that failed outright
	BatchSize     int
}

func (o *Options) fill() {
	if o.PassInterval <= 0 {
		o.PassInterval = 5 * time.Minute
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = 10 * time.Minute
	}
	if o.ErrorInterval <= 0 {
		o.ErrorInterval = time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
}

// Orchestrator owns one processing loop. It is deliberately sequential:
// tickets within a pass are handled one at a time so the ledger and the
// console never see the same ticket twice.
type Orchestrator struct {
	opts     Options
	src      source.Source
	carrier  StatusFetcher
	executor automation.Executor
	ledger   ledger.Ledger
	exc      *escalation.Writer
	runID    string
	log      *logrus.Entry
}

func New(opts Options, src source.Source, carrier StatusFetcher, executor automation.Executor, led ledger.Ledger, exc *escalation.Writer) *Orchestrator {
	opts.fill()
	runID := uuid.NewString()
	return &Orchestrator{
		opts:     opts,
		src:      src,
		carrier:  carrier,
		executor: executor,
		ledger:   led,
		exc:      exc,
		runID:    runID,
		log:      logrus.WithField("run_id", runID),
	}
}

// Run executes passes until the context is cancelled. The loop itself
// never returns on a pass failure; a failed pass just shortens the next
// sleep.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.WithFields(logrus.Fields{
		"pass_interval": o.opts.PassInterval,
		"idle_interval": o.opts.IdleInterval,
	}).Info("orchestrator started")

	for {
		handled, err := o.RunPass(ctx)

		wait := o.opts.PassInterval
		switch {
		case err != nil:
			o.log.Errorf("pass failed: %v", err)
			wait = o.opts.ErrorInterval
		case handled == 0:
			wait = o.opts.IdleInterval
		}

		select {
		case <-ctx.Done():
			o.log.Info("orchestrator stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunPass drains the source and processes every candidate once. It
// returns the number of tickets it looked at, skipped ones included.
func (o *Orchestrator) RunPass(ctx context.Context) (int, error) {
	start := time.Now()
	handled := 0

	if d, ok := o.src.(interface {
		Depth(context.Context) (int64, error)
	}); ok {
		if depth, err := d.Depth(ctx); err == nil {
			telemetry.IntakeDepthGauge.Set(float64(depth))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		batch, err := o.src.Next(ctx, o.opts.BatchSize)
		if err != nil {
			return handled, fmt.Errorf("fetch work items: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, item := range batch {
			o.ProcessItem(ctx, item)
			handled++
		}
	}

	telemetry.PassDuration.Observe(time.Since(start).Seconds())
	telemetry.LastPassUnix.SetToCurrentTime()
	o.log.WithFields(logrus.Fields{
		"handled":  handled,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("pass finished")
	return handled, nil
}

// ProcessItem runs one ticket through the pipeline. Every exit path that
// acted on the ticket (resolved or escalated) marks it processed; only a
// ledger hit leaves the ledger untouched.
func (o *Orchestrator) ProcessItem(ctx context.Context, item models.WorkItem) {
	log := o.log.WithFields(logrus.Fields{"ticket": item.ID, "waybill": item.Waybill})
	log.WithField("state", models.StateDiscovered).Debug("ticket picked up")

	if o.ledger.IsProcessed(ctx, item.ID) {
		telemetry.TicketsSkipped.Inc()
		log.Debug("already in ledger, skipping")
		return
	}

	if !validWaybill(item.Waybill) {
		log.Warn("waybill outside automation scope")
		o.escalate(ctx, item, models.ReasonManualReview,
			fmt.Sprintf("運單號 %s 非自動處理範圍", item.Waybill))
		return
	}

	status, err := o.carrier.GetStatus(ctx, item.Waybill)
	if err != nil {
		log.Errorf("status query failed: %v", err)
		o.escalate(ctx, item, models.ReasonStatusQuery,
			fmt.Sprintf("貨態查詢失敗: %v", err))
		return
	}

	log.WithFields(logrus.Fields{"code": status.RawCode, "state": models.StateStatusQueried}).Debug("carrier status fetched")
	_ = o.exc.WriteRecord(item, status)

	if !status.Resolved() {
		log.WithField("result_code", status.ResultCode).Info("carrier could not resolve status")
		o.escalate(ctx, item, models.ReasonStatusQuery,
			fmt.Sprintf("錯誤描述: %s", status.ResultDesc))
		return
	}

	action := classify.Classify(status.RawCode, status.Date)
	telemetry.Classifications.WithLabelValues(string(action.Category)).Inc()
	log.WithFields(logrus.Fields{"category": action.Category, "state": models.StateClassified}).Debug("status classified")
	if action.Escalate() {
		log.WithField("code", status.RawCode).Warn("status code not in decision table")
		o.escalate(ctx, item, models.ReasonUnknownStatus,
			fmt.Sprintf("貨態代碼 %s (%s) 無對應處理規則", status.RawCode, status.Description))
		return
	}

	if err := o.executor.Execute(ctx, item, action); err != nil {
		log.Errorf("console submission failed: %v", err)
		// The decided action goes into the note so the manual finisher can
		// submit it as-is instead of re-deriving message and due date.
		o.escalate(ctx, item, models.ReasonExecutionFailed,
			fmt.Sprintf("貨態 %s 結單失敗: %v | %s", action.RawCode, err, action.Summary()))
		return
	}
	log.WithField("state", models.StateResolutionSubmitted).Debug("resolution submitted")

	o.mark(ctx, item)
	telemetry.TicketsResolved.Inc()
	log.WithFields(logrus.Fields{
		"code":     action.RawCode,
		"category": action.Category,
		"state":    models.StateClosed,
	}).Info("ticket resolved")
}

// escalate files the exception and still marks the ticket processed so
// the next pass does not retry a decision a human now owns.
func (o *Orchestrator) escalate(ctx context.Context, item models.WorkItem, reason, note string) {
	o.exc.Append(item.ID, reason, note)
	o.mark(ctx, item)
	telemetry.TicketsEscalated.Inc()
	o.log.WithFields(logrus.Fields{
		"ticket": item.ID,
		"reason": reason,
		"state":  models.StateEscalated,
	}).Info("ticket escalated")
}

func (o *Orchestrator) mark(ctx context.Context, item models.WorkItem) {
	o.ledger.MarkProcessed(ctx, item.ID, item.URL, time.Now())
}

// validWaybill keeps the automation on the one carrier account it is
// wired for: eight digits starting with 2.
func validWaybill(waybill string) bool {
	if len(waybill) != 8 || waybill[0] != '2' {
		return false
	}
	for _, r := range waybill {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
