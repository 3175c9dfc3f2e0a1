package models

import (
	"time"
)

// Ticket lifecycle states as seen by the orchestrator.
const (
	StateDiscovered          = "discovered"
	StateStatusQueried       = "status_queried"
	StateClassified          = "classified"
	StateResolutionSubmitted = "resolution_submitted"
	StateClosed              = "closed"
	StateEscalated           = "escalated"
)

// LedgerTimeLayout is the processed_time format shared with the other
// automation instances that read the ledger file.
const LedgerTimeLayout = "2006-01-02 15:04:05"

// WorkItem is one console ticket awaiting resolution. Immutable once
// discovered; the ticket id is the 14-digit console ticket number.
type WorkItem struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Waybill      string    `json:"waybill"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// LedgerEntry records that a ticket was handled. Write-once: an existing
// entry is never overwritten with a different processed time.
type LedgerEntry struct {
	URL           string `json:"url"`
	ProcessedTime string `json:"processed_time"`
}

// CarrierStatus is the NPPS tracking answer for one waybill. ResultCode 0
// means the carrier resolved the shipment state and RawCode is meaningful;
// anything else is a terminal "status unresolved".
type CarrierStatus struct {
	RawCode     string
	Description string
	ResultCode  int
	ResultDesc  string
	Date        time.Time
}

// Resolved reports whether a resolution may be computed from this status.
func (s CarrierStatus) Resolved() bool {
	return s.ResultCode == 0
}

// ExceptionRecord is one escalation event routed to human triage.
type ExceptionRecord struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Reason     string    `json:"reason"`
	Note       string    `json:"note"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Escalation reason categories written to the exception logs.
const (
	ReasonManualReview    = "投訴單_請人工處理"
	ReasonStatusQuery     = "貨態查詢失敗_無法處理單"
	ReasonUnknownStatus   = "未知貨態_請人工處理"
	ReasonExecutionFailed = "結單操作失敗_請人工處理"
)
