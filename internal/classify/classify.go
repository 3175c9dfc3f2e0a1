// Package classify maps raw carrier status codes to structured resolution
// actions. The mapping is a fixed table so the decision ("what this status
// means") stays separate from the console driving ("how we act on it").
package classify

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category is the closure category selected in the console's finish dialog.
type Category string

const (
	CategoryFulfilled     Category = "FULFILLED"
	CategoryNotReceived   Category = "NOT_RECEIVED"
	CategoryCannotFulfill Category = "CANNOT_FULFILL"
	CategoryHandedToNext  Category = "HANDED_TO_NEXT_CARRIER"
	CategoryForceMajeure  Category = "FORCE_MAJEURE"
	CategoryConfirmedLost Category = "CONFIRMED_LOST"
	CategoryUnknown       Category = "UNKNOWN"
)

// Console form field ids populated by the UI layer.
const (
	FieldLogisticsStatus    = "logisticsStatus"
	FieldLogisticsCompany   = "logisticsCompany"
	FieldTmallPackageStatus = "tmallPackageStatus"
	FieldSpecificReason     = "specificReason"
	FieldReturnDate         = "returnDate"
	FieldMemo               = "memo"
)

// Action is the structured decision for closing one ticket. It is a pure
// value computed from the carrier status alone; the UI layer translates it
// into form interactions.
type Action struct {
	RawCode             string
	Category            Category
	MessageText         string
	Fields              map[string]string
	HasSelectableReason bool
	PackageInfo         string
	SubReason           string
	DueDate             *time.Time
	StatusDate          time.Time
}

// Escalate reports whether the action cannot be auto-submitted and must go
// to the exception log instead.
func (a Action) Escalate() bool {
	return a.Category == CategoryUnknown
}

// Summary renders the full decision as one line, so a manual finisher
// reading the exception log can complete the ticket without re-running
// the classification. Fields are listed in sorted order.
func (a Action) Summary() string {
	parts := []string{"類別:" + string(a.Category)}
	if a.SubReason != "" {
		parts = append(parts, "原因:"+a.SubReason)
	}
	if a.DueDate != nil {
		parts = append(parts, "廠退日:"+a.DueDate.Format("2006-01-02"))
	}
	if a.MessageText != "" {
		parts = append(parts, "留言:"+a.MessageText)
	}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+a.Fields[k])
	}
	return strings.Join(parts, " | ")
}

// Classify resolves a raw status code and its status date into an Action.
// Codes outside the table classify as UNKNOWN; Classify never fails.
func Classify(rawCode string, statusDate time.Time) Action {
	e, ok := table[rawCode]
	if !ok {
		return Action{
			RawCode:    rawCode,
			Category:   CategoryUnknown,
			StatusDate: statusDate,
			Fields:     map[string]string{},
		}
	}

	action := Action{
		RawCode:             rawCode,
		Category:            e.category,
		HasSelectableReason: true,
		PackageInfo:         packageInfoTitles[e.category],
		SubReason:           e.subReason,
		StatusDate:          statusDate,
		Fields:              map[string]string{},
	}
	if action.SubReason == "" {
		action.SubReason = defaultSubReasons[e.category]
	}

	var due time.Time
	if e.offsetDays > 0 {
		due = statusDate.AddDate(0, 0, e.offsetDays)
		action.DueDate = &due
	}

	action.MessageText = renderMessage(e, statusDate, due)

	switch e.category {
	case CategoryFulfilled, CategoryForceMajeure:
		action.Fields[FieldLogisticsStatus] = action.MessageText
	case CategoryNotReceived, CategoryHandedToNext:
		action.Fields[FieldLogisticsCompany] = action.MessageText
	case CategoryCannotFulfill:
		action.Fields[FieldTmallPackageStatus] = "將退回清關行"
		action.Fields[FieldSpecificReason] = e.subReason
		action.Fields[FieldReturnDate] = due.Format("2006-01-02") + " 00:00:00"
	case CategoryConfirmedLost:
		action.Fields[FieldMemo] = action.MessageText
	}
	if e.category == CategoryForceMajeure {
		action.Fields[FieldReturnDate] = due.Format("2006-01-02") + " 00:00:00"
	}

	return action
}

func renderMessage(e entry, statusDate, due time.Time) string {
	switch {
	case e.messageWithDue != "":
		return fmt.Sprintf(e.messageWithDue, due.Format("01/02"))
	case e.messageWithDate != "":
		return fmt.Sprintf(e.messageWithDate, statusDate.Format("2006-01-02"))
	default:
		return e.message
	}
}

// KnownCodes returns every raw code in the table, for tooling and tests.
func KnownCodes() []string {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	return codes
}
