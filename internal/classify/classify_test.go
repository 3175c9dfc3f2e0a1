package classify

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

var statusDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestClassifyTotality(t *testing.T) {
	for _, code := range KnownCodes() {
		action := Classify(code, statusDate)
		if action.Category == CategoryUnknown {
			t.Errorf("known code %s classified UNKNOWN", code)
		}
		if action.MessageText == "" {
			t.Errorf("known code %s produced empty message", code)
		}
		if !action.HasSelectableReason {
			t.Errorf("known code %s missing selectable reason", code)
		}
		if action.SubReason == "" {
			t.Errorf("known code %s has no sub-reason", code)
		}
		if len(action.Fields) == 0 {
			t.Errorf("known code %s produced no form fields", code)
		}
	}
}

func TestClassifyUnknownCode(t *testing.T) {
	action := Classify("ZZZ99", statusDate)
	if action.Category != CategoryUnknown {
		t.Fatalf("expected UNKNOWN, got %s", action.Category)
	}
	if action.HasSelectableReason {
		t.Fatal("UNKNOWN must not select a reason")
	}
	if !action.Escalate() {
		t.Fatal("UNKNOWN must escalate")
	}
}

func TestClassifyDeterminism(t *testing.T) {
	for _, code := range []string{"PP01", "EIN35", "EVR01", "PPS013", "nope"} {
		a := Classify(code, statusDate)
		b := Classify(code, statusDate)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("classify(%s) not deterministic:\n%+v\n%+v", code, a, b)
		}
	}
}

func TestClassifyOutForDelivery(t *testing.T) {
	action := Classify("PP01", statusDate)
	if action.Category != CategoryFulfilled {
		t.Fatalf("expected FULFILLED, got %s", action.Category)
	}
	if !strings.Contains(action.MessageText, "配送中") {
		t.Fatalf("message missing 配送中: %s", action.MessageText)
	}
	if action.Fields[FieldLogisticsStatus] != action.MessageText {
		t.Fatal("fulfilled message must fill the logistics status field")
	}
	if action.DueDate != nil {
		t.Fatal("fulfilled statuses have no due date")
	}
}

func TestClassifyAbnormalArrival(t *testing.T) {
	action := Classify("EIN35", statusDate)
	if action.Category != CategoryCannotFulfill {
		t.Fatalf("expected CANNOT_FULFILL, got %s", action.Category)
	}
	if action.SubReason != "不正常到貨" {
		t.Fatalf("wrong sub-reason: %s", action.SubReason)
	}
	want := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
	if action.DueDate == nil || !action.DueDate.Equal(want) {
		t.Fatalf("expected due date %s, got %v", want, action.DueDate)
	}
	if action.Fields[FieldTmallPackageStatus] != "將退回清關行" {
		t.Fatalf("wrong package status field: %q", action.Fields[FieldTmallPackageStatus])
	}
	if action.Fields[FieldReturnDate] != "2024-05-08 00:00:00" {
		t.Fatalf("wrong return date field: %q", action.Fields[FieldReturnDate])
	}
}

func TestClassifyDueDateOffsets(t *testing.T) {
	cases := map[string]int{
		"EIN36":  7,
		"PPS015": 7,
		"EIN99":  7,
		"PPS201": 5,
		"EIN31":  5,
		"EIN32":  5,
		"EIN3A":  5,
		"EIN37":  5,
	}
	for code, days := range cases {
		action := Classify(code, statusDate)
		want := statusDate.AddDate(0, 0, days)
		if action.DueDate == nil || !action.DueDate.Equal(want) {
			t.Errorf("%s: expected due %s, got %v", code, want, action.DueDate)
		}
	}
}

func TestClassifyHandedToNextCarrier(t *testing.T) {
	action := Classify("EVR99", statusDate)
	if action.Category != CategoryHandedToNext {
		t.Fatalf("expected HANDED_TO_NEXT_CARRIER, got %s", action.Category)
	}
	if !strings.Contains(action.MessageText, "2024-05-01") {
		t.Fatalf("message missing status date: %s", action.MessageText)
	}
	if action.DueDate != nil {
		t.Fatal("handover statuses have no due date")
	}
}

func TestClassifyConfirmedLostFillsMemo(t *testing.T) {
	for _, code := range []string{"EIN61", "PPS303", "EIN63"} {
		action := Classify(code, statusDate)
		if action.Category != CategoryConfirmedLost {
			t.Fatalf("%s: expected CONFIRMED_LOST, got %s", code, action.Category)
		}
		if !strings.Contains(action.Fields[FieldMemo], "賠償") {
			t.Fatalf("%s: memo missing compensation note: %q", code, action.Fields[FieldMemo])
		}
	}
}

func TestActionSummary(t *testing.T) {
	summary := Classify("EIN35", statusDate).Summary()
	for _, want := range []string{
		"類別:CANNOT_FULFILL",
		"原因:不正常到貨",
		"廠退日:2024-05-08",
		"留言:",
		"returnDate=2024-05-08 00:00:00",
		"specificReason=不正常到貨",
		"tmallPackageStatus=將退回清關行",
	} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q: %s", want, summary)
		}
	}
	if strings.Contains(summary, "\n") {
		t.Fatal("summary must stay on one line for the exception log")
	}

	// No due date, no sub-reason-specific fields for a plain fulfilled code.
	fulfilled := Classify("PP01", statusDate).Summary()
	if strings.Contains(fulfilled, "廠退日") {
		t.Fatalf("fulfilled summary should have no due date: %s", fulfilled)
	}
}

func TestClassifyForceMajeure(t *testing.T) {
	action := Classify("PPS013", statusDate)
	if action.Category != CategoryForceMajeure {
		t.Fatalf("expected FORCE_MAJEURE, got %s", action.Category)
	}
	if action.SubReason != "原因（海关查验、其他等）" {
		t.Fatalf("wrong sub-reason: %s", action.SubReason)
	}
	if action.Fields[FieldReturnDate] != "2024-05-08 00:00:00" {
		t.Fatalf("wrong return date field: %q", action.Fields[FieldReturnDate])
	}
}
