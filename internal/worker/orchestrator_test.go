package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"shipment-ticket-resolver/internal/automation"
	"shipment-ticket-resolver/internal/classify"
	"shipment-ticket-resolver/internal/escalation"
	"shipment-ticket-resolver/internal/ledger"
	"shipment-ticket-resolver/internal/models"
	"shipment-ticket-resolver/internal/source"
)

type fakeCarrier struct {
	status models.CarrierStatus
	err    error
	calls  int
}

func (f *fakeCarrier) GetStatus(_ context.Context, _ string) (models.CarrierStatus, error) {
	f.calls++
	return f.status, f.err
}

type fakeExecutor struct {
	err   error
	calls []classify.Action
}

func (f *fakeExecutor) Execute(_ context.Context, _ models.WorkItem, action classify.Action) error {
	f.calls = append(f.calls, action)
	return f.err
}

type harness struct {
	orch     *Orchestrator
	carrier  *fakeCarrier
	executor *fakeExecutor
	ledger   *ledger.FileLedger
	excDir   string
}

func newHarness(t *testing.T, carrier *fakeCarrier, executor *fakeExecutor, items []models.WorkItem) *harness {
	t.Helper()
	dir := t.TempDir()
	led := ledger.NewFileLedger(filepath.Join(dir, "ledger.json"), filepath.Join(dir, "failures.log"))
	excDir := filepath.Join(dir, "exceptions")
	orch := New(Options{}, source.NewStatic(items), carrier, executor, led, escalation.NewWriter(excDir))
	return &harness{orch: orch, carrier: carrier, executor: executor, ledger: led, excDir: excDir}
}

func exceptionLog(t *testing.T, h *harness, reason string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.excDir, reason+".txt"))
	if err != nil {
		t.Fatalf("read exception log %s: %v", reason, err)
	}
	return string(data)
}

func item(id string) models.WorkItem {
	return models.WorkItem{ID: id, URL: "https://desk/t/" + id, Waybill: "20004567", DiscoveredAt: time.Now()}
}

func resolvedStatus(code string) models.CarrierStatus {
	return models.CarrierStatus{
		RawCode:     code,
		Description: "配送中",
		ResultCode:  0,
		Date:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local),
	}
}

func TestProcessItemResolves(t *testing.T) {
	h := newHarness(t, &fakeCarrier{status: resolvedStatus("PP01")}, &fakeExecutor{}, nil)
	it := item("20240501000001")

	h.orch.ProcessItem(context.Background(), it)

	if len(h.executor.calls) != 1 {
		t.Fatalf("expected 1 executor call, got %d", len(h.executor.calls))
	}
	if h.executor.calls[0].Category != classify.CategoryFulfilled {
		t.Fatalf("expected FULFILLED action, got %+v", h.executor.calls[0])
	}
	if !h.ledger.IsProcessed(context.Background(), it.ID) {
		t.Fatal("resolved ticket must land in the ledger")
	}
	// Per-ticket record file is written on every successful status query.
	if _, err := os.Stat(filepath.Join(h.excDir, "records", it.ID+".txt")); err != nil {
		t.Fatalf("record file missing: %v", err)
	}
}

func TestProcessItemSkipsLedgerHits(t *testing.T) {
	h := newHarness(t, &fakeCarrier{status: resolvedStatus("PP01")}, &fakeExecutor{}, nil)
	it := item("20240501000002")
	h.ledger.MarkProcessed(context.Background(), it.ID, it.URL, time.Now())

	h.orch.ProcessItem(context.Background(), it)

	if h.carrier.calls != 0 || len(h.executor.calls) != 0 {
		t.Fatalf("ledger hit must short-circuit: carrier=%d executor=%d", h.carrier.calls, len(h.executor.calls))
	}
}

func TestRunPassHandlesEachTicketOnce(t *testing.T) {
	items := []models.WorkItem{item("20240501000010"), item("20240501000011"), item("20240501000012"), item("20240501000013")}
	carrier := &fakeCarrier{status: resolvedStatus("AOL")}
	executor := &fakeExecutor{}
	h := newHarness(t, carrier, executor, items)

	// Half the batch was already handled by a previous run.
	h.ledger.MarkProcessed(context.Background(), items[0].ID, items[0].URL, time.Now())
	h.ledger.MarkProcessed(context.Background(), items[1].ID, items[1].URL, time.Now())

	handled, err := h.orch.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if handled != 4 {
		t.Fatalf("expected to look at 4 tickets, got %d", handled)
	}
	if len(executor.calls) != 2 {
		t.Fatalf("expected 2 executor calls, got %d", len(executor.calls))
	}
	for _, it := range items {
		if !h.ledger.IsProcessed(context.Background(), it.ID) {
			t.Fatalf("ticket %s missing from ledger", it.ID)
		}
	}
}

func TestUnresolvedStatusEscalates(t *testing.T) {
	carrier := &fakeCarrier{status: models.CarrierStatus{ResultCode: 9, ResultDesc: "查無資料"}}
	h := newHarness(t, carrier, &fakeExecutor{}, nil)
	it := item("20240501000020")

	h.orch.ProcessItem(context.Background(), it)

	if len(h.executor.calls) != 0 {
		t.Fatal("unresolved status must not reach the executor")
	}
	if !h.ledger.IsProcessed(context.Background(), it.ID) {
		t.Fatal("escalated ticket must still land in the ledger")
	}
	log := exceptionLog(t, h, models.ReasonStatusQuery)
	if !strings.Contains(log, it.ID) || !strings.Contains(log, "查無資料") {
		t.Fatalf("exception line incomplete: %q", log)
	}
}

func TestStatusQueryErrorEscalates(t *testing.T) {
	carrier := &fakeCarrier{err: errors.New("token rejected")}
	h := newHarness(t, carrier, &fakeExecutor{}, nil)
	it := item("20240501000021")

	h.orch.ProcessItem(context.Background(), it)

	if !h.ledger.IsProcessed(context.Background(), it.ID) {
		t.Fatal("failed query must still mark the ticket")
	}
	if !strings.Contains(exceptionLog(t, h, models.ReasonStatusQuery), "token rejected") {
		t.Fatal("query error should be in the exception note")
	}
}

func TestUnknownCodeEscalates(t *testing.T) {
	h := newHarness(t, &fakeCarrier{status: resolvedStatus("ZZ99")}, &fakeExecutor{}, nil)
	it := item("20240501000022")

	h.orch.ProcessItem(context.Background(), it)

	if len(h.executor.calls) != 0 {
		t.Fatal("unknown code must not reach the executor")
	}
	if !strings.Contains(exceptionLog(t, h, models.ReasonUnknownStatus), "ZZ99") {
		t.Fatal("unknown code should be in the exception note")
	}
	if !h.ledger.IsProcessed(context.Background(), it.ID) {
		t.Fatal("unknown-code ticket must still land in the ledger")
	}
}

func TestExecutorFailureStillMarks(t *testing.T) {
	executor := &fakeExecutor{err: errors.New("dialog not found")}
	h := newHarness(t, &fakeCarrier{status: resolvedStatus("EIN35")}, executor, nil)
	it := item("20240501000023")

	h.orch.ProcessItem(context.Background(), it)

	if !h.ledger.IsProcessed(context.Background(), it.ID) {
		t.Fatal("failed submission must still mark the ticket")
	}
	log := exceptionLog(t, h, models.ReasonExecutionFailed)
	if !strings.Contains(log, "EIN35") || !strings.Contains(log, "dialog not found") {
		t.Fatalf("exception note should carry the code and cause: %q", log)
	}
	// The whole decided action must be in the note so a manual finisher can
	// submit it without re-deriving anything: category, sub-reason, the
	// computed due date (2024-05-01 + 7d) and the filled form fields.
	for _, want := range []string{
		string(classify.CategoryCannotFulfill),
		"不正常到貨",
		"2024-05-08",
		"tmallPackageStatus=將退回清關行",
	} {
		if !strings.Contains(log, want) {
			t.Fatalf("exception note missing %q: %q", want, log)
		}
	}
}

func TestInvalidWaybillEscalatesWithoutQuery(t *testing.T) {
	carrier := &fakeCarrier{status: resolvedStatus("PP01")}
	h := newHarness(t, carrier, &fakeExecutor{}, nil)
	it := models.WorkItem{ID: "20240501000024", URL: "https://desk/t/x", Waybill: "74A2000"}

	h.orch.ProcessItem(context.Background(), it)

	if carrier.calls != 0 {
		t.Fatal("out-of-scope waybill must not hit the carrier API")
	}
	if !strings.Contains(exceptionLog(t, h, models.ReasonManualReview), it.ID) {
		t.Fatal("manual-review log should name the ticket")
	}
	if !h.ledger.IsProcessed(context.Background(), it.ID) {
		t.Fatal("out-of-scope ticket must still land in the ledger")
	}
}

func TestValidWaybill(t *testing.T) {
	cases := map[string]bool{
		"20004567":  true,
		"29999999":  true,
		"10004567":  false,
		"2000456":   false,
		"200045678": false,
		"2000456a":  false,
		"":          false,
	}
	for waybill, want := range cases {
		if got := validWaybill(waybill); got != want {
			t.Errorf("validWaybill(%q) = %v, want %v", waybill, got, want)
		}
	}
}

func TestProcessItemLogsLifecycleStates(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	oldLevel := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(oldLevel)

	h := newHarness(t, &fakeCarrier{status: resolvedStatus("PP01")}, &fakeExecutor{}, nil)
	h.orch.ProcessItem(context.Background(), item("20240501000031"))

	seen := map[string]bool{}
	for _, e := range hook.AllEntries() {
		if s, ok := e.Data["state"].(string); ok {
			seen[s] = true
		}
	}
	for _, want := range []string{
		models.StateDiscovered,
		models.StateStatusQueried,
		models.StateClassified,
		models.StateResolutionSubmitted,
		models.StateClosed,
	} {
		if !seen[want] {
			t.Errorf("lifecycle state %q never logged, got %v", want, seen)
		}
	}
}

func TestDryRunExecutor(t *testing.T) {
	action := classify.Classify("PP01", time.Now())
	if err := (automation.DryRun{}).Execute(context.Background(), item("20240501000030"), action); err != nil {
		t.Fatalf("dry run should never fail: %v", err)
	}
}
