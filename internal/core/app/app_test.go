// # internal/core/app/app_test.go
package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rosewatch/internal/core/config"
	"rosewatch/internal/core/ports"
	"rosewatch/internal/data/history"
)

const orderModel = `namespace shop

type Order
{
    id string (1..1)
    status StatusEnum (1..1)
    lines OrderLine (1..*)
}

type OrderLine
{
    sku string (1..1)
    quantity int (1..1)
}

enum StatusEnum
{
    OPEN
    SHIPPED
}
`

func newTestApp(t *testing.T, files map[string]string) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.WatchPaths = []string{dir}
	terminal := false
	cfg.Alerts.Terminal = &terminal

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, dir
}

func TestInitialScanIndexesWorkspace(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{"order.rosetta": orderModel})

	count, err := a.InitialScan(context.Background())
	if err != nil {
		t.Fatalf("initial scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 file indexed, got %d", count)
	}

	types, enums, _ := a.countSymbols()
	if types != 2 || enums != 1 {
		t.Errorf("expected 2 types and 1 enum, got %d/%d", types, enums)
	}

	update := a.CurrentUpdate(context.Background())
	if update.FileCount != 1 || update.TypeCount != 2 {
		t.Errorf("unexpected update: %+v", update)
	}
}

func TestHandleChangesReindexesAndRemoves(t *testing.T) {
	a, dir := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	if _, err := a.InitialScan(context.Background()); err != nil {
		t.Fatalf("initial scan: %v", err)
	}

	var got Update
	a.SetUpdateHandler(func(u Update) { got = u })

	extra := filepath.Join(dir, "extra.rosetta")
	if err := os.WriteFile(extra, []byte("namespace shop\ntype Refund extends Missing {}"), 0o644); err != nil {
		t.Fatalf("write extra file: %v", err)
	}
	a.HandleChanges([]string{extra})

	if got.FileCount != 2 || got.TypeCount != 3 {
		t.Fatalf("expected update after change, got %+v", got)
	}
	var sawUndefined bool
	for _, d := range got.Diagnostics {
		if d.RuleID == "undefined-type" && d.Path == extra {
			sawUndefined = true
		}
	}
	if !sawUndefined {
		t.Errorf("expected undefined-type diagnostic for new file, got %v", got.Diagnostics)
	}

	if err := os.Remove(extra); err != nil {
		t.Fatalf("remove extra file: %v", err)
	}
	a.HandleChanges([]string{extra})
	if got.FileCount != 1 {
		t.Errorf("expected removed file dropped from index, got %+v", got)
	}
}

func TestHandleChangesIgnoresForeignFiles(t *testing.T) {
	a, dir := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	if _, err := a.InitialScan(context.Background()); err != nil {
		t.Fatalf("initial scan: %v", err)
	}

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("not a model"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	a.HandleChanges([]string{other})

	if a.Index.FileCount() != 1 {
		t.Errorf("expected non-model file ignored, got %d files", a.Index.FileCount())
	}
}

func TestTraceTypePath(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	if _, err := a.InitialScan(context.Background()); err != nil {
		t.Fatalf("initial scan: %v", err)
	}

	out, err := a.TraceTypePath("Order", "OrderLine")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if out == "" {
		t.Fatal("expected a rendered chain")
	}

	if _, err := a.TraceTypePath("Order", "Nope"); err == nil {
		t.Fatal("expected error for unknown target symbol")
	}
}

func TestAnalysisServiceRunScan(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	svc := a.AnalysisService()

	result, err := svc.RunScan(context.Background(), ports.ScanRequest{})
	if err != nil {
		t.Fatalf("run scan: %v", err)
	}
	if result.FilesScanned != 1 {
		t.Errorf("expected 1 file scanned, got %d", result.FilesScanned)
	}
	if result.SymbolCount != 3 {
		t.Errorf("expected 3 symbols, got %d", result.SymbolCount)
	}
	if result.ScanID == "" {
		t.Error("expected a scan id")
	}
}

func TestAnalysisServiceDetectCycles(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{
		"cycle.rosetta": "namespace m\ntype A extends B {}\ntype B extends A {}",
	})
	svc := a.AnalysisService()
	if _, err := svc.RunScan(context.Background(), ports.ScanRequest{}); err != nil {
		t.Fatalf("run scan: %v", err)
	}

	cycles, total, err := svc.DetectCycles(context.Background(), 0)
	if err != nil {
		t.Fatalf("detect cycles: %v", err)
	}
	if total != 1 || len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d (%v)", total, cycles)
	}
}

func TestAnalysisServiceSummarySnapshot(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	svc := a.AnalysisService()
	if _, err := svc.RunScan(context.Background(), ports.ScanRequest{}); err != nil {
		t.Fatalf("run scan: %v", err)
	}

	snapshot, err := svc.SummarySnapshot(context.Background())
	if err != nil {
		t.Fatalf("summary snapshot: %v", err)
	}
	if snapshot.FileCount != 1 || snapshot.TypeCount != 2 || snapshot.EnumCount != 1 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}

func TestCaptureHistoryTrend(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	svc := a.AnalysisService()
	if _, err := svc.RunScan(context.Background(), ports.ScanRequest{}); err != nil {
		t.Fatalf("run scan: %v", err)
	}

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	result, err := svc.CaptureHistoryTrend(context.Background(), history.NewAdapter(store), ports.HistoryTrendRequest{
		ProjectKey: "test",
		Window:     time.Hour,
	})
	if err != nil {
		t.Fatalf("capture trend: %v", err)
	}
	if !result.SnapshotSaved || result.ScanID == "" {
		t.Fatalf("expected saved snapshot with scan id, got %+v", result)
	}
	if result.LatestTypeCount != 2 {
		t.Errorf("expected latest type count 2, got %d", result.LatestTypeCount)
	}
	if result.Report == nil || result.Report.ScanCount != 1 {
		t.Errorf("expected trend report over 1 snapshot, got %+v", result.Report)
	}
}

func TestHealthService(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	if _, err := a.InitialScan(context.Background()); err != nil {
		t.Fatalf("initial scan: %v", err)
	}

	status := NewHealthService(a).Check(context.Background())
	if status.Status != "up" {
		t.Fatalf("expected up status, got %+v", status)
	}
	if status.Components["index"] == "" || status.Components["validator"] != "ok" {
		t.Errorf("unexpected components: %+v", status.Components)
	}
}

func TestWatchServiceSubscribe(t *testing.T) {
	a, dir := newTestApp(t, map[string]string{"order.rosetta": orderModel})
	svc := a.AnalysisService()
	if _, err := svc.RunScan(context.Background(), ports.ScanRequest{}); err != nil {
		t.Fatalf("run scan: %v", err)
	}

	var got ports.WatchUpdate
	if err := svc.WatchService().Subscribe(context.Background(), func(u ports.WatchUpdate) { got = u }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	path := filepath.Join(dir, "order.rosetta")
	if err := os.WriteFile(path, []byte("namespace shop\ntype Order { id string (1..1) }"), 0o644); err != nil {
		t.Fatalf("rewrite model: %v", err)
	}
	a.HandleChanges([]string{path})

	if got.TypeCount != 1 {
		t.Fatalf("expected subscriber to see 1 type after rewrite, got %+v", got)
	}
}

func TestCurrentUpdateRunsValidationOnDemand(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{
		"bad.rosetta": "namespace m\ntype Orphan extends Gone {}",
	})
	roots := a.Config.WatchPaths
	if _, err := a.Index.RebuildWorkspace(context.Background(), roots, nil, nil); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	update := a.CurrentUpdate(context.Background())
	var found bool
	for _, d := range update.Diagnostics {
		if d.RuleID == "undefined-type" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected on-demand validation to report undefined-type, got %+v", update.Diagnostics)
	}
}
