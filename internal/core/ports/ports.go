// # internal/core/ports/ports.go
package ports

import (
	"context"
	"time"

	"rosewatch/internal/data/history"
	"rosewatch/internal/data/query"
	"rosewatch/internal/engine/ast"
	"rosewatch/internal/engine/graph"
	"rosewatch/internal/engine/validate"
)

// DSLParser abstracts model-source parsing and file support checks.
type DSLParser interface {
	ParseFile(path string, content []byte) (*ast.File, []ast.ParseError)
	IsModelPath(path string) bool
	Extension() string
}

// HistoryStore abstracts snapshot persistence for trend workflows.
type HistoryStore interface {
	SaveSnapshot(projectKey string, snapshot history.Snapshot) (string, error)
	LoadSnapshots(projectKey string, since time.Time) ([]history.Snapshot, error)
}

// ScanRequest defines a scan operation request for driving adapters.
type ScanRequest struct {
	Paths []string
}

// ScanResult summarizes a completed scan operation.
type ScanResult struct {
	ScanID       string
	FilesScanned int
	SymbolCount  int
	Warnings     []string
}

// SummarySnapshot captures current index/diagnostic state for driving adapters.
type SummarySnapshot struct {
	FileCount     int
	TypeCount     int
	EnumCount     int
	FunctionCount int
	Cycles        [][]string
	Diagnostics   []validate.Diagnostic
}

// SummaryPrintRequest captures terminal-summary rendering inputs.
type SummaryPrintRequest struct {
	Duration time.Duration
	Snapshot SummarySnapshot
}

// QueryService exposes read-only symbol query operations for driving adapters.
type QueryService interface {
	ListSymbols(ctx context.Context, filter string, limit int) ([]query.SymbolRow, error)
	RunCQL(ctx context.Context, raw string, limit int) ([]query.SymbolRow, error)
	SymbolDetails(ctx context.Context, name string) (query.SymbolDetails, error)
	Trace(ctx context.Context, from, to string, maxDepth int) (query.TraceResult, error)
	TrendSlice(ctx context.Context, since time.Time, limit int) (query.TrendSlice, error)
}

// WatchUpdate contains state emitted to driving adapters during watch-mode updates.
type WatchUpdate struct {
	FileCount   int
	TypeCount   int
	EnumCount   int
	Cycles      [][]string
	Diagnostics []validate.Diagnostic
}

// WatchService exposes watch lifecycle and updates for driving adapters.
type WatchService interface {
	Start(ctx context.Context) error
	CurrentUpdate(ctx context.Context) (WatchUpdate, error)
	Subscribe(ctx context.Context, handler func(WatchUpdate)) error
}

// AnalysisService defines the driving-port surface over scan/query use cases.
type AnalysisService interface {
	RunScan(ctx context.Context, req ScanRequest) (ScanResult, error)
	TraceTypePath(ctx context.Context, from, to string) (string, error)
	AnalyzeImpact(ctx context.Context, name string) (graph.ImpactReport, error)
	DetectCycles(ctx context.Context, limit int) ([][]string, int, error)
	ListFiles(ctx context.Context) ([]*ast.File, error)
	QueryService(historyStore HistoryStore, projectKey string) QueryService
	CaptureHistoryTrend(ctx context.Context, historyStore HistoryStore, req HistoryTrendRequest) (HistoryTrendResult, error)
	WatchService() WatchService
	SummarySnapshot(ctx context.Context) (SummarySnapshot, error)
	PrintSummary(ctx context.Context, req SummaryPrintRequest) error
}

// HistoryTrendRequest captures inputs needed to save a snapshot and compute trends.
type HistoryTrendRequest struct {
	ProjectKey string
	Since      time.Time
	Window     time.Duration
}

// HistoryTrendResult contains the optional trend report and saved snapshot metadata.
type HistoryTrendResult struct {
	Report             *history.TrendReport
	ScanID             string
	SnapshotSaved      bool
	SnapshotsEvaluated int
	LatestTypeCount    int
	LatestCycleCount   int
	LatestErrorCount   int
}
