// # internal/core/app/service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rosewatch/internal/core/errors"
	"rosewatch/internal/core/ports"
	"rosewatch/internal/data/history"
	"rosewatch/internal/data/query"
	"rosewatch/internal/engine/ast"
	"rosewatch/internal/engine/graph"
	"rosewatch/internal/engine/validate"
	"rosewatch/internal/shared/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type analysisService struct {
	app *App
}

var _ ports.AnalysisService = (*analysisService)(nil)

func NewAnalysisService(app *App) ports.AnalysisService {
	return &analysisService{app: app}
}

func (s *analysisService) Unwrap() *App {
	return s.app
}

func (s *analysisService) Close(ctx context.Context) error {
	if s == nil || s.app == nil {
		return nil
	}
	return s.app.Close(ctx)
}

func (a *App) AnalysisService() ports.AnalysisService {
	return NewAnalysisService(a)
}

func (s *analysisService) RunScan(ctx context.Context, req ports.ScanRequest) (ports.ScanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.RunScan", trace.WithAttributes())
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.ScanResult{}, err
	}
	if s.app == nil {
		return ports.ScanResult{}, fmt.Errorf("app is required")
	}
	if s.app.Config == nil {
		return ports.ScanResult{}, fmt.Errorf("config is required")
	}

	start := time.Now()
	var (
		filesScanned int
		err          error
	)
	if len(req.Paths) > 0 {
		roots := uniqueScanRoots(req.Paths)
		filesScanned, err = s.app.Index.RebuildWorkspace(ctx, roots, s.app.Config.Exclude.Dirs, s.app.Config.Exclude.Files)
		if err == nil {
			s.app.revalidate(ctx)
		}
	} else {
		filesScanned, err = s.app.InitialScan(ctx)
	}
	if err != nil {
		return ports.ScanResult{}, errors.AddContext(err, errors.CtxOperation, "run_scan")
	}
	observability.AnalysisDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())

	warnings := make([]string, 0)
	for _, path := range s.app.Index.Files() {
		for _, pe := range s.app.Index.ParseErrors(path) {
			warnings = append(warnings, fmt.Sprintf("%s: %s", path, pe.Error()))
		}
	}

	return ports.ScanResult{
		ScanID:       uuid.NewString(),
		FilesScanned: filesScanned,
		SymbolCount:  len(s.app.Index.Symbols()),
		Warnings:     warnings,
	}, nil
}

func (s *analysisService) TraceTypePath(ctx context.Context, from, to string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.app == nil {
		return "", fmt.Errorf("app is required")
	}
	chain, err := s.app.TraceTypePath(from, to)
	if err != nil {
		err = errors.AddContext(err, "from", from)
		err = errors.AddContext(err, "to", to)
		return "", err
	}
	return chain, nil
}

func (s *analysisService) AnalyzeImpact(ctx context.Context, name string) (graph.ImpactReport, error) {
	if err := ctx.Err(); err != nil {
		return graph.ImpactReport{}, err
	}
	if s.app == nil {
		return graph.ImpactReport{}, fmt.Errorf("app is required")
	}
	report, err := s.app.AnalyzeImpact(name)
	if err != nil {
		return graph.ImpactReport{}, errors.AddContext(err, errors.CtxSymbol, name)
	}
	return report, nil
}

func (s *analysisService) DetectCycles(ctx context.Context, limit int) ([][]string, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if s.app == nil {
		return nil, 0, fmt.Errorf("app is required")
	}
	cycles := s.app.Builder.DetectCycles()
	count := len(cycles)
	if limit > 0 && len(cycles) > limit {
		cycles = cycles[:limit]
	}
	out := make([][]string, 0, len(cycles))
	for _, cycle := range cycles {
		out = append(out, append([]string(nil), cycle...))
	}
	return out, count, nil
}

func (s *analysisService) ListFiles(ctx context.Context) ([]*ast.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.app == nil {
		return nil, fmt.Errorf("app is required")
	}
	return s.app.Index.AllFiles(), nil
}

func (s *analysisService) QueryService(historyStore ports.HistoryStore, projectKey string) ports.QueryService {
	return query.NewService(s.app.Index, s.app.Builder, historyStore, strings.TrimSpace(projectKey))
}

func (s *analysisService) CaptureHistoryTrend(ctx context.Context, historyStore ports.HistoryStore, req ports.HistoryTrendRequest) (ports.HistoryTrendResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.HistoryTrendResult{}, err
	}
	if s.app == nil {
		return ports.HistoryTrendResult{}, fmt.Errorf("app is required")
	}
	if historyStore == nil {
		return ports.HistoryTrendResult{}, fmt.Errorf("history store is required")
	}

	projectKey := strings.TrimSpace(req.ProjectKey)
	if projectKey == "" {
		projectKey = "default"
	}

	window := req.Window
	if window <= 0 {
		window = 24 * time.Hour
	}

	start := time.Now()
	diags, cycles := s.app.revalidate(ctx)
	counts := validate.CountBySeverity(diags)
	types, enums, functions := s.app.countSymbols()

	snapshot := history.Snapshot{
		Timestamp:     time.Now().UTC(),
		FileCount:     s.app.Index.FileCount(),
		TypeCount:     types,
		EnumCount:     enums,
		FunctionCount: functions,
		ErrorCount:    counts[ast.SeverityError],
		WarningCount:  counts[ast.SeverityWarning],
		CycleCount:    len(cycles),
		DurationMS:    time.Since(start).Milliseconds(),
	}

	scanID, err := historyStore.SaveSnapshot(projectKey, snapshot)
	if err != nil {
		return ports.HistoryTrendResult{}, fmt.Errorf("save history snapshot: %w", err)
	}

	snapshots, err := historyStore.LoadSnapshots(projectKey, req.Since)
	if err != nil {
		return ports.HistoryTrendResult{}, fmt.Errorf("load history snapshots: %w", err)
	}

	result := ports.HistoryTrendResult{
		ScanID:             scanID,
		SnapshotSaved:      true,
		SnapshotsEvaluated: len(snapshots),
		LatestTypeCount:    snapshot.TypeCount,
		LatestCycleCount:   snapshot.CycleCount,
		LatestErrorCount:   snapshot.ErrorCount,
	}
	if len(snapshots) == 0 {
		return result, nil
	}

	report, err := history.BuildTrendReport(snapshots, window)
	if err != nil {
		return ports.HistoryTrendResult{}, fmt.Errorf("build trend report: %w", err)
	}
	result.Report = &report
	return result, nil
}

func (s *analysisService) WatchService() ports.WatchService {
	return &watchService{app: s.app}
}

func (s *analysisService) SummarySnapshot(ctx context.Context) (ports.SummarySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return ports.SummarySnapshot{}, err
	}
	if s.app == nil {
		return ports.SummarySnapshot{}, fmt.Errorf("app is required")
	}

	diags, cycles := s.app.revalidate(ctx)
	outCycles := make([][]string, 0, len(cycles))
	for _, cycle := range cycles {
		outCycles = append(outCycles, append([]string(nil), cycle...))
	}
	types, enums, functions := s.app.countSymbols()

	return ports.SummarySnapshot{
		FileCount:     s.app.Index.FileCount(),
		TypeCount:     types,
		EnumCount:     enums,
		FunctionCount: functions,
		Cycles:        outCycles,
		Diagnostics:   append([]validate.Diagnostic(nil), diags...),
	}, nil
}

func (s *analysisService) PrintSummary(ctx context.Context, req ports.SummaryPrintRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.app == nil {
		return fmt.Errorf("app is required")
	}
	s.app.PrintSummary(req.Snapshot.FileCount, req.Duration, req.Snapshot.Diagnostics, req.Snapshot.Cycles)
	return nil
}

type watchService struct {
	app *App
}

var _ ports.WatchService = (*watchService)(nil)

func (s *watchService) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.app == nil {
		return fmt.Errorf("app is required")
	}
	return s.app.StartWatcher()
}

func (s *watchService) CurrentUpdate(ctx context.Context) (ports.WatchUpdate, error) {
	if err := ctx.Err(); err != nil {
		return ports.WatchUpdate{}, err
	}
	if s.app == nil {
		return ports.WatchUpdate{}, fmt.Errorf("app is required")
	}
	return toWatchUpdate(s.app.CurrentUpdate(ctx)), nil
}

func (s *watchService) Subscribe(ctx context.Context, handler func(ports.WatchUpdate)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.app == nil {
		return fmt.Errorf("app is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	s.app.SetUpdateHandler(func(update Update) {
		if ctx.Err() != nil {
			return
		}
		handler(toWatchUpdate(update))
	})
	return nil
}

func toWatchUpdate(update Update) ports.WatchUpdate {
	return ports.WatchUpdate{
		FileCount:   update.FileCount,
		TypeCount:   update.TypeCount,
		EnumCount:   update.EnumCount,
		Cycles:      append([][]string(nil), update.Cycles...),
		Diagnostics: append([]validate.Diagnostic(nil), update.Diagnostics...),
	}
}
