// # internal/core/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"rosewatch/internal/core/config"
	"rosewatch/internal/core/ports"
	"rosewatch/internal/core/watcher"
	"rosewatch/internal/engine/ast"
	"rosewatch/internal/engine/graph"
	"rosewatch/internal/engine/index"
	"rosewatch/internal/engine/parser"
	"rosewatch/internal/engine/validate"
	"rosewatch/internal/shared/observability"
	"rosewatch/internal/shared/util"
)

// Update is the state pushed to subscribers after each watch-mode pass.
type Update struct {
	FileCount   int
	TypeCount   int
	EnumCount   int
	Cycles      [][]string
	Diagnostics []validate.Diagnostic
}

// App wires the index, graph builder, and validator behind the watch loop.
type App struct {
	Config    *config.Config
	Index     *index.Index
	Builder   *graph.Builder
	Validator *validate.Engine

	dslParser ports.DSLParser

	updateMu sync.RWMutex
	onUpdate func(Update)

	// Cached output of the last full validation pass.
	diagMu      sync.RWMutex
	diagnostics []validate.Diagnostic
	cycles      [][]string

	activeWatcher *watcher.Watcher
	rescanLimiter *util.Limiter
}

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	ix := index.New()
	builder := graph.NewBuilder(ix)
	builder.SetMaxDepth(cfg.Graph.MaxDepth)

	var limiter *util.Limiter
	if cfg.Watch.RescanRate > 0 {
		burst := cfg.Watch.RescanBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = util.NewLimiter(cfg.Watch.RescanRate, burst)
	}

	return &App{
		Config:        cfg,
		Index:         ix,
		Builder:       builder,
		Validator:     validate.NewEngine(cfg.Validation),
		dslParser:     parser.NewModelParser(),
		rescanLimiter: limiter,
	}, nil
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.activeWatcher != nil {
		return a.activeWatcher.Close()
	}
	return nil
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

// InitialScan indexes every configured watch path and runs a full validation
// pass. It returns the number of files indexed.
func (a *App) InitialScan(ctx context.Context) (int, error) {
	roots := uniqueScanRoots(a.Config.WatchPaths)
	count, err := a.Index.RebuildWorkspace(ctx, roots, a.Config.Exclude.Dirs, a.Config.Exclude.Files)
	if err != nil {
		return 0, err
	}
	a.revalidate(ctx)
	return count, nil
}

// HandleChanges is the watcher callback: re-index the changed files, then run
// a full validation pass. The pass is rate-limited under event storms; index
// updates are not.
func (a *App) HandleChanges(paths []string) {
	slog.Info("detected changes", "count", len(paths))
	start := time.Now()

	for _, path := range paths {
		if !a.dslParser.IsModelPath(path) {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			a.Index.RemoveFile(path)
			continue
		}
		if err := a.Index.UpdateFile(path); err != nil {
			slog.Warn("failed to re-index file", "path", path, "error", err)
		}
	}

	if a.rescanLimiter != nil && !a.rescanLimiter.Allow(1) {
		slog.Debug("revalidation rate-limited, deferring to next change batch")
		return
	}

	diags, cycles := a.revalidate(context.Background())
	duration := time.Since(start)

	a.PrintSummary(len(paths), duration, diags, cycles)
	a.emitUpdate(a.buildUpdate(diags, cycles))

	counts := validate.CountBySeverity(diags)
	if a.Config.Alerts.Beep && (counts[ast.SeverityError] > 0 || len(cycles) > 0) {
		fmt.Print("\a")
	}
}

// CurrentUpdate returns the state of the last validation pass, running one
// first when none has happened yet.
func (a *App) CurrentUpdate(ctx context.Context) Update {
	a.diagMu.RLock()
	diags, cycles := a.diagnostics, a.cycles
	a.diagMu.RUnlock()
	if diags == nil && cycles == nil {
		diags, cycles = a.revalidate(ctx)
	}
	return a.buildUpdate(diags, cycles)
}

// revalidate runs the rule engine over the whole index and refreshes cycle
// detection, caching both results and publishing diagnostic gauges.
func (a *App) revalidate(ctx context.Context) ([]validate.Diagnostic, [][]string) {
	_, span := observability.Tracer.Start(ctx, "app.Revalidate")
	defer span.End()

	start := time.Now()
	diags := a.Validator.CheckAll(a.Index)
	cycles := a.Builder.DetectCycles()
	observability.AnalysisDuration.WithLabelValues("validate").Observe(time.Since(start).Seconds())

	counts := validate.CountBySeverity(diags)
	for _, severity := range []ast.Severity{ast.SeverityError, ast.SeverityWarning, ast.SeverityInformation, ast.SeverityHint} {
		observability.DiagnosticsReported.WithLabelValues(severity.String()).Set(float64(counts[severity]))
	}

	a.diagMu.Lock()
	a.diagnostics = diags
	a.cycles = cycles
	a.diagMu.Unlock()

	return diags, cycles
}

func (a *App) buildUpdate(diags []validate.Diagnostic, cycles [][]string) Update {
	types, enums, _ := a.countSymbols()
	return Update{
		FileCount:   a.Index.FileCount(),
		TypeCount:   types,
		EnumCount:   enums,
		Cycles:      cycles,
		Diagnostics: diags,
	}
}

func (a *App) emitUpdate(update Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

func (a *App) countSymbols() (types, enums, functions int) {
	for _, file := range a.Index.AllFiles() {
		types += len(file.Types)
		enums += len(file.Enums)
		functions += len(file.Functions)
	}
	return types, enums, functions
}

const summaryDiagnosticLimit = 10

// PrintSummary writes the terminal report after a scan or watch update.
func (a *App) PrintSummary(changedCount int, duration time.Duration, diags []validate.Diagnostic, cycles [][]string) {
	if !a.Config.Alerts.TerminalEnabled() {
		return
	}

	types, enums, _ := a.countSymbols()

	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Update: %d changed, %d files, %d types, %d enums in %v\n",
		changedCount, a.Index.FileCount(), types, enums, duration)

	if len(cycles) > 0 {
		fmt.Printf("⚠️  FOUND %d CIRCULAR INHERITANCE CHAINS:\n", len(cycles))
		for _, c := range cycles {
			fmt.Printf("   %s\n", strings.Join(c, " -> "))
		}
	} else {
		fmt.Println("✅ No circular inheritance found.")
	}

	counts := validate.CountBySeverity(diags)
	if counts[ast.SeverityError] > 0 {
		fmt.Printf("❌ FOUND %d ERRORS:\n", counts[ast.SeverityError])
		printed := 0
		for _, d := range diags {
			if d.Severity != ast.SeverityError {
				continue
			}
			fmt.Printf("   [%s] %s:%d %s\n", d.RuleID, d.Path, d.Range.Line, d.Message)
			printed++
			if printed >= summaryDiagnosticLimit {
				fmt.Printf("   ... and %d more\n", counts[ast.SeverityError]-printed)
				break
			}
		}
	} else {
		fmt.Println("✅ No validation errors found.")
	}

	if counts[ast.SeverityWarning] > 0 {
		fmt.Printf("🧹 %d warnings\n", counts[ast.SeverityWarning])
	}

	if collisions := a.Index.Collisions(); len(collisions) > 0 {
		fmt.Printf("❓ %d names are defined in more than one file\n", len(collisions))
	}
	fmt.Println(strings.Repeat("-", 40))
}

// TraceTypePath renders the shortest relationship path between two symbols.
func (a *App) TraceTypePath(from, to string) (string, error) {
	if !a.Index.HasSymbol(from) {
		return "", fmt.Errorf("source symbol not found: %s", from)
	}
	if !a.Index.HasSymbol(to) {
		return "", fmt.Errorf("target symbol not found: %s", to)
	}

	chain, ok := a.Builder.TracePath(from, to)
	if !ok {
		return "", fmt.Errorf("no relationship path found from %s to %s", from, to)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Type path: %s -> %s\n\n", from, to))
	for i, node := range chain {
		b.WriteString(node)
		b.WriteString("\n")
		if i < len(chain)-1 {
			b.WriteString("  -> ")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (a *App) AnalyzeImpact(name string) (graph.ImpactReport, error) {
	return a.Builder.Impact(name)
}

func uniqueScanRoots(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		normalized := filepath.Clean(p)
		if abs, err := filepath.Abs(normalized); err == nil {
			normalized = filepath.Clean(abs)
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		roots = append(roots, normalized)
	}
	sort.Strings(roots)
	return roots
}
