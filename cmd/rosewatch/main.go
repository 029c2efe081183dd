// # cmd/rosewatch/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rosewatch/internal/core/app"
	"rosewatch/internal/core/config"
	"rosewatch/internal/core/ports"
	"rosewatch/internal/data/history"
	"rosewatch/internal/data/query"
	"rosewatch/internal/engine/graph"
	"rosewatch/internal/shared/observability"
	"rosewatch/internal/ui/cli"
)

var (
	configPath = flag.String("config", "./rosewatch.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run single scan and exit")
	ui         = flag.Bool("ui", false, "Enable terminal UI mode")
	trace      = flag.Bool("trace", false, "Trace shortest relationship chain between two symbols")
	impact     = flag.String("impact", "", "Analyze change impact for a type or enum")
	cqlQuery   = flag.String("query", "", "Run a one-shot CQL query against the symbol index")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("rosewatch v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	if *ui {
		// In UI mode, avoid stdout logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
				if err == nil {
					output = f
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./rosewatch.toml" {
			cfg, err = config.Load("./rosewatch.example.toml")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if *trace && *impact != "" {
		fmt.Fprintln(os.Stderr, "--trace and --impact cannot be used together")
		os.Exit(1)
	}

	if *trace {
		if flag.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "trace mode requires two symbol arguments: rosewatch --trace <from> <to>")
			os.Exit(1)
		}
	} else if flag.NArg() > 0 {
		cfg.WatchPaths = []string{flag.Arg(0)}
	}

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint, VERSION)
		if err != nil {
			slog.Warn("failed to set up tracing, continuing without it", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer a.Close(ctx)

	var historyStore ports.HistoryStore
	if cfg.DB.Enabled {
		store, err := history.OpenWithBusyTimeout(cfg.DB.Path, cfg.DB.BusyTimeout)
		if err != nil {
			slog.Error("failed to open history store", "path", cfg.DB.Path, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		historyStore = history.NewAdapter(store)
	}

	svc := a.AnalysisService()

	start := time.Now()
	scan, err := svc.RunScan(ctx, ports.ScanRequest{})
	if err != nil {
		slog.Error("initial scan failed", "error", err)
		os.Exit(1)
	}
	for _, warning := range scan.Warnings {
		slog.Warn(warning)
	}

	if *trace {
		out, err := svc.TraceTypePath(ctx, flag.Arg(0), flag.Arg(1))
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Println(out)
		return
	}
	if *impact != "" {
		report, err := svc.AnalyzeImpact(ctx, *impact)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Print(formatImpactReport(report))
		return
	}
	if *cqlQuery != "" {
		rows, err := svc.QueryService(historyStore, cfg.DB.ProjectKey).RunCQL(ctx, *cqlQuery, 0)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Print(formatSymbolRows(rows))
		return
	}

	if historyStore != nil {
		trend, err := svc.CaptureHistoryTrend(ctx, historyStore, ports.HistoryTrendRequest{
			ProjectKey: cfg.DB.ProjectKey,
			Window:     24 * time.Hour,
		})
		if err != nil {
			slog.Warn("failed to record history snapshot", "error", err)
		} else {
			slog.Info("recorded history snapshot",
				"scan_id", trend.ScanID,
				"snapshots", trend.SnapshotsEvaluated,
				"types", trend.LatestTypeCount,
				"errors", trend.LatestErrorCount)
		}
	}

	if !*ui {
		snapshot, err := svc.SummarySnapshot(ctx)
		if err != nil {
			slog.Error("failed to summarize scan", "error", err)
			os.Exit(1)
		}
		if err := svc.PrintSummary(ctx, ports.SummaryPrintRequest{
			Duration: time.Since(start),
			Snapshot: snapshot,
		}); err != nil {
			slog.Error("failed to print summary", "error", err)
		}
	}

	if *once {
		return
	}

	if cfg.Metrics.Enabled {
		obs := cli.NewObservabilityServer(cfg.Metrics.Addr, app.NewHealthService(a))
		if err := obs.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			os.Exit(1)
		}
		defer obs.Stop(context.Background())
	}

	// Watch mode
	if err := svc.WatchService().Start(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if *ui {
		if err := runUI(ctx, a); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
	} else {
		// Block forever
		select {}
	}
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "rosewatch", "rosewatch.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "rosewatch", "rosewatch.log")
	}

	return "rosewatch.log"
}

func formatImpactReport(report graph.ImpactReport) string {
	var b strings.Builder

	b.WriteString("Impact Analysis\n")
	b.WriteString("==============\n")
	b.WriteString(fmt.Sprintf("Target symbol: %s\n", report.Target))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Direct referrers (%d)\n", len(report.DirectReferrers)))
	for _, sym := range report.DirectReferrers {
		b.WriteString(fmt.Sprintf("- %s\n", sym))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Transitive impact (%d)\n", len(report.TransitiveReferrers)))
	for _, sym := range report.TransitiveReferrers {
		b.WriteString(fmt.Sprintf("- %s\n", sym))
	}

	return b.String()
}

func formatSymbolRows(rows []query.SymbolRow) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d symbols\n", len(rows)))
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%-6s %-40s members=%-3d referrers=%-3d %s:%d\n",
			row.Kind, row.Name, row.MemberCount, row.ReferrerCount, row.File, row.Line))
	}
	return b.String()
}
