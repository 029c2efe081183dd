package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rosewatch_parsing_seconds",
		Help:    "Time spent parsing a model source file.",
		Buckets: prometheus.DefBuckets,
	})

	FilesIndexed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rosewatch_files_indexed_total",
		Help: "Number of model files currently held by the symbol index.",
	})

	SymbolsIndexed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rosewatch_symbols_indexed_total",
		Help: "Number of symbols currently registered in the index, by kind.",
	}, []string{"kind"})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rosewatch_graph_nodes_total",
		Help: "Total number of nodes in the last built type graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rosewatch_graph_edges_total",
		Help: "Total number of edges in the last built type graph.",
	})

	DiagnosticsReported = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rosewatch_diagnostics_total",
		Help: "Diagnostics reported by the last validation run, by severity.",
	}, []string{"severity"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rosewatch_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rosewatch_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RebuildConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rosewatch_rebuild_conflicts_total",
		Help: "Total number of workspace rebuilds rejected because another rebuild was in flight.",
	})
)
