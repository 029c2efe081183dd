// # internal/data/history/models.go
package history

import "time"

const SchemaVersion = 2

// Snapshot is the persisted result of one full workspace scan. ScanID is a
// UUID assigned on save when the caller leaves it empty.
type Snapshot struct {
	ScanID        string    `json:"scan_id"`
	SchemaVersion int       `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	FileCount     int       `json:"file_count"`
	TypeCount     int       `json:"type_count"`
	EnumCount     int       `json:"enum_count"`
	FunctionCount int       `json:"function_count"`
	ErrorCount    int       `json:"error_count"`
	WarningCount  int       `json:"warning_count"`
	CycleCount    int       `json:"cycle_count"`
	DurationMS    int64     `json:"duration_ms"`
}

type TrendPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	ScanID        string    `json:"scan_id"`
	FileCount     int       `json:"file_count"`
	TypeCount     int       `json:"type_count"`
	EnumCount     int       `json:"enum_count"`
	FunctionCount int       `json:"function_count"`
	ErrorCount    int       `json:"error_count"`
	WarningCount  int       `json:"warning_count"`
	CycleCount    int       `json:"cycle_count"`
	DeltaFiles    int       `json:"delta_files"`
	DeltaTypes    int       `json:"delta_types"`
	DeltaEnums    int       `json:"delta_enums"`
	DeltaErrors   int       `json:"delta_errors"`
	DeltaWarnings int       `json:"delta_warnings"`
	DeltaCycles   int       `json:"delta_cycles"`
	TypeGrowthPct float64   `json:"type_growth_pct"`
	AvgErrors     float64   `json:"avg_errors"`
	AvgCycles     float64   `json:"avg_cycles"`
	WindowHours   float64   `json:"window_hours"`
}

type TrendReport struct {
	SchemaVersion int          `json:"schema_version"`
	Since         time.Time    `json:"since"`
	Until         time.Time    `json:"until"`
	Window        string       `json:"window"`
	ScanCount     int          `json:"scan_count"`
	Points        []TrendPoint `json:"points"`
}
