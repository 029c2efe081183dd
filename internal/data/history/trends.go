// # internal/data/history/trends.go
package history

import (
	"fmt"
	"math"
	"time"
)

// BuildTrendReport derives per-scan deltas and moving averages from an
// ordered snapshot slice. window bounds the moving-average lookback; zero
// disables averaging.
func BuildTrendReport(snapshots []Snapshot, window time.Duration) (TrendReport, error) {
	if len(snapshots) == 0 {
		return TrendReport{}, fmt.Errorf("no snapshots available")
	}

	points := make([]TrendPoint, 0, len(snapshots))
	for i, current := range snapshots {
		point := TrendPoint{
			Timestamp:     current.Timestamp,
			ScanID:        current.ScanID,
			FileCount:     current.FileCount,
			TypeCount:     current.TypeCount,
			EnumCount:     current.EnumCount,
			FunctionCount: current.FunctionCount,
			ErrorCount:    current.ErrorCount,
			WarningCount:  current.WarningCount,
			CycleCount:    current.CycleCount,
		}

		if i > 0 {
			prev := snapshots[i-1]
			point.DeltaFiles = current.FileCount - prev.FileCount
			point.DeltaTypes = current.TypeCount - prev.TypeCount
			point.DeltaEnums = current.EnumCount - prev.EnumCount
			point.DeltaErrors = current.ErrorCount - prev.ErrorCount
			point.DeltaWarnings = current.WarningCount - prev.WarningCount
			point.DeltaCycles = current.CycleCount - prev.CycleCount
			if prev.TypeCount > 0 {
				point.TypeGrowthPct = (float64(point.DeltaTypes) / float64(prev.TypeCount)) * 100
			}
		}

		avgErrors, avgCycles := movingAverages(snapshots, i, window)
		point.AvgErrors = round2(avgErrors)
		point.AvgCycles = round2(avgCycles)
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		SchemaVersion: SchemaVersion,
		Since:         snapshots[0].Timestamp,
		Until:         snapshots[len(snapshots)-1].Timestamp,
		Window:        window.String(),
		ScanCount:     len(points),
		Points:        points,
	}, nil
}

func movingAverages(snapshots []Snapshot, index int, window time.Duration) (float64, float64) {
	if window <= 0 {
		return float64(snapshots[index].ErrorCount), float64(snapshots[index].CycleCount)
	}

	cutoff := snapshots[index].Timestamp.Add(-window)
	var errorsTotal int
	var cyclesTotal int
	count := 0
	for i := index; i >= 0; i-- {
		if snapshots[i].Timestamp.Before(cutoff) {
			break
		}
		errorsTotal += snapshots[i].ErrorCount
		cyclesTotal += snapshots[i].CycleCount
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return float64(errorsTotal) / float64(count), float64(cyclesTotal) / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
