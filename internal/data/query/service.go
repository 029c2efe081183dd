// # internal/data/query/service.go
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"rosewatch/internal/data/history"
	"rosewatch/internal/engine/graph"
	"rosewatch/internal/engine/index"
)

type snapshotReader interface {
	LoadSnapshots(projectKey string, since time.Time) ([]history.Snapshot, error)
}

// Service answers read-only questions about the indexed workspace: symbol
// listings, per-symbol details, dependency traces, trend slices, and CQL.
type Service struct {
	idx        *index.Index
	builder    *graph.Builder
	history    snapshotReader
	projectKey string
}

func NewService(idx *index.Index, builder *graph.Builder, h snapshotReader, projectKey string) *Service {
	return &Service{
		idx:        idx,
		builder:    builder,
		history:    h,
		projectKey: projectKey,
	}
}

func (s *Service) ListSymbols(ctx context.Context, filter string, limit int) ([]SymbolRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := s.symbolRows()

	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter != "" {
		kept := rows[:0]
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Name), filter) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if limit > 0 && len(rows) > limit {
		return rows[:limit], nil
	}
	return rows, nil
}

// RunCQL parses and executes one CQL query against the symbol table.
func (s *Service) RunCQL(ctx context.Context, raw string, limit int) ([]SymbolRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := ParseCQL(raw)
	if err != nil {
		return nil, err
	}

	rows := make([]SymbolRow, 0)
	for _, row := range s.symbolRows() {
		match := true
		for _, cond := range q.Conditions {
			ok, err := matchCondition(row, cond)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			rows = append(rows, row)
		}
	}

	if limit > 0 && len(rows) > limit {
		return rows[:limit], nil
	}
	return rows, nil
}

func (s *Service) SymbolDetails(ctx context.Context, name string) (SymbolDetails, error) {
	if err := ctx.Err(); err != nil {
		return SymbolDetails{}, err
	}

	if typ, info, ok := s.idx.Type(name); ok {
		details := SymbolDetails{
			Name:        info.Name,
			Kind:        string(info.Kind),
			Namespace:   info.Namespace,
			File:        info.FilePath,
			Description: typ.Description,
			Extends:     typ.Extends,
		}
		for _, f := range typ.Fields {
			details.Fields = append(details.Fields, FieldSummary{
				Name:        f.Name,
				Type:        f.TypeName,
				Cardinality: f.Cardinality.String(),
			})
		}
		details.Referrers = s.referrers(info.QualifiedName())
		return details, nil
	}

	if enum, info, ok := s.idx.Enum(name); ok {
		details := SymbolDetails{
			Name:        info.Name,
			Kind:        string(info.Kind),
			Namespace:   info.Namespace,
			File:        info.FilePath,
			Description: enum.Description,
		}
		for _, v := range enum.Values {
			details.Values = append(details.Values, v.Name)
		}
		details.Referrers = s.referrers(info.QualifiedName())
		return details, nil
	}

	return SymbolDetails{}, fmt.Errorf("symbol not found: %s", name)
}

func (s *Service) Trace(ctx context.Context, from, to string, maxDepth int) (TraceResult, error) {
	if err := ctx.Err(); err != nil {
		return TraceResult{}, err
	}

	path, ok := s.builder.TracePath(from, to)
	if !ok {
		return TraceResult{}, fmt.Errorf("no path from %s to %s", from, to)
	}
	depth := len(path) - 1
	if maxDepth > 0 && depth > maxDepth {
		return TraceResult{}, fmt.Errorf("trace depth %d exceeds max_depth %d", depth, maxDepth)
	}

	return TraceResult{
		From:  from,
		To:    to,
		Path:  path,
		Depth: depth,
	}, nil
}

func (s *Service) TrendSlice(ctx context.Context, since time.Time, limit int) (TrendSlice, error) {
	if err := ctx.Err(); err != nil {
		return TrendSlice{}, err
	}
	if s.history == nil {
		return TrendSlice{}, fmt.Errorf("history store unavailable")
	}

	snapshots, err := s.history.LoadSnapshots(s.projectKey, since)
	if err != nil {
		return TrendSlice{}, err
	}

	if limit > 0 && len(snapshots) > limit {
		snapshots = snapshots[len(snapshots)-limit:]
	}

	out := TrendSlice{
		ScanCount: len(snapshots),
		Snapshots: snapshots,
	}
	if len(snapshots) > 0 {
		out.Since = snapshots[0].Timestamp.Format(time.RFC3339)
		out.Until = snapshots[len(snapshots)-1].Timestamp.Format(time.RFC3339)
	}
	return out, nil
}

// symbolRows flattens the index into sorted rows with referrer counts taken
// from the reverse of the workspace graph.
func (s *Service) symbolRows() []SymbolRow {
	g := s.builder.Build()

	reverseCounts := make(map[string]int)
	for _, edge := range g.Edges {
		reverseCounts[edge.To]++
	}

	symbols := s.idx.Symbols()
	rows := make([]SymbolRow, 0, len(symbols))
	for _, info := range symbols {
		row := SymbolRow{
			Name:      info.Name,
			Kind:      string(info.Kind),
			Namespace: info.Namespace,
			File:      info.FilePath,
			Line:      info.Location.Line,
		}
		switch info.Kind {
		case index.KindType:
			if typ, _, ok := s.idx.Type(info.QualifiedName()); ok {
				row.MemberCount = len(typ.Fields)
			}
		case index.KindEnum:
			if enum, _, ok := s.idx.Enum(info.QualifiedName()); ok {
				row.MemberCount = len(enum.Values)
			}
		}
		row.ReferrerCount = reverseCounts[info.QualifiedName()]
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name == rows[j].Name {
			return rows[i].File < rows[j].File
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func (s *Service) referrers(id string) []string {
	report, err := s.builder.Impact(id)
	if err != nil {
		return nil
	}
	return report.DirectReferrers
}

func matchCondition(row SymbolRow, cond CQLCondition) (bool, error) {
	if cond.IsInt {
		var value int
		switch cond.Field {
		case "members", "fields", "values":
			value = row.MemberCount
		case "referrers", "fan_in":
			value = row.ReferrerCount
		case "line":
			value = row.Line
		default:
			return false, fmt.Errorf("unknown numeric field %q", cond.Field)
		}
		switch cond.Op {
		case "=":
			return value == cond.IntVal, nil
		case "!=":
			return value != cond.IntVal, nil
		case ">":
			return value > cond.IntVal, nil
		case "<":
			return value < cond.IntVal, nil
		case ">=":
			return value >= cond.IntVal, nil
		case "<=":
			return value <= cond.IntVal, nil
		default:
			return false, fmt.Errorf("unknown numeric operator %q", cond.Op)
		}
	}

	var value string
	switch cond.Field {
	case "name":
		value = row.Name
	case "kind":
		value = row.Kind
	case "namespace":
		value = row.Namespace
	case "file":
		value = row.File
	default:
		return false, fmt.Errorf("unknown string field %q", cond.Field)
	}

	switch cond.Op {
	case "contains":
		return strings.Contains(strings.ToLower(value), strings.ToLower(cond.StrVal)), nil
	case "=":
		return strings.EqualFold(value, cond.StrVal), nil
	case "!=":
		return !strings.EqualFold(value, cond.StrVal), nil
	default:
		return false, fmt.Errorf("unknown string operator %q", cond.Op)
	}
}
