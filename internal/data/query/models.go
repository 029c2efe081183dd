// # internal/data/query/models.go
package query

import "rosewatch/internal/data/history"

// SymbolRow is the flat projection of one indexed symbol used by list and
// CQL results. MemberCount holds the field count for types and the value
// count for enums.
type SymbolRow struct {
	Name          string
	Kind          string
	Namespace     string
	File          string
	Line          int
	MemberCount   int
	ReferrerCount int
}

type SymbolDetails struct {
	Name        string
	Kind        string
	Namespace   string
	File        string
	Description string
	Extends     string
	Fields      []FieldSummary
	Values      []string
	Referrers   []string
}

type FieldSummary struct {
	Name        string
	Type        string
	Cardinality string
}

type TraceResult struct {
	From  string
	To    string
	Path  []string
	Depth int
}

type TrendSlice struct {
	Since     string
	Until     string
	ScanCount int
	Snapshots []history.Snapshot
}
