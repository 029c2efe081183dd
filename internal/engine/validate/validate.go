// # internal/engine/validate/validate.go
package validate

import (
	"fmt"
	"sort"
	"strings"

	"rosewatch/internal/core/config"
	"rosewatch/internal/engine/ast"
	"rosewatch/internal/engine/index"
)

// Rule identifiers. Config refers to rules by these IDs when disabling them
// or overriding their severity.
const (
	RuleUndefinedType       = "undefined-type"
	RuleCircularInheritance = "circular-inheritance"
	RuleInvalidCardinality  = "invalid-cardinality"
	RuleDuplicateField      = "duplicate-field"
	RuleDuplicateEnumValue  = "duplicate-enum-value"
	RuleEmptyType           = "empty-type"
	RuleEmptyEnum           = "empty-enum"
	RuleMissingDescription  = "missing-description"
	RuleDuplicateSymbol     = "duplicate-symbol"
	RuleParseError          = "parse-error"
)

type ruleDefault struct {
	id       string
	severity ast.Severity
	enabled  bool
}

var defaults = []ruleDefault{
	{RuleUndefinedType, ast.SeverityError, true},
	{RuleCircularInheritance, ast.SeverityError, true},
	{RuleInvalidCardinality, ast.SeverityError, true},
	{RuleDuplicateField, ast.SeverityError, true},
	{RuleDuplicateEnumValue, ast.SeverityError, true},
	{RuleEmptyType, ast.SeverityWarning, true},
	{RuleEmptyEnum, ast.SeverityError, true},
	{RuleMissingDescription, ast.SeverityWarning, false},
	{RuleDuplicateSymbol, ast.SeverityWarning, true},
	{RuleParseError, ast.SeverityError, true},
}

// RuleIDs returns every known rule identifier in declaration order.
func RuleIDs() []string {
	out := make([]string, 0, len(defaults))
	for _, d := range defaults {
		out = append(out, d.id)
	}
	return out
}

// Diagnostic is one validation finding. Range is the parser-stamped location
// of the offending element.
type Diagnostic struct {
	RuleID   string
	Severity ast.Severity
	Message  string
	Path     string
	Range    ast.Location
}

// Engine checks parsed files against the rule set. Rule toggles and severity
// overrides come from config and are fixed for the engine's lifetime.
type Engine struct {
	enabled  map[string]bool
	severity map[string]ast.Severity
}

func NewEngine(cfg config.Validation) *Engine {
	e := &Engine{
		enabled:  make(map[string]bool, len(defaults)),
		severity: make(map[string]ast.Severity, len(defaults)),
	}
	for _, d := range defaults {
		e.enabled[d.id] = d.enabled
		e.severity[d.id] = d.severity
	}
	for _, id := range cfg.Disabled {
		e.enabled[strings.TrimSpace(id)] = false
	}
	for _, id := range cfg.Enabled {
		e.enabled[strings.TrimSpace(id)] = true
	}
	for id, raw := range cfg.Severity {
		if sev, ok := ast.ParseSeverity(raw); ok {
			e.severity[id] = sev
		}
	}
	return e
}

// CheckAll validates every file in the index and returns the findings sorted
// by path, then line.
func (e *Engine) CheckAll(ix *index.Index) []Diagnostic {
	var out []Diagnostic
	for _, file := range ix.AllFiles() {
		out = append(out, e.CheckFile(file, ix)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Range.Line < out[j].Range.Line
	})
	return out
}

// CheckFile validates one parsed file. Cross-file references (extends chains,
// field types, colliding names) are resolved through the index.
func (e *Engine) CheckFile(file *ast.File, ix *index.Index) []Diagnostic {
	if file == nil {
		return nil
	}

	var out []Diagnostic
	report := func(rule string, loc ast.Location, format string, args ...any) {
		if !e.enabled[rule] {
			return
		}
		out = append(out, Diagnostic{
			RuleID:   rule,
			Severity: e.severity[rule],
			Message:  fmt.Sprintf(format, args...),
			Path:     file.Path,
			Range:    loc,
		})
	}

	if e.enabled[RuleParseError] {
		for _, pe := range ix.ParseErrors(file.Path) {
			out = append(out, Diagnostic{
				RuleID:   RuleParseError,
				Severity: pe.Severity,
				Message:  pe.Message,
				Path:     file.Path,
				Range:    pe.Location,
			})
		}
	}

	for i := range file.Types {
		typ := &file.Types[i]

		if typ.Extends != "" && !ast.IsPrimitive(typ.Extends) && !ix.HasSymbol(typ.Extends) {
			report(RuleUndefinedType, typ.ExtendsLocation,
				"type %s extends undefined type %s", typ.Name, typ.Extends)
		}
		if cycle := e.inheritanceCycle(typ, ix); cycle != "" {
			report(RuleCircularInheritance, typ.ExtendsLocation,
				"circular inheritance: %s", cycle)
		}
		if len(typ.Fields) == 0 && typ.Extends == "" {
			report(RuleEmptyType, typ.Location,
				"type %s has no fields and no parent", typ.Name)
		}
		if typ.Description == "" {
			report(RuleMissingDescription, typ.Location,
				"type %s has no description", typ.Name)
		}
		e.checkDuplicateSymbol(report, ix, index.KindType, typ.Name, typ.Location)

		seen := map[string]bool{}
		for j := range typ.Fields {
			f := &typ.Fields[j]
			if seen[f.Name] {
				report(RuleDuplicateField, f.Location,
					"field %s is declared more than once in type %s", f.Name, typ.Name)
			}
			seen[f.Name] = true

			if !ast.IsPrimitive(f.TypeName) && !ix.HasSymbol(f.TypeName) {
				report(RuleUndefinedType, f.Location,
					"field %s references undefined type %s", f.Name, f.TypeName)
			}
			if f.Description == "" {
				report(RuleMissingDescription, f.Location,
					"field %s has no description", f.Name)
			}
			c := f.Cardinality
			if !c.Max.Unbounded && c.Max.N < c.Min {
				report(RuleInvalidCardinality, f.Location,
					"field %s has cardinality %s with max below min", f.Name, c)
			}
		}
	}

	for i := range file.Enums {
		enum := &file.Enums[i]

		if len(enum.Values) == 0 {
			report(RuleEmptyEnum, enum.Location, "enum %s has no values", enum.Name)
		}
		if enum.Description == "" {
			report(RuleMissingDescription, enum.Location,
				"enum %s has no description", enum.Name)
		}
		e.checkDuplicateSymbol(report, ix, index.KindEnum, enum.Name, enum.Location)

		seen := map[string]bool{}
		for j := range enum.Values {
			v := &enum.Values[j]
			if seen[v.Name] {
				report(RuleDuplicateEnumValue, v.Location,
					"enum value %s is declared more than once in %s", v.Name, enum.Name)
			}
			seen[v.Name] = true
		}
	}

	return out
}

// inheritanceCycle walks the extends chain of typ through the index and
// returns a printable cycle when the chain revisits a name. The empty string
// means the chain terminates.
func (e *Engine) inheritanceCycle(typ *ast.Type, ix *index.Index) string {
	if typ.Extends == "" {
		return ""
	}
	seen := map[string]bool{simpleName(typ.Name): true}
	chain := []string{typ.Name}

	next := typ.Extends
	for next != "" {
		bare := simpleName(next)
		if seen[bare] {
			return strings.Join(append(chain, next), " -> ")
		}
		seen[bare] = true
		chain = append(chain, next)

		parent, _, ok := ix.Type(next)
		if !ok {
			return "" // undefined parent is the undefined-type rule's finding
		}
		next = parent.Extends
	}
	return ""
}

func (e *Engine) checkDuplicateSymbol(report func(string, ast.Location, string, ...any), ix *index.Index, kind index.SymbolKind, name string, loc ast.Location) {
	paths := ix.CollidingPaths(kind, name)
	if len(paths) < 2 {
		return
	}
	report(RuleDuplicateSymbol, loc,
		"%s %s is defined in %d files: %s", kind, name, len(paths), strings.Join(paths, ", "))
}

func simpleName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// CountBySeverity tallies diagnostics per severity label for reporting.
func CountBySeverity(diags []Diagnostic) map[ast.Severity]int {
	out := make(map[ast.Severity]int)
	for _, d := range diags {
		out[d.Severity]++
	}
	return out
}
