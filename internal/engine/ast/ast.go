package ast

import (
	"fmt"
	"strings"
)

// Severity is the shared scale for parse errors and validation diagnostics.
// The parser only emits Error and Warning; the presentation layer consumes
// all four levels.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "error":
		return SeverityError, true
	case "warning", "warn":
		return SeverityWarning, true
	case "information", "info":
		return SeverityInformation, true
	case "hint":
		return SeverityHint, true
	default:
		return SeverityError, false
	}
}

// Location is a source position stamped by the parser. Line and Column are
// 1-based; Length is the span of the element's declaration in bytes.
type Location struct {
	Line   int
	Column int
	Length int
}

// File is the parse result for one source document. Instances are immutable
// once returned by the parser; a re-parse replaces the File wholesale.
type File struct {
	Path      string
	Namespace *Namespace
	Imports   []Import
	Types     []Type
	Enums     []Enum
	Functions []Function
}

// TypeByName returns the type declared in this file under the given simple
// name, or nil.
func (f *File) TypeByName(name string) *Type {
	if f == nil {
		return nil
	}
	for i := range f.Types {
		if f.Types[i].Name == name {
			return &f.Types[i]
		}
	}
	return nil
}

// EnumByName returns the enum declared in this file under the given simple
// name, or nil.
func (f *File) EnumByName(name string) *Enum {
	if f == nil {
		return nil
	}
	for i := range f.Enums {
		if f.Enums[i].Name == name {
			return &f.Enums[i]
		}
	}
	return nil
}

type Namespace struct {
	Name        string // dotted path, e.g. cdm.product.asset
	Description string
	Version     string
	Location    Location
}

type Import struct {
	Path       string
	IsWildcard bool // path ends in .*
	Location   Location
}

type Type struct {
	Name            string
	Description     string
	Extends         string // parent type name, empty when the type has no parent
	ExtendsLocation Location
	Metadata        []Metadata
	Fields          []Field
	Conditions      []Condition
	Location        Location
}

type Field struct {
	Name        string
	TypeName    string // primitive name or reference to a Type/Enum
	Cardinality Cardinality
	Description string
	Metadata    []Metadata
	Location    Location
}

// Bound is the upper limit of a cardinality: either a finite count or
// unbounded. Keeping the variant tagged keeps min/max comparisons type-safe.
type Bound struct {
	N         int
	Unbounded bool
}

func Finite(n int) Bound { return Bound{N: n} }

func Unbounded() Bound { return Bound{Unbounded: true} }

func (b Bound) String() string {
	if b.Unbounded {
		return "*"
	}
	return fmt.Sprintf("%d", b.N)
}

// Cardinality is the (min, max) occurrence bound on a field. The required and
// multiple properties are always derived from Min/Max, never stored.
type Cardinality struct {
	Min int
	Max Bound
}

// DefaultCardinality is the permissive fallback used when a field line carries
// no parseable bound: exactly one occurrence.
func DefaultCardinality() Cardinality {
	return Cardinality{Min: 1, Max: Finite(1)}
}

// IsRequired reports whether at least one occurrence is mandatory.
func (c Cardinality) IsRequired() bool { return c.Min > 0 }

// IsMultiple reports whether more than one occurrence is allowed.
func (c Cardinality) IsMultiple() bool { return c.Max.Unbounded || c.Max.N > 1 }

func (c Cardinality) String() string {
	return fmt.Sprintf("(%d..%s)", c.Min, c.Max)
}

// MetaTag is one of the closed set of metadata annotations governing how a
// field participates in identity/reference semantics.
type MetaTag string

const (
	MetaKey       MetaTag = "key"
	MetaID        MetaTag = "id"
	MetaReference MetaTag = "reference"
	MetaScheme    MetaTag = "scheme"
)

func ParseMetaTag(raw string) (MetaTag, bool) {
	switch MetaTag(strings.TrimSpace(raw)) {
	case MetaKey:
		return MetaKey, true
	case MetaID:
		return MetaID, true
	case MetaReference:
		return MetaReference, true
	case MetaScheme:
		return MetaScheme, true
	default:
		return "", false
	}
}

type Metadata struct {
	Tag      MetaTag
	Location Location
}

// Condition is a named validation rule attached to a type. The expression is
// stored verbatim; this layer performs no semantic parsing of it.
type Condition struct {
	Name        string
	Description string
	Expression  string
	Location    Location
}

type Enum struct {
	Name        string
	Description string
	Values      []EnumValue
	Location    Location
}

type EnumValue struct {
	Name        string
	DisplayName string
	Description string
	Location    Location
}

// Function is a declaration stub: the indexer records that the symbol exists
// but keeps no body detail.
type Function struct {
	Name     string
	Location Location
}

// ParseError is a structured, recoverable parse failure. Warning severity
// marks skipped spans (e.g. an unrecognized member line); Error severity marks
// a definition that could not be built at all.
type ParseError struct {
	Message  string
	Location Location
	Severity Severity
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s at line %d: %s", e.Severity, e.Location.Line, e.Message)
}

var primitives = map[string]bool{
	"string":        true,
	"int":           true,
	"number":        true,
	"boolean":       true,
	"date":          true,
	"time":          true,
	"dateTime":      true,
	"zonedDateTime": true,
}

// IsPrimitive reports whether name is one of the built-in scalar types. The
// graph builder and validator both exclude primitives from reference
// resolution.
func IsPrimitive(name string) bool {
	return primitives[name]
}
