// # internal/engine/parser/parser_test.go
package parser

import (
	"strings"
	"testing"

	"rosewatch/internal/engine/ast"
)

func parseClean(t *testing.T, source string) *ast.File {
	t.Helper()
	file, errs := Parse(source, "test.rosetta")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return file
}

func TestParseNamespaceVersionImports(t *testing.T) {
	file := parseClean(t, `namespace cdm.trade : <"Trade domain model">
version "5.12.0"
import cdm.base.*
import cdm.event.common
`)

	if file.Namespace == nil || file.Namespace.Name != "cdm.trade" {
		t.Fatalf("unexpected namespace: %+v", file.Namespace)
	}
	if file.Namespace.Description != "Trade domain model" {
		t.Errorf("unexpected description %q", file.Namespace.Description)
	}
	if file.Namespace.Version != "5.12.0" {
		t.Errorf("unexpected version %q", file.Namespace.Version)
	}

	if len(file.Imports) != 2 {
		t.Fatalf("expected 2 imports, got %v", file.Imports)
	}
	if file.Imports[0].Path != "cdm.base.*" || !file.Imports[0].IsWildcard {
		t.Errorf("unexpected wildcard import: %+v", file.Imports[0])
	}
	if file.Imports[1].Path != "cdm.event.common" || file.Imports[1].IsWildcard {
		t.Errorf("unexpected plain import: %+v", file.Imports[1])
	}
}

func TestParseTypeWithFields(t *testing.T) {
	file := parseClean(t, `namespace m
type Trade : <"A trade record">
{
    tradeId string (1..1) <"Unique identifier">
    lots TradeLot (1..*)
    notes string (0..3)
}`)

	trade := file.TypeByName("Trade")
	if trade == nil {
		t.Fatal("Trade not parsed")
	}
	if trade.Description != "A trade record" {
		t.Errorf("unexpected description %q", trade.Description)
	}
	if len(trade.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(trade.Fields))
	}

	id := trade.Fields[0]
	if id.Name != "tradeId" || id.TypeName != "string" || id.Description != "Unique identifier" {
		t.Errorf("unexpected field: %+v", id)
	}
	if !id.Cardinality.IsRequired() || id.Cardinality.IsMultiple() {
		t.Errorf("tradeId should be exactly-one, got %s", id.Cardinality)
	}

	lots := trade.Fields[1]
	if lots.Cardinality.Min != 1 || !lots.Cardinality.Max.Unbounded {
		t.Errorf("lots should be (1..*), got %s", lots.Cardinality)
	}

	notes := trade.Fields[2]
	if notes.Cardinality.IsRequired() || notes.Cardinality.Max.N != 3 {
		t.Errorf("notes should be (0..3), got %s", notes.Cardinality)
	}
}

func TestParseExtendsClause(t *testing.T) {
	file := parseClean(t, `namespace m
type Base {}
type Derived extends Base
{
    extra string (0..1)
}`)

	derived := file.TypeByName("Derived")
	if derived == nil {
		t.Fatal("Derived not parsed")
	}
	if derived.Extends != "Base" {
		t.Errorf("unexpected extends %q", derived.Extends)
	}
	if derived.ExtendsLocation.Line != 3 {
		t.Errorf("extends location should point at the clause, got %+v", derived.ExtendsLocation)
	}
	if base := file.TypeByName("Base"); base == nil || len(base.Fields) != 0 {
		t.Errorf("inline empty body should parse: %+v", base)
	}
}

func TestParseQualifiedFieldType(t *testing.T) {
	file := parseClean(t, `namespace m
type Holder
{
    inner cdm.base.Thing (1..1)
}`)

	holder := file.TypeByName("Holder")
	if holder == nil || len(holder.Fields) != 1 {
		t.Fatalf("unexpected parse: %+v", holder)
	}
	if holder.Fields[0].TypeName != "cdm.base.Thing" {
		t.Errorf("unexpected field type %q", holder.Fields[0].TypeName)
	}
}

func TestCardinalityTable(t *testing.T) {
	cases := []struct {
		group     string
		min       int
		max       int
		unbounded bool
	}{
		{"(1..1)", 1, 1, false},
		{"(0..1)", 0, 1, false},
		{"(0..*)", 0, 0, true},
		{"(1..*)", 1, 0, true},
		{"(2..5)", 2, 5, false},
	}
	for _, tc := range cases {
		source := "namespace m\ntype T { f string " + tc.group + " }"
		file := parseClean(t, source)
		typ := file.TypeByName("T")
		if typ == nil || len(typ.Fields) != 1 {
			t.Fatalf("%s: no field parsed", tc.group)
		}
		card := typ.Fields[0].Cardinality
		if card.Min != tc.min || card.Max.Unbounded != tc.unbounded {
			t.Errorf("%s: got %s", tc.group, card)
		}
		if !tc.unbounded && card.Max.N != tc.max {
			t.Errorf("%s: got max %d", tc.group, card.Max.N)
		}
	}
}

func TestMalformedCardinalityDefaultsWithWarning(t *testing.T) {
	file, errs := Parse(`namespace m
type T
{
    f string (one..many)
}`, "test.rosetta")

	typ := file.TypeByName("T")
	if typ == nil || len(typ.Fields) != 1 {
		t.Fatalf("field should survive a bad cardinality: %+v", typ)
	}
	card := typ.Fields[0].Cardinality
	if card != ast.DefaultCardinality() {
		t.Errorf("expected default bound, got %s", card)
	}

	if len(errs) != 1 || errs[0].Severity != ast.SeverityWarning {
		t.Fatalf("expected one warning, got %v", errs)
	}
	if !strings.Contains(errs[0].Message, "malformed cardinality") {
		t.Errorf("unexpected message %q", errs[0].Message)
	}
}

func TestFieldWithoutCardinalityIsSkipped(t *testing.T) {
	file, errs := Parse(`namespace m
type T
{
    good string (1..1)
    bad string
}`, "test.rosetta")

	typ := file.TypeByName("T")
	if typ == nil || len(typ.Fields) != 1 || typ.Fields[0].Name != "good" {
		t.Fatalf("only the valid field should survive: %+v", typ)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Message, `skipped field "bad"`) {
		t.Fatalf("expected a skipped-field warning, got %v", errs)
	}
}

func TestMetadataBinding(t *testing.T) {
	file := parseClean(t, `namespace m
type Party
{
    [metadata key]
    partyId string (1..1) [metadata id]
    reference Party (0..1) [metadata reference]
}`)

	party := file.TypeByName("Party")
	if party == nil {
		t.Fatal("Party not parsed")
	}
	if len(party.Metadata) != 1 || party.Metadata[0].Tag != ast.MetaKey {
		t.Errorf("standalone annotation before any field should bind to the type: %+v", party.Metadata)
	}
	if len(party.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %+v", party.Fields)
	}
	if len(party.Fields[0].Metadata) != 1 || party.Fields[0].Metadata[0].Tag != ast.MetaID {
		t.Errorf("inline annotation should bind to its field: %+v", party.Fields[0].Metadata)
	}
	if len(party.Fields[1].Metadata) != 1 || party.Fields[1].Metadata[0].Tag != ast.MetaReference {
		t.Errorf("unexpected reference metadata: %+v", party.Fields[1].Metadata)
	}
}

func TestUnknownMetadataTagWarns(t *testing.T) {
	_, errs := Parse(`namespace m
type T
{
    f string (1..1) [metadata sparkles]
}`, "test.rosetta")

	if len(errs) != 1 || !strings.Contains(errs[0].Message, `unknown metadata tag "sparkles"`) {
		t.Fatalf("expected unknown-tag warning, got %v", errs)
	}
}

func TestParseCondition(t *testing.T) {
	file := parseClean(t, `namespace m
type Quantity
{
    value number (0..1)
    unit string (0..1)
    condition ValueExists : <"Either value or unit must be set">
        value exists
        or unit exists
}`)

	q := file.TypeByName("Quantity")
	if q == nil || len(q.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %+v", q)
	}
	cond := q.Conditions[0]
	if cond.Name != "ValueExists" {
		t.Errorf("unexpected name %q", cond.Name)
	}
	if cond.Description != "Either value or unit must be set" {
		t.Errorf("unexpected description %q", cond.Description)
	}
	if !strings.Contains(cond.Expression, "value exists") || !strings.Contains(cond.Expression, "or unit exists") {
		t.Errorf("expression should capture continuation lines verbatim, got %q", cond.Expression)
	}
	if len(q.Fields) != 2 {
		t.Errorf("condition lines must not consume fields: %+v", q.Fields)
	}
}

func TestParseEnum(t *testing.T) {
	file := parseClean(t, `namespace m
enum DayCountFractionEnum : <"Day count conventions">
{
    ACT_360 displayName "ACT/360" <"Actual over 360">
    ACT_365
    THIRTY_360
}`)

	if len(file.Enums) != 1 {
		t.Fatalf("expected 1 enum, got %+v", file.Enums)
	}
	e := file.Enums[0]
	if e.Name != "DayCountFractionEnum" || e.Description != "Day count conventions" {
		t.Errorf("unexpected enum header: %+v", e)
	}
	if len(e.Values) != 3 {
		t.Fatalf("expected 3 values, got %+v", e.Values)
	}
	if e.Values[0].DisplayName != "ACT/360" || e.Values[0].Description != "Actual over 360" {
		t.Errorf("unexpected first value: %+v", e.Values[0])
	}
	if e.Values[1].DisplayName != "" {
		t.Errorf("plain value should have no display name: %+v", e.Values[1])
	}
}

func TestParseFunctionStub(t *testing.T) {
	file := parseClean(t, `namespace m
func Qualify_Termination {
    inputs and outputs are not indexed
}
type After {}`)

	if len(file.Functions) != 1 || file.Functions[0].Name != "Qualify_Termination" {
		t.Fatalf("unexpected functions: %+v", file.Functions)
	}
	if file.TypeByName("After") == nil {
		t.Error("parsing should resume after the func body")
	}
}

func TestMissingClosingBraceEndsAtNextDefinition(t *testing.T) {
	file := parseClean(t, `namespace m
type First
{
    a string (1..1)
type Second
{
    b string (1..1)
}`)

	first := file.TypeByName("First")
	second := file.TypeByName("Second")
	if first == nil || second == nil {
		t.Fatalf("both types should parse: %+v", file.Types)
	}
	if len(first.Fields) != 1 || first.Fields[0].Name != "a" {
		t.Errorf("First should stop at the next definition: %+v", first.Fields)
	}
	if len(second.Fields) != 1 || second.Fields[0].Name != "b" {
		t.Errorf("unexpected Second fields: %+v", second.Fields)
	}
}

func TestDuplicateNamespaceFirstWins(t *testing.T) {
	file, errs := Parse("namespace first\nnamespace second\n", "test.rosetta")
	if file.Namespace == nil || file.Namespace.Name != "first" {
		t.Fatalf("first namespace should win: %+v", file.Namespace)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "duplicate namespace") {
		t.Fatalf("expected duplicate warning, got %v", errs)
	}
}

func TestTypeWithoutNameIsError(t *testing.T) {
	file, errs := Parse("namespace m\ntype : <\"orphan\">\ntype Ok {}", "test.rosetta")
	if len(errs) != 1 || errs[0].Severity != ast.SeverityError {
		t.Fatalf("expected one error, got %v", errs)
	}
	if file.TypeByName("Ok") == nil {
		t.Error("parsing should continue after the bad declaration")
	}
}

func TestLocationsPointAtSource(t *testing.T) {
	file := parseClean(t, `namespace m
type Trade
{
    tradeId string (1..1)
}`)

	trade := file.TypeByName("Trade")
	if trade.Location.Line != 2 || trade.Location.Column != 1 {
		t.Errorf("unexpected type location: %+v", trade.Location)
	}
	if trade.Fields[0].Location.Line != 4 {
		t.Errorf("unexpected field location: %+v", trade.Fields[0].Location)
	}
}

func TestModelParserAdapter(t *testing.T) {
	mp := ModelParser{}
	if !mp.IsModelPath("model/trade.rosetta") || !mp.IsModelPath("TRADE.ROSETTA") {
		t.Error("rosetta paths should be accepted case-insensitively")
	}
	if mp.IsModelPath("trade.go") {
		t.Error("non-model paths should be rejected")
	}
	if mp.Extension() != Extension {
		t.Errorf("unexpected extension %q", mp.Extension())
	}

	file, errs := mp.ParseFile("trade.rosetta", []byte("namespace m\ntype T { f string (1..1) }"))
	if len(errs) != 0 || file.TypeByName("T") == nil {
		t.Fatalf("adapter parse failed: %+v %v", file, errs)
	}
}
