package ast

import "testing"

func TestCardinalityDerivedProperties(t *testing.T) {
	cases := []struct {
		name     string
		card     Cardinality
		required bool
		multiple bool
	}{
		{"0..1", Cardinality{Min: 0, Max: Finite(1)}, false, false},
		{"1..1", Cardinality{Min: 1, Max: Finite(1)}, true, false},
		{"0..*", Cardinality{Min: 0, Max: Unbounded()}, false, true},
		{"1..*", Cardinality{Min: 1, Max: Unbounded()}, true, true},
		{"2..5", Cardinality{Min: 2, Max: Finite(5)}, true, true},
		{"0..0", Cardinality{Min: 0, Max: Finite(0)}, false, false},
	}

	for _, tc := range cases {
		if got := tc.card.IsRequired(); got != tc.required {
			t.Errorf("%s: IsRequired = %v, want %v", tc.name, got, tc.required)
		}
		if got := tc.card.IsMultiple(); got != tc.multiple {
			t.Errorf("%s: IsMultiple = %v, want %v", tc.name, got, tc.multiple)
		}
	}
}

func TestDefaultCardinality(t *testing.T) {
	c := DefaultCardinality()
	if c.Min != 1 || c.Max.Unbounded || c.Max.N != 1 {
		t.Fatalf("unexpected default cardinality: %+v", c)
	}
	if !c.IsRequired() || c.IsMultiple() {
		t.Errorf("default cardinality should be required and single, got required=%v multiple=%v",
			c.IsRequired(), c.IsMultiple())
	}
	if c.String() != "(1..1)" {
		t.Errorf("String = %q, want (1..1)", c.String())
	}
}

func TestBoundString(t *testing.T) {
	if Unbounded().String() != "*" {
		t.Errorf("unbounded bound should render as *")
	}
	if Finite(7).String() != "7" {
		t.Errorf("finite bound should render its count")
	}
}

func TestIsPrimitive(t *testing.T) {
	for _, name := range []string{"string", "int", "number", "boolean", "date", "time", "dateTime", "zonedDateTime"} {
		if !IsPrimitive(name) {
			t.Errorf("expected %s to be primitive", name)
		}
	}
	for _, name := range []string{"String", "Party", "datetime", ""} {
		if IsPrimitive(name) {
			t.Errorf("expected %s to not be primitive", name)
		}
	}
}

func TestParseMetaTag(t *testing.T) {
	for _, raw := range []string{"key", "id", "reference", "scheme"} {
		tag, ok := ParseMetaTag(raw)
		if !ok || string(tag) != raw {
			t.Errorf("ParseMetaTag(%q) = %q, %v", raw, tag, ok)
		}
	}
	if _, ok := ParseMetaTag("address"); ok {
		t.Error("address should not parse as a metadata tag")
	}
}

func TestFileMemberLookup(t *testing.T) {
	f := &File{
		Path:  "model.rosetta",
		Types: []Type{{Name: "Person"}, {Name: "Employee", Extends: "Person"}},
		Enums: []Enum{{Name: "Department"}},
	}

	if f.TypeByName("Employee") == nil {
		t.Fatal("expected Employee to resolve")
	}
	if f.TypeByName("Department") != nil {
		t.Error("enum name should not resolve as a type")
	}
	if f.EnumByName("Department") == nil {
		t.Error("expected Department to resolve as enum")
	}
	if f.EnumByName("Missing") != nil {
		t.Error("unknown enum should resolve to nil")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"error":       SeverityError,
		"Warning":     SeverityWarning,
		"warn":        SeverityWarning,
		"information": SeverityInformation,
		"info":        SeverityInformation,
		"hint":        SeverityHint,
	}
	for raw, want := range cases {
		got, ok := ParseSeverity(raw)
		if !ok || got != want {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v", raw, got, ok, want)
		}
	}
	if _, ok := ParseSeverity("fatal"); ok {
		t.Error("fatal should not parse as a severity")
	}
}
