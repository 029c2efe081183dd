// # internal/engine/graph/graph_test.go
package graph

import (
	"testing"

	"rosewatch/internal/engine/index"
)

func buildIndex(t *testing.T, files map[string]string) *index.Index {
	t.Helper()
	ix := index.New()
	for path, content := range files {
		ix.UpdateFileContent(path, content)
	}
	return ix
}

const hrModel = `namespace hr

type Person : <"A natural person.">
{
    name string (1..1)
    role RoleEnum (0..1)
}

type Employee extends Person
{
    department Department (1..1)
    badges string (0..*)
}

type Department
{
    head Employee (0..1)
}

enum RoleEnum
{
    STAFF
    MANAGER
}
`

func TestBuildWholeWorkspace(t *testing.T) {
	ix := buildIndex(t, map[string]string{"hr.rosetta": hrModel})
	g := NewBuilder(ix).Build()

	wantNodes := []string{"hr.Person", "hr.Employee", "hr.Department", "hr.RoleEnum"}
	for _, id := range wantNodes {
		if _, ok := g.Nodes[id]; !ok {
			t.Errorf("missing node %s", id)
		}
	}
	if len(g.Nodes) != len(wantNodes) {
		t.Errorf("expected %d nodes, got %d", len(wantNodes), len(g.Nodes))
	}

	var extends, hasField int
	for _, e := range g.Edges {
		switch e.Rel {
		case RelExtends:
			extends++
			if e.From != "hr.Employee" || e.To != "hr.Person" {
				t.Errorf("unexpected extends edge %+v", e)
			}
		case RelHasField:
			hasField++
		}
	}
	if extends != 1 {
		t.Errorf("expected 1 extends edge, got %d", extends)
	}
	// role -> RoleEnum, department -> Department, head -> Employee.
	// Primitive fields must not produce edges.
	if hasField != 3 {
		t.Errorf("expected 3 hasField edges, got %d", hasField)
	}
}

func TestBuildEmitsDanglingEdges(t *testing.T) {
	ix := buildIndex(t, map[string]string{
		"orphan.rosetta": "namespace m\ntype Orphan extends Missing { ref Unknown (1..1) }",
	})
	g := NewBuilder(ix).Build()

	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(g.Edges))
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.To]; ok {
			t.Errorf("expected edge target %s to be unresolved", e.To)
		}
	}
}

func TestBuildFromTypeDepthOne(t *testing.T) {
	ix := buildIndex(t, map[string]string{"hr.rosetta": hrModel})
	g := NewBuilder(ix).BuildFromType("Employee", 1)

	// Person and Department appear as nodes one step past the limit, but
	// their own relationships stay unexpanded.
	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d: %v", len(g.Nodes), g.Nodes)
	}
	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %v", len(g.Edges), g.Edges)
	}

	var sawExtends, sawField bool
	for _, e := range g.Edges {
		if e.Rel == RelExtends && e.From == "hr.Employee" && e.To == "hr.Person" {
			sawExtends = true
		}
		if e.Rel == RelHasField && e.From == "hr.Employee" && e.To == "hr.Department" && e.Label == "department" {
			sawField = true
		}
	}
	if !sawExtends || !sawField {
		t.Errorf("missing expected edges: %v", g.Edges)
	}
}

func TestBuildFromTypeDepthTwo(t *testing.T) {
	ix := buildIndex(t, map[string]string{"hr.rosetta": hrModel})
	g := NewBuilder(ix).BuildFromType("Employee", 2)

	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d: %v", len(g.Nodes), g.Nodes)
	}
	if len(g.Edges) != 4 {
		t.Fatalf("expected 4 edges, got %d: %v", len(g.Edges), g.Edges)
	}
}

func TestBuildFromTypeTerminatesOnCycle(t *testing.T) {
	ix := buildIndex(t, map[string]string{
		"cycle.rosetta": "namespace m\ntype A extends B {}\ntype B extends A {}",
	})
	g := NewBuilder(ix).BuildFromType("A", 10)

	if len(g.Nodes) != 2 {
		t.Errorf("expected 2 nodes, got %d", len(g.Nodes))
	}
}

func TestBuildFromTypeEnumIsLeaf(t *testing.T) {
	ix := buildIndex(t, map[string]string{"hr.rosetta": hrModel})
	g := NewBuilder(ix).BuildFromType("RoleEnum", 5)

	if len(g.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(g.Nodes))
	}
	if node, ok := g.Nodes["hr.RoleEnum"]; !ok || node.Kind != NodeEnum {
		t.Errorf("expected enum leaf node, got %+v", g.Nodes)
	}
	if len(g.Edges) != 0 {
		t.Errorf("expected no edges from an enum, got %v", g.Edges)
	}
}

func TestDetectCycles(t *testing.T) {
	ix := buildIndex(t, map[string]string{
		"cycle.rosetta": "namespace m\ntype A extends B {}\ntype B extends A {}\ntype C extends A {}",
	})
	cycles := NewBuilder(ix).DetectCycles()

	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(cycles), cycles)
	}
	if len(cycles[0]) != 2 {
		t.Errorf("expected a 2-node cycle, got %v", cycles[0])
	}
}

func TestDetectCyclesSelfExtension(t *testing.T) {
	ix := buildIndex(t, map[string]string{
		"self.rosetta": "namespace m\ntype Loop extends Loop {}",
	})
	cycles := NewBuilder(ix).DetectCycles()

	if len(cycles) != 1 || len(cycles[0]) != 1 {
		t.Fatalf("expected one self-cycle, got %v", cycles)
	}
}

func TestTracePath(t *testing.T) {
	ix := buildIndex(t, map[string]string{"hr.rosetta": hrModel})
	b := NewBuilder(ix)

	path, ok := b.TracePath("Employee", "RoleEnum")
	if !ok {
		t.Fatal("expected a path from Employee to RoleEnum")
	}
	// Employee -extends-> Person -role-> RoleEnum.
	want := []string{"hr.Employee", "hr.Person", "hr.RoleEnum"}
	if len(path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("expected path %v, got %v", want, path)
		}
	}

	if _, ok := b.TracePath("RoleEnum", "Employee"); ok {
		t.Error("expected no path against edge direction")
	}
	if _, ok := b.TracePath("Employee", "Nowhere"); ok {
		t.Error("expected no path to an unknown symbol")
	}
}

func TestImpact(t *testing.T) {
	ix := buildIndex(t, map[string]string{"hr.rosetta": hrModel})
	b := NewBuilder(ix)

	report, err := b.Impact("Person")
	if err != nil {
		t.Fatalf("Impact: %v", err)
	}
	if len(report.DirectReferrers) != 1 || report.DirectReferrers[0] != "hr.Employee" {
		t.Errorf("unexpected direct referrers: %v", report.DirectReferrers)
	}
	if len(report.TransitiveReferrers) != 1 || report.TransitiveReferrers[0] != "hr.Department" {
		t.Errorf("unexpected transitive referrers: %v", report.TransitiveReferrers)
	}

	if _, err := b.Impact("Nowhere"); err == nil {
		t.Error("expected an error for an unknown symbol")
	}
}
