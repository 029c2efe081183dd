// # internal/engine/graph/graph.go
package graph

import (
	"sort"

	"rosewatch/internal/engine/ast"
	"rosewatch/internal/engine/index"
	"rosewatch/internal/shared/observability"
)

// DefaultMaxDepth bounds rooted traversals unless the caller overrides it.
const DefaultMaxDepth = 3

type NodeKind string

const (
	NodeType NodeKind = "type"
	NodeEnum NodeKind = "enum"
)

type RelKind string

const (
	RelExtends  RelKind = "extends"
	RelHasField RelKind = "hasField"
)

type Node struct {
	ID          string
	Name        string
	Kind        NodeKind
	Namespace   string
	Description string
}

type Edge struct {
	From  string
	To    string
	Rel   RelKind
	Label string // field name for hasField edges
}

// TypeGraph is a derived, rebuildable view over the symbol index. Edges may
// reference ids absent from Nodes (unresolved parents or field types);
// consumers that need only resolvable edges filter them out.
type TypeGraph struct {
	Nodes map[string]Node
	Edges []Edge
}

// Builder derives inheritance and field-usage graphs from the index. It
// holds no state beyond its inputs; every build recomputes from scratch.
type Builder struct {
	idx      *index.Index
	maxDepth int
}

func NewBuilder(idx *index.Index) *Builder {
	return &Builder{idx: idx, maxDepth: DefaultMaxDepth}
}

func (b *Builder) SetMaxDepth(depth int) {
	if depth > 0 {
		b.maxDepth = depth
	}
}

// Build produces the whole-workspace graph: one node per defined type and
// enum, an extends edge per parent clause, and a hasField edge per
// non-primitive field type.
func (b *Builder) Build() *TypeGraph {
	g := &TypeGraph{Nodes: make(map[string]Node)}

	for _, file := range b.idx.AllFiles() {
		namespace := ""
		if file.Namespace != nil {
			namespace = file.Namespace.Name
		}

		for i := range file.Types {
			t := &file.Types[i]
			id := qualify(namespace, t.Name)
			g.Nodes[id] = Node{
				ID:          id,
				Name:        t.Name,
				Kind:        NodeType,
				Namespace:   namespace,
				Description: t.Description,
			}

			if t.Extends != "" {
				g.Edges = append(g.Edges, Edge{
					From: id,
					To:   b.resolveID(t.Extends),
					Rel:  RelExtends,
				})
			}

			for j := range t.Fields {
				f := &t.Fields[j]
				if ast.IsPrimitive(f.TypeName) {
					continue
				}
				g.Edges = append(g.Edges, Edge{
					From:  id,
					To:    b.resolveID(f.TypeName),
					Rel:   RelHasField,
					Label: f.Name,
				})
			}
		}

		for i := range file.Enums {
			e := &file.Enums[i]
			id := qualify(namespace, e.Name)
			g.Nodes[id] = Node{
				ID:          id,
				Name:        e.Name,
				Kind:        NodeEnum,
				Namespace:   namespace,
				Description: e.Description,
			}
		}
	}

	observability.GraphNodes.Set(float64(len(g.Nodes)))
	observability.GraphEdges.Set(float64(len(g.Edges)))
	return g
}

// BuildFromType produces a graph rooted at one symbol, expanding parents and
// non-primitive field types depth-first. maxDepth <= 0 falls back to the
// builder default. The visited set is keyed by bare name, which guarantees
// termination on cyclic models; namespace qualification of each emitted id
// comes from the symbol entry of the name being visited, so a transitively
// reached type may sit under a different namespace than the root.
func (b *Builder) BuildFromType(typeName string, maxDepth int) *TypeGraph {
	if maxDepth <= 0 {
		maxDepth = b.maxDepth
	}

	g := &TypeGraph{Nodes: make(map[string]Node)}
	visited := make(map[string]bool)
	b.expand(g, typeName, 1, maxDepth, visited)

	observability.GraphNodes.Set(float64(len(g.Nodes)))
	observability.GraphEdges.Set(float64(len(g.Edges)))
	return g
}

// expand adds the node for name and, while depth stays within maxDepth, its
// outgoing edges. A node reached one step past the depth limit still appears
// in the graph; only its own relationships stay unexpanded.
func (b *Builder) expand(g *TypeGraph, name string, depth, maxDepth int, visited map[string]bool) {
	bare := simpleName(name)
	if visited[bare] {
		return
	}
	visited[bare] = true

	if typ, info, ok := b.idx.Type(name); ok {
		id := qualify(info.Namespace, info.Name)
		g.Nodes[id] = Node{
			ID:          id,
			Name:        info.Name,
			Kind:        NodeType,
			Namespace:   info.Namespace,
			Description: typ.Description,
		}

		if depth > maxDepth {
			return
		}

		if typ.Extends != "" {
			g.Edges = append(g.Edges, Edge{From: id, To: b.resolveID(typ.Extends), Rel: RelExtends})
			b.expand(g, typ.Extends, depth+1, maxDepth, visited)
		}

		for i := range typ.Fields {
			f := &typ.Fields[i]
			if ast.IsPrimitive(f.TypeName) {
				continue
			}
			g.Edges = append(g.Edges, Edge{From: id, To: b.resolveID(f.TypeName), Rel: RelHasField, Label: f.Name})
			b.expand(g, f.TypeName, depth+1, maxDepth, visited)
		}
		return
	}

	// Enums are leaves: add the node, never recurse.
	if enum, info, ok := b.idx.Enum(name); ok {
		id := qualify(info.Namespace, info.Name)
		g.Nodes[id] = Node{
			ID:          id,
			Name:        info.Name,
			Kind:        NodeEnum,
			Namespace:   info.Namespace,
			Description: enum.Description,
		}
	}
}

// resolveID maps a written type reference to its graph id: the qualified name
// when the reference resolves, the raw text otherwise (dangling edges are
// allowed by contract).
func (b *Builder) resolveID(name string) string {
	if info, ok := b.idx.Symbol(name); ok {
		return info.QualifiedName()
	}
	return name
}

// adjacency builds a sorted edge map over a built graph, optionally filtered
// to one relationship kind.
func adjacency(g *TypeGraph, rel RelKind) map[string][]string {
	adj := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, e := range g.Edges {
		if rel != "" && e.Rel != rel {
			continue
		}
		if seen[e.From] == nil {
			seen[e.From] = make(map[string]bool)
		}
		if seen[e.From][e.To] {
			continue
		}
		seen[e.From][e.To] = true
		adj[e.From] = append(adj[e.From], e.To)
	}
	for from := range adj {
		sort.Strings(adj[from])
	}
	return adj
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

func simpleName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
