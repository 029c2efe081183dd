// # internal/engine/graph/detect.go
package graph

import "rosewatch/internal/shared/util"

// DetectCycles finds inheritance cycles over the extends relation. Each cycle
// is reported once, as the node sequence from its entry point.
func (b *Builder) DetectCycles() [][]string {
	g := b.Build()
	adj := adjacency(g, RelExtends)

	nodes := util.SortedStringKeys(adj)

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	for _, node := range nodes {
		if !visited[node] {
			findCycles(node, adj, visited, onStack, []string{}, &cycles)
		}
	}

	return cycles
}

func findCycles(curr string, adj map[string][]string, visited, onStack map[string]bool, path []string, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range adj[curr] {
		if onStack[next] {
			cycleStart := -1
			for i, node := range path {
				if node == next {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				cycle := make([]string, len(path)-cycleStart)
				copy(cycle, path[cycleStart:])
				*cycles = append(*cycles, cycle)
			}
		} else if !visited[next] {
			findCycles(next, adj, visited, onStack, path, cycles)
		}
	}

	onStack[curr] = false
}

// TracePath finds the shortest relationship chain between two symbols over
// both extends and hasField edges, by BFS with sorted neighbor order for
// deterministic results.
func (b *Builder) TracePath(from, to string) ([]string, bool) {
	fromID := b.resolveID(from)
	toID := b.resolveID(to)

	g := b.Build()
	if _, ok := g.Nodes[fromID]; !ok {
		return nil, false
	}
	if _, ok := g.Nodes[toID]; !ok {
		return nil, false
	}
	if fromID == toID {
		return []string{fromID}, true
	}

	adj := adjacency(g, "")

	queue := []string{fromID}
	visited := map[string]bool{fromID: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range adj[curr] {
			if _, ok := g.Nodes[next]; !ok {
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == toID {
				path := []string{toID}
				for node := toID; node != fromID; {
					p, ok := prev[node]
					if !ok {
						return nil, false
					}
					path = append(path, p)
					node = p
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}
