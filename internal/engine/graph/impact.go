// # internal/engine/graph/impact.go
package graph

import (
	"fmt"
	"sort"

	"rosewatch/internal/core/errors"
)

// ImpactReport lists the symbols that would be affected by changing the
// target: direct referrers first, then everything reachable through them.
type ImpactReport struct {
	Target              string
	DirectReferrers     []string
	TransitiveReferrers []string
}

// Impact walks the reverse of the extends and hasField relations from a
// symbol.
func (b *Builder) Impact(name string) (ImpactReport, error) {
	targetID := b.resolveID(name)

	g := b.Build()
	if _, ok := g.Nodes[targetID]; !ok {
		return ImpactReport{}, errors.AddContext(
			errors.New(errors.CodeNotFound, fmt.Sprintf("symbol not found: %s", name)),
			errors.CtxSymbol, name,
		)
	}

	reverse := make(map[string][]string)
	for _, e := range g.Edges {
		reverse[e.To] = append(reverse[e.To], e.From)
	}

	report := ImpactReport{Target: targetID}

	directSet := make(map[string]bool)
	for _, from := range reverse[targetID] {
		directSet[from] = true
	}
	direct := make([]string, 0, len(directSet))
	for from := range directSet {
		direct = append(direct, from)
	}
	sort.Strings(direct)
	report.DirectReferrers = direct

	queue := append([]string(nil), direct...)
	seen := make(map[string]bool, len(queue))
	for _, id := range queue {
		seen[id] = true
	}

	transitive := make([]string, 0)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range reverse[curr] {
			if seen[next] || next == targetID {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
			if !directSet[next] {
				transitive = append(transitive, next)
			}
		}
	}
	sort.Strings(transitive)
	report.TransitiveReferrers = transitive

	return report, nil
}
