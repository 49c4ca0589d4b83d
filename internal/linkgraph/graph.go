// Package linkgraph turns stored documents into the closed link graph over
// the seed ids.
package linkgraph

import (
	"fmt"
	"sort"
)

// Edge is one hyperlink occurrence from one corpus document to another.
type Edge struct {
	From int
	To   int
}

// Inbound is a weighted in-link: Weight counts how many times From links to
// the target.
type Inbound struct {
	From   int
	Weight int
}

// Graph is an immutable directed multigraph over nodes 0..N-1. Edges are kept
// sorted, so two graphs built from the same multiset are identical no matter
// the insertion order.
type Graph struct {
	n         int
	edges     []Edge
	outDegree []int
	inbound   [][]Inbound
}

// NewGraph validates and canonicalizes the edge multiset.
func NewGraph(n int, edges []Edge) (*Graph, error) {
	if n < 0 {
		return nil, fmt.Errorf("node count must be >= 0, got %d", n)
	}
	sorted := append([]Edge(nil), edges...)
	for _, e := range sorted {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return nil, fmt.Errorf("edge %d->%d outside node range [0,%d)", e.From, e.To, n)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].To < sorted[j].To
	})

	g := &Graph{
		n:         n,
		edges:     sorted,
		outDegree: make([]int, n),
		inbound:   make([][]Inbound, n),
	}
	for _, e := range sorted {
		g.outDegree[e.From]++
		in := g.inbound[e.To]
		// Sorted by From, so repeats of the same pair are adjacent.
		if last := len(in) - 1; last >= 0 && in[last].From == e.From {
			in[last].Weight++
			continue
		}
		g.inbound[e.To] = append(in, Inbound{From: e.From, Weight: 1})
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return g.n
}

// EdgeCount returns the number of edges, counting multiplicity.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Edges returns a copy of the canonical edge list.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// OutDegree is the number of out-links of id, counting multiplicity.
func (g *Graph) OutDegree(id int) int {
	return g.outDegree[id]
}

// Inbound returns the weighted in-links of id ordered by source. The slice
// must not be modified.
func (g *Graph) Inbound(id int) []Inbound {
	return g.inbound[id]
}

// Dangling returns the ids with no out-links.
func (g *Graph) Dangling() []int {
	var out []int
	for id, d := range g.outDegree {
		if d == 0 {
			out = append(out, id)
		}
	}
	return out
}
