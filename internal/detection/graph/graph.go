// Package graph fuses analyzer edges into an evidence graph and extracts its
// connected components. Each component is one candidate alt-account group.
package graph

import (
	"sort"

	"github.com/veilguard/doppel/internal/detection/analyzer"
)

// Component is one connected group of members with the merged evidence that
// links them. Evidence strings are deduplicated; Details holds the most
// recent detail map per analyzer tag.
type Component struct {
	MemberIDs []uint64
	Evidence  []string
	Details   map[string]map[string]any
}

// Graph accumulates analyzer edges. Edge insertion is commutative: any
// insertion order yields the same components.
type Graph struct {
	adjacency map[uint64]map[uint64]struct{}
	evidence  map[uint64]map[string]struct{}
	details   map[uint64]map[string]map[string]any
}

// New returns an empty evidence graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[uint64]map[uint64]struct{}),
		evidence:  make(map[uint64]map[string]struct{}),
		details:   make(map[uint64]map[string]map[string]any),
	}
}

// AddEdge connects every member named by the edge and attaches its evidence
// to each of them. Edges naming fewer than two members are ignored.
func (g *Graph) AddEdge(edge analyzer.Edge) {
	if len(edge.MemberIDs) < 2 {
		return
	}

	for _, id := range edge.MemberIDs {
		if g.adjacency[id] == nil {
			g.adjacency[id] = make(map[uint64]struct{})
		}

		if g.evidence[id] == nil {
			g.evidence[id] = make(map[string]struct{})
		}

		g.evidence[id][edge.Evidence] = struct{}{}

		if edge.Details != nil {
			if g.details[id] == nil {
				g.details[id] = make(map[string]map[string]any)
			}

			g.details[id][edge.Analyzer] = edge.Details
		}
	}

	for _, a := range edge.MemberIDs {
		for _, b := range edge.MemberIDs {
			if a == b {
				continue
			}

			g.adjacency[a][b] = struct{}{}
		}
	}
}

// AddEdges inserts a batch of edges.
func (g *Graph) AddEdges(edges []analyzer.Edge) {
	for _, edge := range edges {
		g.AddEdge(edge)
	}
}

// Len returns the number of members present in the graph.
func (g *Graph) Len() int { return len(g.adjacency) }

// Components extracts the connected components via breadth-first search.
// Components are ordered by their smallest member ID and member IDs within a
// component are ascending, so output is deterministic for a given edge set.
func (g *Graph) Components() []Component {
	ids := make([]uint64, 0, len(g.adjacency))
	for id := range g.adjacency {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	visited := make(map[uint64]struct{}, len(ids))

	var components []Component

	for _, start := range ids {
		if _, seen := visited[start]; seen {
			continue
		}

		members := g.traverse(start, visited)
		if len(members) < 2 {
			continue
		}

		components = append(components, g.buildComponent(members))
	}

	return components
}

// traverse collects the component containing start.
func (g *Graph) traverse(start uint64, visited map[uint64]struct{}) []uint64 {
	queue := []uint64{start}
	visited[start] = struct{}{}

	var members []uint64

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		members = append(members, current)

		neighbours := make([]uint64, 0, len(g.adjacency[current]))
		for neighbour := range g.adjacency[current] {
			neighbours = append(neighbours, neighbour)
		}

		sort.Slice(neighbours, func(i, j int) bool { return neighbours[i] < neighbours[j] })

		for _, neighbour := range neighbours {
			if _, seen := visited[neighbour]; seen {
				continue
			}

			visited[neighbour] = struct{}{}
			queue = append(queue, neighbour)
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	return members
}

// buildComponent merges per-member evidence and details into one component.
func (g *Graph) buildComponent(members []uint64) Component {
	evidenceSet := make(map[string]struct{})
	details := make(map[string]map[string]any)

	for _, id := range members {
		for line := range g.evidence[id] {
			evidenceSet[line] = struct{}{}
		}

		for tag, d := range g.details[id] {
			details[tag] = d
		}
	}

	evidence := make([]string, 0, len(evidenceSet))
	for line := range evidenceSet {
		evidence = append(evidence, line)
	}

	sort.Strings(evidence)

	return Component{
		MemberIDs: members,
		Evidence:  evidence,
		Details:   details,
	}
}
