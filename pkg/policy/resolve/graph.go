package resolve

import "sort"

// Graph is a directed graph over policy ids. An edge u -> v means u must
// execute before v (v requires u).
type Graph struct {
	nodes map[string]bool
	// edges maps a node to its successors.
	edges map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		edges: make(map[string][]string),
	}
}

// AddNode adds a node (idempotent).
func (g *Graph) AddNode(id string) {
	g.nodes[id] = true
}

// AddEdge adds a directed edge from -> to, implicitly adding the nodes.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from] = append(g.edges[from], to)
}

// TopoSort returns the nodes in topological order using Kahn's
// algorithm. Among nodes that are simultaneously ready, the less
// function decides order, making the result fully deterministic. The
// second return value lists nodes trapped in cycles (empty for a DAG).
func (g *Graph) TopoSort(less func(a, b string) bool) (ordered []string, cyclic []string) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, succs := range g.edges {
		for _, succ := range succs {
			indegree[succ]++
		}
	}

	ready := make([]string, 0, len(g.nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	ordered = make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)

		for _, succ := range g.edges[next] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(ordered) < len(g.nodes) {
		seen := make(map[string]bool, len(ordered))
		for _, id := range ordered {
			seen[id] = true
		}
		for id := range g.nodes {
			if !seen[id] {
				cyclic = append(cyclic, id)
			}
		}
		sort.Strings(cyclic)
	}

	return ordered, cyclic
}
