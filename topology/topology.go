// Package topology builds the undirected graph over Processing Elements
// (PEs): who is whose neighbour, and how many hops separate any two PEs.
// It is built once at construction and is immutable thereafter.
package topology

import (
	"fmt"
	"sort"
	"strconv"

	filter "github.com/pebbledata/dpf"
	"github.com/katalvlaran/lvlath/core"
)

// Topology is a symmetric, connected graph over nPEs Processing Elements.
type Topology struct {
	nPEs       int
	g          *core.Graph
	neighbours [][]int
	hops       [][]int
}

// vertexID renders a PE index as the vertex identifier lvlath expects.
func vertexID(i int) string {
	return strconv.Itoa(i)
}

// New builds a Topology from a list of undirected edges (pairs of PE
// indices) over n PEs. It returns a *filter.ConfigurationError if the
// graph is not symmetric-connected: every PE must be reachable from every
// other PE.
func New(n int, edges [][2]int) (*Topology, error) {
	if n <= 0 {
		return nil, &filter.ConfigurationError{Msg: fmt.Sprintf("invalid PE count: %d", n)}
	}

	g := core.NewGraph(core.WithDirected(false))
	for i := 0; i < n; i++ {
		if err := g.AddVertex(vertexID(i)); err != nil {
			return nil, &filter.ConfigurationError{Msg: fmt.Sprintf("failed to add PE %d: %v", i, err)}
		}
	}
	for _, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || a >= n || b < 0 || b >= n {
			return nil, &filter.ConfigurationError{Msg: fmt.Sprintf("edge (%d,%d) out of range for %d PEs", a, b, n)}
		}
		if a == b {
			continue
		}
		if _, err := g.AddEdge(vertexID(a), vertexID(b), 1.0); err != nil {
			return nil, &filter.ConfigurationError{Msg: fmt.Sprintf("failed to add edge (%d,%d): %v", a, b, err)}
		}
	}

	t := &Topology{nPEs: n, g: g}
	if err := t.buildNeighbours(); err != nil {
		return nil, err
	}
	if err := t.buildHops(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Topology) buildNeighbours() error {
	t.neighbours = make([][]int, t.nPEs)
	for i := 0; i < t.nPEs; i++ {
		ids, err := t.g.NeighborIDs(vertexID(i))
		if err != nil {
			return &filter.ConfigurationError{Msg: fmt.Sprintf("failed to read neighbours of PE %d: %v", i, err)}
		}
		ns := make([]int, 0, len(ids))
		for _, id := range ids {
			j, err := strconv.Atoi(id)
			if err != nil {
				return &filter.ConfigurationError{Msg: fmt.Sprintf("invalid vertex id %q", id)}
			}
			ns = append(ns, j)
		}
		sort.Ints(ns)
		t.neighbours[i] = ns
	}

	return nil
}

// buildHops computes all-pairs hop distances via BFS over NeighborIDs, and
// fails if the graph is disconnected (spec: Topology must be connected).
func (t *Topology) buildHops() error {
	t.hops = make([][]int, t.nPEs)

	for i := 0; i < t.nPEs; i++ {
		dist := make([]int, t.nPEs)
		for j := range dist {
			dist[j] = -1
		}
		dist[i] = 0
		queue := []int{i}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, v := range t.neighbours[u] {
				if dist[v] == -1 {
					dist[v] = dist[u] + 1
					queue = append(queue, v)
				}
			}
		}
		for j, d := range dist {
			if d == -1 {
				return &filter.ConfigurationError{Msg: fmt.Sprintf("topology is disconnected: no path from PE %d to PE %d", i, j)}
			}
		}
		t.hops[i] = dist
	}

	return nil
}

// NumPEs returns the number of PEs in the topology.
func (t *Topology) NumPEs() int {
	return t.nPEs
}

// Neighbours returns the ascending-sorted neighbour indices of PE i.
func (t *Topology) Neighbours(i int) []int {
	ns := make([]int, len(t.neighbours[i]))
	copy(ns, t.neighbours[i])

	return ns
}

// MaxDegree returns the largest number of neighbours held by any PE.
func (t *Topology) MaxDegree() int {
	max := 0
	for _, ns := range t.neighbours {
		if len(ns) > max {
			max = len(ns)
		}
	}

	return max
}

// Hops returns the hop distance between PEs i and j.
func (t *Topology) Hops(i, j int) int {
	return t.hops[i][j]
}

// FullyConnected builds a complete graph over n PEs: every PE is a
// neighbour of every other.
func FullyConnected(n int) (*Topology, error) {
	var edges [][2]int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, [2]int{i, j})
		}
	}

	return New(n, edges)
}

// Ring builds a cycle graph over n PEs: PE i is a neighbour of
// (i-1) mod n and (i+1) mod n.
func Ring(n int) (*Topology, error) {
	if n < 3 {
		return nil, &filter.ConfigurationError{Msg: fmt.Sprintf("ring topology needs at least 3 PEs, got %d", n)}
	}
	edges := make([][2]int, 0, n)
	for i := 0; i < n; i++ {
		edges = append(edges, [2]int{i, (i + 1) % n})
	}

	return New(n, edges)
}

// Line builds a path graph over n PEs: PE i is a neighbour of i-1 and i+1.
func Line(n int) (*Topology, error) {
	edges := make([][2]int, 0, n)
	for i := 0; i+1 < n; i++ {
		edges = append(edges, [2]int{i, i + 1})
	}

	return New(n, edges)
}
