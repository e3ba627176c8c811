package topology

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Edge is an undirected contact between two peers, normalized so A <= B.
type Edge struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewEdge returns the normalized edge between a and b.
func NewEdge(a, b string) Edge {
	if b < a {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// Graph records which peers have exchanged at least one message.
// It only grows; there is no removal.
type Graph struct {
	mu    sync.RWMutex
	verts map[string]struct{}
	edges map[Edge]struct{}
}

func New() *Graph {
	return &Graph{
		verts: make(map[string]struct{}),
		edges: make(map[Edge]struct{}),
	}
}

// AddVertex ensures v is present.
func (g *Graph) AddVertex(v string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verts[v] = struct{}{}
}

// RecordContact ensures both vertices and the edge between them exist.
// Repeated calls are no-ops. A contact with oneself only adds the vertex.
func (g *Graph) RecordContact(a, b string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verts[a] = struct{}{}
	g.verts[b] = struct{}{}
	if a == b {
		return
	}
	g.edges[NewEdge(a, b)] = struct{}{}
}

func (g *Graph) HasEdge(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[NewEdge(a, b)]
	return ok
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.verts)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Snapshot copies the current vertex and edge sets. Writers are held off
// for the duration of the copy.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Snapshot{
		Vertices: make([]string, 0, len(g.verts)),
		Edges:    make([]Edge, 0, len(g.edges)),
	}
	for v := range g.verts {
		s.Vertices = append(s.Vertices, v)
	}
	for e := range g.edges {
		s.Edges = append(s.Edges, e)
	}
	s.sort()
	return s
}

// Snapshot is a point-in-time, sorted copy of a Graph.
type Snapshot struct {
	Vertices []string `json:"vertices"`
	Edges    []Edge   `json:"edges"`
}

func (s *Snapshot) sort() {
	slices.Sort(s.Vertices)
	slices.SortFunc(s.Edges, func(x, y Edge) int {
		if c := strings.Compare(x.A, y.A); c != 0 {
			return c
		}
		return strings.Compare(x.B, y.B)
	})
}

// Union merges several snapshots into one set-semantics view. The
// simulation uses it to show what the whole overlay has observed.
func Union(snaps ...Snapshot) Snapshot {
	g := New()
	for _, s := range snaps {
		for _, v := range s.Vertices {
			g.AddVertex(v)
		}
		for _, e := range s.Edges {
			g.RecordContact(e.A, e.B)
		}
	}
	return g.Snapshot()
}

// DOT renders the snapshot as an undirected Graphviz graph.
func (s Snapshot) DOT() string {
	var b strings.Builder
	b.WriteString("graph topology {\n")
	for _, v := range s.Vertices {
		fmt.Fprintf(&b, "  %q;\n", v)
	}
	for _, e := range s.Edges {
		fmt.Fprintf(&b, "  %q -- %q;\n", e.A, e.B)
	}
	b.WriteString("}\n")
	return b.String()
}
