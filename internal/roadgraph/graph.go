// Package roadgraph exposes the read-only road network queries the simulation
// core depends on, and an in-memory implementation backed by gonum.
package roadgraph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

var (
	// ErrUnknownNode is returned for node ids that are not in the graph
	ErrUnknownNode = errors.New("unknown node")
	// ErrNoEdge is returned when two nodes are not directly connected
	ErrNoEdge = errors.New("no edge between nodes")
	// ErrNoPath is returned when the destination is unreachable
	ErrNoPath = errors.New("no path between nodes")
)

// EdgeData describes the shortest of the parallel edges u→v
type EdgeData struct {
	Length   float64
	Geometry orb.LineString // empty when the road is a straight node-to-node segment
}

// MapGraph is the road network as seen by the simulation core. Implementations
// must be safe for concurrent reads and must return owned slices.
type MapGraph interface {
	PositionOf(node int64) (spatial.Point, error)
	ShortestPath(origin, destination int64) ([]int64, error)
	EdgeData(u, v int64) (EdgeData, error)
	Neighbors(node int64) ([]int64, error)
	Degree(node int64) (int, error)
	AllNodes() []int64
	AllEdges() [][2]int64
}

type edgeKey struct{ u, v int64 }

// Graph is a directed multigraph of road segments. It is built once with
// AddNode/AddEdge and must not be mutated after it is shared.
type Graph struct {
	g         *simple.WeightedDirectedGraph
	positions map[int64]spatial.Point
	edges     map[edgeKey][]EdgeData // parallel edges
	order     []int64                // insertion order of nodes
	edgeOrder []edgeKey
}

// New returns an empty graph
func New() *Graph {
	return &Graph{
		g:         simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		positions: make(map[int64]spatial.Point),
		edges:     make(map[edgeKey][]EdgeData),
	}
}

// AddNode inserts or moves a node
func (g *Graph) AddNode(id int64, pos spatial.Point) {
	if _, ok := g.positions[id]; !ok {
		g.order = append(g.order, id)
	}
	g.positions[id] = pos
	if g.g.Node(id) == nil {
		g.g.AddNode(simple.Node(id))
	}
}

// AddEdge inserts a directed edge u→v. A non-positive length is replaced by
// the geometry length, or the straight distance between the nodes.
func (g *Graph) AddEdge(u, v int64, length float64, geometry orb.LineString) error {
	pu, ok := g.positions[u]
	if !ok {
		return fmt.Errorf("edge %d->%d: %w %d", u, v, ErrUnknownNode, u)
	}
	pv, ok := g.positions[v]
	if !ok {
		return fmt.Errorf("edge %d->%d: %w %d", u, v, ErrUnknownNode, v)
	}
	if u == v {
		return fmt.Errorf("edge %d->%d: self loops are not roads", u, v)
	}
	if length <= 0 {
		length = EdgeLength(pu, pv, geometry)
	}

	key := edgeKey{u, v}
	if _, seen := g.edges[key]; !seen {
		g.edgeOrder = append(g.edgeOrder, key)
	}
	g.edges[key] = append(g.edges[key], EdgeData{Length: length, Geometry: geometry})

	// the routing graph keeps only the shortest parallel edge
	if e := g.g.WeightedEdge(u, v); e == nil || length < e.Weight() {
		g.g.SetWeightedEdge(g.g.NewWeightedEdge(simple.Node(u), simple.Node(v), length))
	}
	return nil
}

// EdgeLength is the length of the road from pu to pv: along geometry when it
// has at least two points, otherwise the straight distance
func EdgeLength(pu, pv spatial.Point, geometry orb.LineString) float64 {
	if len(geometry) < 2 {
		return spatial.Distance(pu, pv)
	}
	pts := make([]spatial.Point, len(geometry))
	for i, p := range geometry {
		pts[i] = spatial.FromOrb(p)
	}
	return spatial.PathLength(pts)
}

// AddRoad inserts u→v and v→u with the same geometry, reversed for v→u
func (g *Graph) AddRoad(u, v int64, length float64, geometry orb.LineString) error {
	if err := g.AddEdge(u, v, length, geometry); err != nil {
		return err
	}
	var reversed orb.LineString
	if len(geometry) > 0 {
		reversed = geometry.Clone()
		reversed.Reverse()
	}
	return g.AddEdge(v, u, length, reversed)
}

// PositionOf returns the planar position of a node
func (g *Graph) PositionOf(node int64) (spatial.Point, error) {
	p, ok := g.positions[node]
	if !ok {
		return spatial.Point{}, fmt.Errorf("%w %d", ErrUnknownNode, node)
	}
	return p, nil
}

// ShortestPath returns the node sequence of the shortest route by length
func (g *Graph) ShortestPath(origin, destination int64) ([]int64, error) {
	if _, ok := g.positions[origin]; !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownNode, origin)
	}
	if _, ok := g.positions[destination]; !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownNode, destination)
	}
	if origin == destination {
		return []int64{origin}, nil
	}

	shortest := path.DijkstraFrom(simple.Node(origin), g.g)
	nodes, weight := shortest.To(destination)
	if len(nodes) == 0 || math.IsInf(weight, 1) {
		return nil, fmt.Errorf("%d -> %d: %w", origin, destination, ErrNoPath)
	}

	route := make([]int64, len(nodes))
	for i, n := range nodes {
		route[i] = n.ID()
	}
	return route, nil
}

// EdgeData returns the shortest of the parallel edges u→v
func (g *Graph) EdgeData(u, v int64) (EdgeData, error) {
	parallel := g.edges[edgeKey{u, v}]
	if len(parallel) == 0 {
		return EdgeData{}, fmt.Errorf("%d -> %d: %w", u, v, ErrNoEdge)
	}
	best := parallel[0]
	for _, e := range parallel[1:] {
		if e.Length < best.Length {
			best = e
		}
	}
	return best, nil
}

// Neighbors returns the successors of node sorted by id
func (g *Graph) Neighbors(node int64) ([]int64, error) {
	if _, ok := g.positions[node]; !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownNode, node)
	}
	it := g.g.From(node)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Degree counts incoming and outgoing edges of node, parallel edges included
func (g *Graph) Degree(node int64) (int, error) {
	if _, ok := g.positions[node]; !ok {
		return 0, fmt.Errorf("%w %d", ErrUnknownNode, node)
	}
	degree := 0
	for _, key := range g.edgeOrder {
		if key.u == node || key.v == node {
			degree += len(g.edges[key])
		}
	}
	return degree, nil
}

// AllNodes returns node ids in insertion order
func (g *Graph) AllNodes() []int64 {
	out := make([]int64, len(g.order))
	copy(out, g.order)
	return out
}

// AllEdges returns each connected (u, v) pair once, in insertion order
func (g *Graph) AllEdges() [][2]int64 {
	out := make([][2]int64, len(g.edgeOrder))
	for i, key := range g.edgeOrder {
		out[i] = [2]int64{key.u, key.v}
	}
	return out
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of directed edges, parallel edges included
func (g *Graph) EdgeCount() int {
	n := 0
	for _, parallel := range g.edges {
		n += len(parallel)
	}
	return n
}
