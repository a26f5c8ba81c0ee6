// Package navigation senses what lies ahead of a vehicle and plans, classifies
// and repairs its route over a roadgraph.MapGraph.
package navigation

import (
	"errors"
	"fmt"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/roadgraph"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

var (
	// ErrUnknownNode is a routing error: a route or destination names a node the map does not have
	ErrUnknownNode = errors.New("unknown node")
	// ErrRouteNotFound means no path connects origin and destination
	ErrRouteNotFound = errors.New("route not found")
)

// Planner builds routes and waypoint paths from the map
type Planner struct {
	graph roadgraph.MapGraph
}

// NewPlanner creates a planner over graph
func NewPlanner(graph roadgraph.MapGraph) *Planner {
	return &Planner{graph: graph}
}

// Graph returns the map the planner reads
func (p *Planner) Graph() roadgraph.MapGraph {
	return p.graph
}

// Route returns the shortest route by length from origin to destination
func (p *Planner) Route(origin, destination int64) ([]int64, error) {
	route, err := p.graph.ShortestPath(origin, destination)
	if err != nil {
		return nil, classify(err)
	}
	if len(route) == 0 {
		return nil, fmt.Errorf("%d -> %d: %w", origin, destination, ErrRouteNotFound)
	}
	return route, nil
}

// Plan returns the route and its decompiled path
func (p *Planner) Plan(origin, destination int64) ([]int64, []models.Waypoint, error) {
	route, err := p.Route(origin, destination)
	if err != nil {
		return nil, nil, err
	}
	path, err := p.Decompile(route)
	if err != nil {
		return nil, nil, err
	}
	return route, path, nil
}

// Decompile turns a route into waypoints using each edge's geometry, or a
// straight segment between the nodes when the edge has none. Route nodes are
// tagged on their waypoints and consecutive duplicate points are dropped.
func (p *Planner) Decompile(route []int64) ([]models.Waypoint, error) {
	if len(route) == 0 {
		return nil, nil
	}
	first, err := p.graph.PositionOf(route[0])
	if err != nil {
		return nil, classify(err)
	}
	path := []models.Waypoint{nodeWaypoint(route[0], first)}

	for i := 1; i < len(route); i++ {
		u, v := route[i-1], route[i]
		pv, err := p.graph.PositionOf(v)
		if err != nil {
			return nil, classify(err)
		}
		edge, err := p.graph.EdgeData(u, v)
		if err != nil {
			return nil, classify(err)
		}
		// interior geometry points only; both ends are the nodes themselves
		for j := 1; j < len(edge.Geometry)-1; j++ {
			path = appendWaypoint(path, models.Waypoint{X: edge.Geometry[j].X(), Y: edge.Geometry[j].Y()})
		}
		path = appendWaypoint(path, nodeWaypoint(v, pv))
	}
	return path, nil
}

// Length sums the edge lengths along route
func (p *Planner) Length(route []int64) (float64, error) {
	var total float64
	for i := 1; i < len(route); i++ {
		edge, err := p.graph.EdgeData(route[i-1], route[i])
		if err != nil {
			return 0, classify(err)
		}
		total += edge.Length
	}
	return total, nil
}

// Positions resolves every node of route to its position
func (p *Planner) Positions(route []int64) ([]spatial.Point, error) {
	out := make([]spatial.Point, len(route))
	for i, n := range route {
		pos, err := p.graph.PositionOf(n)
		if err != nil {
			return nil, classify(err)
		}
		out[i] = pos
	}
	return out, nil
}

func nodeWaypoint(node int64, p spatial.Point) models.Waypoint {
	return models.Waypoint{X: p.X, Y: p.Y, Node: node, IsNode: true}
}

// appendWaypoint merges w into the last waypoint when they coincide, keeping
// the node tag if either carries one
func appendWaypoint(path []models.Waypoint, w models.Waypoint) []models.Waypoint {
	if n := len(path); n > 0 && path[n-1].X == w.X && path[n-1].Y == w.Y {
		if w.IsNode {
			path[n-1] = w
		}
		return path
	}
	return append(path, w)
}

// classify maps map errors onto the routing errors of this package
func classify(err error) error {
	switch {
	case errors.Is(err, roadgraph.ErrUnknownNode):
		return fmt.Errorf("%w: %v", ErrUnknownNode, err)
	case errors.Is(err, roadgraph.ErrNoPath), errors.Is(err, roadgraph.ErrNoEdge):
		return fmt.Errorf("%w: %v", ErrRouteNotFound, err)
	}
	return err
}
