// Package lights places traffic lights on intersections, derives the road
// faces each light controls, and runs their fixed phase cycle.
package lights

import (
	"fmt"
	"math"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/roadgraph"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// Controller builds and advances traffic lights for one map
type Controller struct {
	graph          roadgraph.MapGraph
	grid           spatial.Grid
	switchTime     float64
	angleTolerance float64
}

// NewController creates a controller; every light it builds cycles in switchTime seconds
func NewController(graph roadgraph.MapGraph, grid spatial.Grid, switchTime, angleTolerance float64) *Controller {
	return &Controller{
		graph:          graph,
		grid:           grid,
		switchTime:     switchTime,
		angleTolerance: angleTolerance,
	}
}

// SelectIntersections returns the nodes eligible for a light: degree above 3,
// keeping only every prescale-th node of the map's node order.
func SelectIntersections(graph roadgraph.MapGraph, prescale int) ([]int64, error) {
	if prescale < 1 {
		prescale = 1
	}
	var out []int64
	for i, node := range graph.AllNodes() {
		if i%prescale != 0 {
			continue
		}
		degree, err := graph.Degree(node)
		if err != nil {
			return nil, err
		}
		if degree > 3 {
			out = append(out, node)
		}
	}
	return out, nil
}

// Pedigree returns one face per road meeting at node. Each direction points
// from the intersection to the nearest point of that road. Roads without a
// resolvable direction are left out.
func Pedigree(graph roadgraph.MapGraph, node int64) ([]models.Face, error) {
	origin, err := graph.PositionOf(node)
	if err != nil {
		return nil, err
	}

	// u→v and v→u are one road
	var others []int64
	seen := make(map[int64]bool)
	for _, e := range graph.AllEdges() {
		var other int64
		switch node {
		case e[0]:
			other = e[1]
		case e[1]:
			other = e[0]
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			others = append(others, other)
		}
	}

	faces := make([]models.Face, 0, len(others))
	for _, other := range others {
		point, ok := nearestRoadPoint(graph, node, other)
		if !ok {
			continue
		}
		dir := point.Sub(origin)
		if spatial.Magnitude(dir) == 0 {
			continue
		}
		faces = append(faces, models.Face{Direction: dir, Go: true})
	}
	return faces, nil
}

// nearestRoadPoint returns the first point past node on the road node–other
func nearestRoadPoint(graph roadgraph.MapGraph, node, other int64) (spatial.Point, bool) {
	if edge, err := graph.EdgeData(node, other); err == nil {
		if len(edge.Geometry) >= 2 {
			return spatial.FromOrb(edge.Geometry[1]), true
		}
		p, err := graph.PositionOf(other)
		return p, err == nil
	}
	if edge, err := graph.EdgeData(other, node); err == nil {
		if n := len(edge.Geometry); n >= 2 {
			return spatial.FromOrb(edge.Geometry[n-2]), true
		}
		p, err := graph.PositionOf(other)
		return p, err == nil
	}
	return spatial.Point{}, false
}

// NewLight builds the light for node with its pedigree and schedule, set to
// the first phase of the cycle
func (c *Controller) NewLight(id int, node int64) (models.TrafficLight, error) {
	pos, err := c.graph.PositionOf(node)
	if err != nil {
		return models.TrafficLight{}, fmt.Errorf("light %d: %w", id, err)
	}
	faces, err := Pedigree(c.graph, node)
	if err != nil {
		return models.TrafficLight{}, fmt.Errorf("light %d: %w", id, err)
	}
	light := models.TrafficLight{
		ID:         id,
		Node:       node,
		Position:   pos,
		Degree:     len(faces),
		Pedigree:   faces,
		SwitchTime: c.switchTime,
		Bin:        c.grid.BinOf(pos),
		Schedule:   BuildSchedule(faces, c.switchTime, c.angleTolerance),
	}
	applyPhase(&light, 0)
	return light, nil
}

// PlaceLights creates a light on every selected intersection
func (c *Controller) PlaceLights(prescale int) ([]models.TrafficLight, error) {
	nodes, err := SelectIntersections(c.graph, prescale)
	if err != nil {
		return nil, err
	}
	return c.PlaceLightsAt(nodes)
}

// Update returns light as it stands at elapsed seconds. The argument is not
// modified.
func (c *Controller) Update(light *models.TrafficLight, elapsed float64) models.TrafficLight {
	next := light.Clone()
	if len(next.Schedule) == 0 || next.SwitchTime <= 0 {
		return next
	}
	applyPhase(&next, PhaseAt(next.Schedule, math.Mod(elapsed, next.SwitchTime)))
	return next
}

func applyPhase(light *models.TrafficLight, phase int) {
	if phase < 0 || phase >= len(light.Schedule) {
		return
	}
	light.Phase = phase
	for i, g := range light.Schedule[phase].Go {
		if i < len(light.Pedigree) {
			light.Pedigree[i].Go = g
		}
	}
}

// PlaceLightsAt creates a light on each of the given nodes, in order
func (c *Controller) PlaceLightsAt(nodes []int64) ([]models.TrafficLight, error) {
	out := make([]models.TrafficLight, 0, len(nodes))
	for i, node := range nodes {
		light, err := c.NewLight(i, node)
		if err != nil {
			return nil, err
		}
		out = append(out, light)
	}
	return out, nil
}
