package navigation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/roadgraph"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

var testTolerances = Tolerances{Crossing: 1e-6, Strip: 1.5, Angle: 0.05}

// newLine builds A(1) - B(2) - C(3) - D(4) along the x axis, 10m apart
func newLine(t *testing.T) *roadgraph.Graph {
	t.Helper()
	g := roadgraph.New()
	for i := int64(1); i <= 4; i++ {
		g.AddNode(i, spatial.Point{X: float64(i-1) * 10})
	}
	for i := int64(1); i < 4; i++ {
		require.NoError(t, g.AddRoad(i, i+1, 0, nil))
	}
	return g
}

// newLoop adds the bypass 2 - 5 - 6 - 4 above the line
func newLoop(t *testing.T) *roadgraph.Graph {
	t.Helper()
	g := newLine(t)
	g.AddNode(5, spatial.Point{X: 10, Y: 10})
	g.AddNode(6, spatial.Point{X: 20, Y: 10})
	require.NoError(t, g.AddRoad(2, 5, 0, nil))
	require.NoError(t, g.AddRoad(5, 6, 0, nil))
	require.NoError(t, g.AddRoad(6, 4, 0, nil))
	return g
}

// newCulDeSac adds 2 - 5 - 6 - 7 above the line, which never rejoins it
func newCulDeSac(t *testing.T) *roadgraph.Graph {
	t.Helper()
	g := newLine(t)
	g.AddNode(5, spatial.Point{X: 10, Y: 10})
	g.AddNode(6, spatial.Point{X: 20, Y: 10})
	g.AddNode(7, spatial.Point{X: 20, Y: 20})
	require.NoError(t, g.AddRoad(2, 5, 0, nil))
	require.NoError(t, g.AddRoad(5, 6, 0, nil))
	require.NoError(t, g.AddRoad(6, 7, 0, nil))
	return g
}

// newVehicle plans a vehicle from origin to destination, placed on origin
func newVehicle(t *testing.T, p *Planner, id int, origin, destination int64) *models.Vehicle {
	t.Helper()
	route, path, err := p.Plan(origin, destination)
	require.NoError(t, err)
	pos, err := p.Graph().PositionOf(origin)
	require.NoError(t, err)
	return &models.Vehicle{
		ID:          id,
		Position:    pos,
		Route:       route,
		Path:        path,
		Origin:      origin,
		Destination: destination,
	}
}

func frontViewOf(t *testing.T, p *Planner, v *models.Vehicle) *FrontView {
	t.Helper()
	dest, err := p.Graph().PositionOf(v.Destination)
	require.NoError(t, err)
	return NewFrontView(v, 3, dest, testTolerances)
}

func redLightAt(t *testing.T, g *roadgraph.Graph, node int64, switchTime float64) models.TrafficLight {
	t.Helper()
	pos, err := g.PositionOf(node)
	require.NoError(t, err)
	neighbors, err := g.Neighbors(node)
	require.NoError(t, err)
	light := models.TrafficLight{Node: node, Position: pos, SwitchTime: switchTime}
	for _, n := range neighbors {
		np, err := g.PositionOf(n)
		require.NoError(t, err)
		light.Pedigree = append(light.Pedigree, models.Face{Direction: np.Sub(pos)})
	}
	light.Degree = len(light.Pedigree)
	return light
}
