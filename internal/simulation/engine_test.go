package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/navigation"
	"github.com/jengzang/roadsim-backend-go/internal/roadgraph"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
	"github.com/jengzang/roadsim-backend-go/internal/speed"
)

// newLine builds nodes 1..n along the x axis, 10m apart
func newLine(t *testing.T, n int64) *roadgraph.Graph {
	t.Helper()
	g := roadgraph.New()
	for i := int64(1); i <= n; i++ {
		g.AddNode(i, spatial.Point{X: float64(i-1) * 10})
	}
	for i := int64(1); i < n; i++ {
		require.NoError(t, g.AddRoad(i, i+1, 0, nil))
	}
	return g
}

func newEngine(t *testing.T, g roadgraph.MapGraph, tune func(*config.Simulation)) *Engine {
	t.Helper()
	cfg := config.DefaultSimulation()
	if tune != nil {
		tune(&cfg)
	}
	e, err := NewEngine(g, cfg)
	require.NoError(t, err)
	return e
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	_, err := NewEngine(newLine(t, 2), config.Simulation{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestStep_LightAheadSlowsVehicle(t *testing.T) {
	e := newEngine(t, newLine(t, 4), nil)
	placed, err := e.PlaceLights([]int64{3})
	require.NoError(t, err)
	require.Len(t, placed, 1)
	assert.Equal(t, []bool{false, false}, placed[0].GoValues())

	_, err = e.AddVehicle(1, 4)
	require.NoError(t, err)

	gen, err := e.Step(context.Background())
	require.NoError(t, err)
	v := gen.Vehicles[0]
	assert.Equal(t, models.LightAhead, v.State)
	assert.InDelta(t, 20, v.DistanceToRedLight, 1e-9)
	assert.Less(t, v.SpeedFactor, 1.0)
	assert.Greater(t, v.SpeedFactor, 0.0)

	unobstructed := e.Config().SpeedLimit * e.Config().DT
	assert.Less(t, v.Position.X, unobstructed)
	assert.Greater(t, v.Position.X, 0.0)
	assert.Equal(t, []int64{1, 2, 3, 4}, v.Route)
}

func TestStep_ArrivedVehicleStaysStopped(t *testing.T) {
	e := newEngine(t, newLine(t, 4), nil)
	_, err := e.AddVehicle(4, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		gen, err := e.Step(context.Background())
		require.NoError(t, err)
		v := gen.Vehicles[0]
		assert.Equal(t, models.Arrived, v.State)
		assert.Equal(t, spatial.Point{}, v.Velocity)
		assert.Equal(t, spatial.Point{X: 30}, v.Position)
	}
}

func TestStraightPath_CurvatureNeverSlows(t *testing.T) {
	reg := speed.NewRegulator(config.DefaultSimulation())
	points := []spatial.Point{{X: 0}, {X: 10}, {X: 20}, {X: 30}, {X: 40}, {X: 50}}
	angles := spatial.TurnAngles(points)
	require.Len(t, angles, 4)
	for i, theta := range angles {
		for _, d := range []float64{0, 0.5, 3, 10, 29, 100} {
			assert.Equal(t, 1.0, reg.RoadCurvatureFactor(theta, d), "segment %d at %.1fm", i, d)
		}
	}

	e := newEngine(t, newLine(t, 6), func(c *config.Simulation) { c.DT = 0.1 })
	_, err := e.AddVehicle(1, 6)
	require.NoError(t, err)

	var gen Generation
	for i := 0; i < 80; i++ {
		gen, err = e.Step(context.Background())
		require.NoError(t, err)
		if v := gen.Vehicles[0]; v.State != models.Arrived {
			assert.Equal(t, 1.0, v.SpeedFactor, "tick %d", gen.Tick)
		}
	}
	v := gen.Vehicles[0]
	assert.Equal(t, models.Arrived, v.State)
	assert.Equal(t, []int64{6}, v.Route)
	assert.Greater(t, v.RouteTime, 3.0, "about 47m at 15m/s")
}

func TestStep_VehicleTurnsCornerAndArrives(t *testing.T) {
	g := roadgraph.New()
	g.AddNode(1, spatial.Point{})
	g.AddNode(2, spatial.Point{X: 20})
	g.AddNode(3, spatial.Point{X: 20, Y: 20})
	require.NoError(t, g.AddRoad(1, 2, 0, nil))
	require.NoError(t, g.AddRoad(2, 3, 0, nil))
	e := newEngine(t, g, func(c *config.Simulation) { c.DT = 0.1 })
	_, err := e.AddVehicle(1, 3)
	require.NoError(t, err)

	var gen Generation
	slowest := 1.0
	for i := 0; i < 600; i++ {
		gen, err = e.Step(context.Background())
		require.NoError(t, err)
		v := gen.Vehicles[0]
		if v.State == models.Arrived {
			break
		}
		slowest = min(slowest, v.SpeedFactor)
	}
	v := gen.Vehicles[0]
	require.Equal(t, models.Arrived, v.State, "stuck at %v", v.Position)
	assert.InDelta(t, 20, v.Position.X, 1e-6)
	assert.InDelta(t, speed.CrawlFactor, slowest, 1e-9, "crawls into the bend")
	assert.Less(t, v.RouteTime, 60.0)
}

func TestStep_WaypointCrossingFiresOnce(t *testing.T) {
	e := newEngine(t, newLine(t, 3), func(c *config.Simulation) { c.DT = 0.5 })
	_, err := e.AddVehicle(1, 3)
	require.NoError(t, err)

	// 7.5m per tick: the second tick snaps onto node 2 instead of passing it
	gen, err := e.Run(context.Background(), 2)
	require.NoError(t, err)
	v := gen.Vehicles[0]
	assert.Equal(t, spatial.Point{X: 10}, v.Position)
	assert.Equal(t, []int64{1, 2, 3}, v.Route)

	gen, err = e.Step(context.Background())
	require.NoError(t, err)
	v = gen.Vehicles[0]
	assert.Equal(t, []int64{2, 3}, v.Route, "route advanced exactly once")
	assert.Len(t, v.Path, 1)
	assert.Greater(t, v.Position.X, 10.0)
}

func TestStep_LeavesPreviousGenerationUntouched(t *testing.T) {
	e := newEngine(t, newLine(t, 4), func(c *config.Simulation) { c.DT = 0.1 })
	_, err := e.AddVehicle(1, 4)
	require.NoError(t, err)
	_, err = e.PlaceLights([]int64{3})
	require.NoError(t, err)

	before := e.Snapshot()
	pos := before.Vehicles[0].Position
	path := len(before.Vehicles[0].Path)

	after, err := e.Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), after.Tick)
	assert.InDelta(t, 0.5, after.Elapsed, 1e-9)
	assert.Equal(t, pos, before.Vehicles[0].Position)
	assert.Len(t, before.Vehicles[0].Path, path)
	assert.NotEqual(t, pos, after.Vehicles[0].Position)
}

func TestStep_LightsFollowTheirCycle(t *testing.T) {
	e := newEngine(t, newLine(t, 4), func(c *config.Simulation) { c.DT = 16 })
	_, err := e.PlaceLights([]int64{3})
	require.NoError(t, err)

	gen, err := e.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, gen.Lights[0].GoValues())

	gen, err = e.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, gen.Lights[0].GoValues(), "32s wraps to 2s")
}

func TestStep_RoutingErrorFailsVehicle(t *testing.T) {
	e := newEngine(t, newLine(t, 4), nil)
	_, err := e.AddVehicle(1, 4)
	require.NoError(t, err)

	// a vehicle whose destination is not on the map
	bad := e.Snapshot()
	bad.Vehicles = append(bad.Vehicles, models.Vehicle{ID: 1, Route: []int64{1, 42}, Destination: 42})
	e.publish(bad)

	gen, err := e.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Failed, gen.Vehicles[1].State)
	assert.Contains(t, gen.Vehicles[1].Err, "unknown node")
	assert.NotEqual(t, models.Failed, gen.Vehicles[0].State, "other vehicles continue")

	gen, err = e.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Failed, gen.Vehicles[1].State)
	assert.Equal(t, spatial.Point{}, gen.Vehicles[1].Velocity)
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	e := newEngine(t, newLine(t, 4), nil)
	_, err := e.AddVehicle(1, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen, err := e.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, gen.Tick)
	assert.Zero(t, e.Snapshot().Tick)
}

func TestAddVehicle_PlanningErrors(t *testing.T) {
	g := newLine(t, 4)
	g.AddNode(9, spatial.Point{X: 100})
	e := newEngine(t, g, nil)

	_, err := e.AddVehicle(1, 42)
	assert.ErrorIs(t, err, navigation.ErrUnknownNode)
	_, err = e.AddVehicle(1, 9)
	assert.ErrorIs(t, err, navigation.ErrRouteNotFound)
	assert.Empty(t, e.Snapshot().Vehicles, "never admitted")

	v, err := e.AddVehicle(1, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, v.ID)
	assert.InDelta(t, 2, v.ETA, 1e-9)
	assert.Equal(t, models.NoObstacle, v.DistanceToCar)
}

func TestSpawnAtCulDeSacs(t *testing.T) {
	g := newLine(t, 4)
	e := newEngine(t, g, nil)

	spawns, err := CulDeSacs(g)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, spawns)

	_, err = e.SpawnAtCulDeSacs(2, 4)
	assert.ErrorIs(t, err, ErrNotEnoughSpawnPoints)
	assert.Empty(t, e.Snapshot().Vehicles)

	admitted, err := e.SpawnAtCulDeSacs(1, 4)
	require.NoError(t, err)
	require.Len(t, admitted, 1)
	assert.Equal(t, int64(1), admitted[0].Origin)
}

func TestCulDeSacs_CountsBothDirections(t *testing.T) {
	g := roadgraph.New()
	g.AddNode(1, spatial.Point{})
	g.AddNode(2, spatial.Point{X: 10})
	g.AddNode(3, spatial.Point{X: 20})
	g.AddNode(4, spatial.Point{X: 10, Y: 10})
	// one-way 1->2 and 4->2, two-way 2-3
	require.NoError(t, g.AddEdge(1, 2, 0, nil))
	require.NoError(t, g.AddEdge(4, 2, 0, nil))
	require.NoError(t, g.AddRoad(2, 3, 0, nil))
	// a parallel road is still one neighbour
	require.NoError(t, g.AddEdge(2, 3, 25, nil))

	spawns, err := CulDeSacs(g)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, spawns, "node 2 has three neighbours")
}

func TestSpawnAtCulDeSacs_JoinsRoutingErrors(t *testing.T) {
	g := newLine(t, 4)
	g.AddNode(9, spatial.Point{X: 100})
	g.AddNode(10, spatial.Point{X: 110})
	require.NoError(t, g.AddRoad(9, 10, 0, nil))
	e := newEngine(t, g, nil)

	admitted, err := e.SpawnAtCulDeSacs(3, 4)
	assert.ErrorIs(t, err, navigation.ErrRouteNotFound)
	require.Len(t, admitted, 1)
	assert.Equal(t, int64(1), admitted[0].Origin)
	assert.Len(t, e.Snapshot().Vehicles, 1)
}

func TestStep_ParallelWorkersAgree(t *testing.T) {
	run := func(workers int) Generation {
		g := newLine(t, 6)
		g.AddNode(7, spatial.Point{X: 20, Y: 10})
		require.NoError(t, g.AddRoad(3, 7, 0, nil))
		e := newEngine(t, g, func(c *config.Simulation) {
			c.DT = 0.05
			c.Workers = workers
		})
		for _, origin := range []int64{1, 7, 2} {
			_, err := e.AddVehicle(origin, 6)
			require.NoError(t, err)
		}
		gen, err := e.Run(context.Background(), 40)
		require.NoError(t, err)
		return gen
	}
	assert.Equal(t, run(1).Vehicles, run(4).Vehicles)
}
