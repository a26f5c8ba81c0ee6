// Package simulation drives the per-tick update of vehicles and traffic
// lights over an immutable road map.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/lights"
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/navigation"
	"github.com/jengzang/roadsim-backend-go/internal/roadgraph"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
	"github.com/jengzang/roadsim-backend-go/internal/speed"
)

// Generation is the complete state of a run at one tick. A generation is
// never modified once the engine has published it.
type Generation struct {
	Tick     int64                 `json:"tick"`
	Elapsed  float64               `json:"elapsed"`
	Vehicles []models.Vehicle      `json:"vehicles"`
	Lights   []models.TrafficLight `json:"lights"`
}

// Engine owns the current generation of one run
type Engine struct {
	cfg        config.Simulation
	graph      roadgraph.MapGraph
	grid       spatial.Grid
	tol        navigation.Tolerances
	planner    *navigation.Planner
	classifier *navigation.Classifier
	regulator  *speed.Regulator
	controller *lights.Controller

	stepMu sync.Mutex // serializes Step and mutations of the vehicle set
	mu     sync.RWMutex
	cur    Generation
}

// NewEngine creates an engine for graph. The bin grid is anchored at the
// lower-left corner of the map.
func NewEngine(graph roadgraph.MapGraph, cfg config.Simulation) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	positions := make([]spatial.Point, 0)
	for _, n := range graph.AllNodes() {
		p, err := graph.PositionOf(n)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	lowerLeft, _ := spatial.BoundingBox(positions)
	grid := spatial.NewGrid(lowerLeft, cfg.BinSize)

	planner := navigation.NewPlanner(graph)
	rerouter := navigation.NewRerouter(planner, cfg.RerouteMaxIterations)
	return &Engine{
		cfg:   cfg,
		graph: graph,
		grid:  grid,
		tol: navigation.Tolerances{
			Crossing: cfg.CrossingTolerance,
			Strip:    cfg.StripTolerance,
			Angle:    cfg.AngleTolerance,
		},
		planner:    planner,
		classifier: navigation.NewClassifier(planner, rerouter, grid, cfg.MaxCarsPerBin, cfg.StopDistance, cfg.SpeedLimit),
		regulator:  speed.NewRegulator(cfg),
		controller: lights.NewController(graph, grid, cfg.LightSwitchTime, cfg.AngleTolerance),
	}, nil
}

// Config returns the tuning the engine runs with
func (e *Engine) Config() config.Simulation {
	return e.cfg
}

// Graph returns the map of the run
func (e *Engine) Graph() roadgraph.MapGraph {
	return e.graph
}

// Grid returns the bin grid of the run
func (e *Engine) Grid() spatial.Grid {
	return e.grid
}

// Snapshot returns the current generation. Its slices are shared and must
// be treated as read-only.
func (e *Engine) Snapshot() Generation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cur
}

func (e *Engine) publish(g Generation) {
	e.mu.Lock()
	e.cur = g
	e.mu.Unlock()
}

// PlaceLights puts a light on each of nodes, or on every selected
// intersection when nodes is empty. Lights already placed are replaced.
func (e *Engine) PlaceLights(nodes []int64) ([]models.TrafficLight, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	var (
		placed []models.TrafficLight
		err    error
	)
	if len(nodes) > 0 {
		placed, err = e.controller.PlaceLightsAt(nodes)
	} else {
		placed, err = e.controller.PlaceLights(e.cfg.LightPrescale)
	}
	if err != nil {
		return nil, fmt.Errorf("place lights: %w", err)
	}
	next := e.Snapshot()
	next.Lights = placed
	e.publish(next)
	log.Printf("[Simulation] placed %d traffic lights", len(placed))
	return placed, nil
}

// AddVehicle plans a route from origin to destination and admits the vehicle
// on origin. A planning error leaves the vehicle set unchanged.
func (e *Engine) AddVehicle(origin, destination int64) (models.Vehicle, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	return e.addVehicle(origin, destination)
}

func (e *Engine) addVehicle(origin, destination int64) (models.Vehicle, error) {
	route, path, err := e.planner.Plan(origin, destination)
	if err != nil {
		return models.Vehicle{}, fmt.Errorf("vehicle %d -> %d: %w", origin, destination, err)
	}
	pos, err := e.graph.PositionOf(origin)
	if err != nil {
		return models.Vehicle{}, fmt.Errorf("vehicle %d -> %d: %w", origin, destination, err)
	}

	cur := e.Snapshot()
	eta, err := e.planner.ETA(route, navigation.NewRoadState(nil, cur.Lights), e.cfg.SpeedLimit)
	if err != nil {
		return models.Vehicle{}, fmt.Errorf("vehicle %d -> %d: %w", origin, destination, err)
	}

	v := models.Vehicle{
		ID:                 len(cur.Vehicles),
		Position:           pos,
		Route:              route,
		Path:               path,
		Origin:             origin,
		Destination:        destination,
		Bin:                e.grid.BinOf(pos),
		DistanceToCar:      models.NoObstacle,
		DistanceToRedLight: models.NoObstacle,
		SpeedFactor:        1,
		ETA:                eta,
		State:              models.CruisingClear,
	}

	next := cur
	next.Vehicles = make([]models.Vehicle, len(cur.Vehicles), len(cur.Vehicles)+1)
	copy(next.Vehicles, cur.Vehicles)
	next.Vehicles = append(next.Vehicles, v)
	e.publish(next)
	return v, nil
}

// CulDeSacs lists the nodes with exactly one distinct neighbour, counting
// roads in either direction, in map order
func CulDeSacs(graph roadgraph.MapGraph) ([]int64, error) {
	adjacent := make(map[int64]map[int64]struct{})
	link := func(a, b int64) {
		if adjacent[a] == nil {
			adjacent[a] = make(map[int64]struct{})
		}
		adjacent[a][b] = struct{}{}
	}
	for _, e := range graph.AllEdges() {
		link(e[0], e[1])
		link(e[1], e[0])
	}

	var out []int64
	for _, n := range graph.AllNodes() {
		if len(adjacent[n]) == 1 {
			out = append(out, n)
		}
	}
	return out, nil
}

// SpawnAtCulDeSacs admits n vehicles on cul-de-sacs heading for destination.
// Vehicles that cannot be routed are left out and their errors joined.
func (e *Engine) SpawnAtCulDeSacs(n int, destination int64) ([]models.Vehicle, error) {
	spawns, err := CulDeSacs(e.graph)
	if err != nil {
		return nil, err
	}
	candidates := make([]int64, 0, len(spawns))
	for _, s := range spawns {
		if s != destination {
			candidates = append(candidates, s)
		}
	}
	if n > len(candidates) {
		return nil, fmt.Errorf("%d vehicles requested, %d cul-de-sacs available: %w", n, len(candidates), ErrNotEnoughSpawnPoints)
	}

	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	var (
		admitted []models.Vehicle
		errs     []error
	)
	for _, origin := range candidates[:n] {
		v, err := e.addVehicle(origin, destination)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		admitted = append(admitted, v)
	}
	log.Printf("[Simulation] spawned %d/%d vehicles toward node %d", len(admitted), n, destination)
	return admitted, errors.Join(errs...)
}

// Step advances the run by one tick. Every vehicle and light of the new
// generation is computed from the current one only; the new generation is
// published once all of them are done.
func (e *Engine) Step(ctx context.Context) (Generation, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	prev := e.Snapshot()
	road := navigation.NewRoadState(prev.Vehicles, prev.Lights)
	next := Generation{
		Tick:     prev.Tick + 1,
		Elapsed:  prev.Elapsed + e.cfg.DT,
		Vehicles: make([]models.Vehicle, len(prev.Vehicles)),
		Lights:   make([]models.TrafficLight, len(prev.Lights)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i := range prev.Lights {
		g.Go(func() error {
			next.Lights[i] = e.controller.Update(&prev.Lights[i], next.Elapsed)
			return nil
		})
	}
	for i := range prev.Vehicles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			next.Vehicles[i] = e.updateVehicle(&prev.Vehicles[i], &prev, road)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return prev, err
	}

	e.publish(next)
	return next, nil
}

// Run steps n ticks, stopping early between ticks when ctx is done
func (e *Engine) Run(ctx context.Context, n int) (Generation, error) {
	gen := e.Snapshot()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return gen, err
		}
		var err error
		if gen, err = e.Step(ctx); err != nil {
			return gen, err
		}
	}
	return gen, nil
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
