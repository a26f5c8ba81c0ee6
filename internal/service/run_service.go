package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/repository"
	"github.com/jengzang/roadsim-backend-go/internal/roadgraph"
	"github.com/jengzang/roadsim-backend-go/internal/simulation"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
	"github.com/jengzang/roadsim-backend-go/internal/stats"
)

// DefaultStepTicks is used when a step request does not name a tick count
const DefaultStepTicks = 1

type activeRun struct {
	run    models.Run
	engine *simulation.Engine
	feed   *feed
}

// RunService owns the active simulation runs
type RunService struct {
	repo     *repository.RunRepository
	networks *NetworkService
	defaults config.Simulation

	mu     sync.RWMutex
	active map[string]*activeRun
}

// NewRunService creates a new run service; defaults seed every run's tuning
func NewRunService(repo *repository.RunRepository, networks *NetworkService, defaults config.Simulation) *RunService {
	return &RunService{
		repo:     repo,
		networks: networks,
		defaults: defaults,
		active:   make(map[string]*activeRun),
	}
}

// Create starts a run: places lights, spawns vehicles on cul-de-sacs and
// stores the initial generation
func (s *RunService) Create(req models.CreateRunRequest) (*models.RunSnapshot, error) {
	graph, err := s.networks.Graph(req.NetworkID)
	if err != nil {
		return nil, err
	}

	cfg := s.defaults
	if req.SpeedLimit > 0 {
		cfg.SpeedLimit = req.SpeedLimit
	}
	if req.DT > 0 {
		cfg.DT = req.DT
	}
	engine, err := simulation.NewEngine(graph, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := engine.PlaceLights(req.Lights); err != nil {
		return nil, err
	}

	destination := req.Destination
	if destination == 0 {
		if destination, err = defaultDestination(graph); err != nil {
			return nil, err
		}
	}
	admitted, err := engine.SpawnAtCulDeSacs(req.Vehicles, destination)
	if err != nil {
		if len(admitted) == 0 {
			return nil, err
		}
		log.Warnf("[RunService] %d of %d vehicles not admitted: %v", req.Vehicles-len(admitted), req.Vehicles, err)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	gen := engine.Snapshot()
	run := models.Run{
		ID:           uuid.NewString(),
		NetworkID:    req.NetworkID,
		ConfigJSON:   string(cfgJSON),
		VehicleCount: len(gen.Vehicles),
		LightCount:   len(gen.Lights),
	}
	if err := s.repo.Create(&run); err != nil {
		return nil, err
	}
	if err := s.repo.SaveGeneration(run.ID, gen.Tick, gen.Elapsed, gen.Vehicles, gen.Lights); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active[run.ID] = &activeRun{run: run, engine: engine, feed: newFeed()}
	s.mu.Unlock()

	log.Printf("[RunService] run %s on network %d: %d vehicles to node %d, %d lights",
		run.ID, run.NetworkID, len(gen.Vehicles), destination, len(gen.Lights))
	return snapshotOf(run.ID, gen), nil
}

// Step advances a run by ticks, stores the final generation and pushes it
// to the run's subscribers
func (s *RunService) Step(ctx context.Context, id string, ticks int) (*models.RunSnapshot, error) {
	ar, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if ticks < 1 {
		ticks = DefaultStepTicks
	}

	gen, err := ar.engine.Run(ctx, ticks)
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	if saveErr := s.repo.SaveGeneration(id, gen.Tick, gen.Elapsed, gen.Vehicles, gen.Lights); saveErr != nil {
		return nil, saveErr
	}

	snap := snapshotOf(id, gen)
	ar.feed.publish(snap)
	return snap, err
}

// Snapshot returns the current generation of a run
func (s *RunService) Snapshot(id string) (*models.RunSnapshot, error) {
	ar, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return snapshotOf(id, ar.engine.Snapshot()), nil
}

// Stats summarizes the current generation of a run
func (s *RunService) Stats(id string) (*models.RunStats, error) {
	ar, err := s.get(id)
	if err != nil {
		return nil, err
	}
	gen := ar.engine.Snapshot()
	out := stats.Summarize(id, gen.Tick, gen.Vehicles)
	return &out, nil
}

// Subscribe returns a channel receiving the snapshot after every step of the
// run, and a function ending the subscription
func (s *RunService) Subscribe(id string) (<-chan *models.RunSnapshot, func(), error) {
	ar, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := ar.feed.subscribe()
	return ch, cancel, nil
}

// Delete stops tracking a run and removes its stored state
func (s *RunService) Delete(id string) error {
	s.mu.Lock()
	ar, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	ar.feed.close()
	return s.repo.Delete(id)
}

func (s *RunService) get(id string) (*activeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ar, ok := s.active[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return ar, nil
}

func snapshotOf(id string, gen simulation.Generation) *models.RunSnapshot {
	return &models.RunSnapshot{
		RunID:    id,
		Tick:     gen.Tick,
		Elapsed:  gen.Elapsed,
		Vehicles: gen.Vehicles,
		Lights:   gen.Lights,
	}
}

// defaultDestination picks the node farthest from the first cul-de-sac
func defaultDestination(graph roadgraph.MapGraph) (int64, error) {
	spawns, err := simulation.CulDeSacs(graph)
	if err != nil {
		return 0, err
	}
	if len(spawns) == 0 {
		return 0, fmt.Errorf("network has no cul-de-sacs: %w", simulation.ErrNotEnoughSpawnPoints)
	}
	origin, err := graph.PositionOf(spawns[0])
	if err != nil {
		return 0, err
	}

	best, bestDist := spawns[0], -1.0
	for _, n := range graph.AllNodes() {
		p, err := graph.PositionOf(n)
		if err != nil {
			return 0, err
		}
		if d := spatial.Distance(origin, p); d > bestDist {
			best, bestDist = n, d
		}
	}
	return best, nil
}
