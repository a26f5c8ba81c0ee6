package navigation

import (
	"errors"
	"fmt"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// RoadState is the read-only view of the previous generation that route
// decisions are based on
type RoadState struct {
	LightsByNode  map[int64]*models.TrafficLight
	BinPopulation map[spatial.Bin]int
}

// NewRoadState indexes lights by node and counts active vehicles per bin
func NewRoadState(vehicles []models.Vehicle, lights []models.TrafficLight) *RoadState {
	rs := &RoadState{
		LightsByNode:  make(map[int64]*models.TrafficLight, len(lights)),
		BinPopulation: make(map[spatial.Bin]int),
	}
	for i := range lights {
		rs.LightsByNode[lights[i].Node] = &lights[i]
	}
	for i := range vehicles {
		if vehicles[i].Active() {
			rs.BinPopulation[vehicles[i].Bin]++
		}
	}
	return rs
}

// Classifier decides each tick which journey state a vehicle is in and
// re-routes it around lights when it can
type Classifier struct {
	planner       *Planner
	rerouter      *Rerouter
	grid          spatial.Grid
	maxCarsPerBin int
	stopDistance  float64
	speedLimit    float64
}

// NewClassifier wires the route manager
func NewClassifier(planner *Planner, rerouter *Rerouter, grid spatial.Grid, maxCarsPerBin int, stopDistance, speedLimit float64) *Classifier {
	return &Classifier{
		planner:       planner,
		rerouter:      rerouter,
		grid:          grid,
		maxCarsPerBin: maxCarsPerBin,
		stopDistance:  stopDistance,
		speedLimit:    speedLimit,
	}
}

type lightOnRoute struct {
	index int
	light *models.TrafficLight
}

// Classify evaluates v against the road state. v may be modified: a
// successful re-route replaces its route, path and ETA, and arrival trims them.
// A returned error is a routing error and comes with models.Failed.
func (c *Classifier) Classify(v *models.Vehicle, fv *FrontView, road *RoadState) (models.JourneyState, error) {
	if len(v.Route) == 0 {
		return models.Failed, fmt.Errorf("vehicle %d has an empty route: %w", v.ID, ErrUnknownNode)
	}

	if v.Route[0] == v.Destination {
		return models.Arrived, nil
	}
	if len(v.Route) <= 2 && fv.EndOfRoute(c.stopDistance) {
		v.Route = []int64{v.Destination}
		v.Path = nil
		return models.Arrived, nil
	}

	if lights := lightsOnRoute(v.Route, road); len(lights) > 0 {
		return c.handleLights(v, lights, road)
	}

	congested, err := c.congested(v.Route, road)
	if err != nil {
		return models.Failed, err
	}
	if congested {
		return models.CongestionAhead, nil
	}

	if v.Rerouted {
		return models.CruisingClearAlt, nil
	}
	return models.CruisingClear, nil
}

func (c *Classifier) handleLights(v *models.Vehicle, lights []lightOnRoute, road *RoadState) (models.JourneyState, error) {
	// the longest switch time among lights not yet attempted; the first one
	// along the route wins ties
	var target *lightOnRoute
	for i := range lights {
		l := &lights[i]
		if l.index < 2 || v.HasAvoided(l.light.Node) {
			continue
		}
		if target == nil || l.light.SwitchTime > target.light.SwitchTime {
			target = l
		}
	}

	if target == nil {
		for _, l := range lights {
			if v.BlockedBy(l.light.Node) {
				return models.Blocked, nil
			}
		}
		return models.LightAhead, nil
	}

	v.AvoidedLights = append(v.AvoidedLights, target.light.Node)
	departure := target.index - 1
	newRoute, err := c.rerouter.Reroute(v.Route, departure)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoAlternative):
		return models.LightAhead, nil
	case errors.Is(err, ErrRerouteFailed):
		v.BlockedLights = append(v.BlockedLights, target.light.Node)
		return models.Blocked, nil
	default:
		return models.Failed, err
	}

	newPath, err := c.planner.SplicePath(v.Path, newRoute, v.Route[departure])
	if err != nil {
		if errors.Is(err, ErrRerouteFailed) {
			v.BlockedLights = append(v.BlockedLights, target.light.Node)
			return models.Blocked, nil
		}
		return models.Failed, err
	}
	eta, err := c.planner.ETA(newRoute, road, c.speedLimit)
	if err != nil {
		return models.Failed, err
	}
	v.Route = newRoute
	v.Path = newPath
	v.ETA = eta
	v.Rerouted = true
	return models.Rerouting, nil
}

// lightsOnRoute lists the lights on the nodes ahead of route[0]
func lightsOnRoute(route []int64, road *RoadState) []lightOnRoute {
	var out []lightOnRoute
	for i := 1; i < len(route); i++ {
		if l, ok := road.LightsByNode[route[i]]; ok {
			out = append(out, lightOnRoute{index: i, light: l})
		}
	}
	return out
}

// congested reports whether any bin the remaining route passes through holds
// more than maxCarsPerBin vehicles
func (c *Classifier) congested(route []int64, road *RoadState) (bool, error) {
	if c.maxCarsPerBin <= 0 || len(road.BinPopulation) == 0 {
		return false, nil
	}
	positions, err := c.planner.Positions(route)
	if err != nil {
		return false, err
	}
	for _, bin := range c.grid.BinsAlong(positions) {
		if road.BinPopulation[bin] > c.maxCarsPerBin {
			return true, nil
		}
	}
	return false, nil
}
