package simulation

import (
	log "github.com/sirupsen/logrus"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/navigation"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
	"github.com/jengzang/roadsim-backend-go/internal/speed"
)

// updateVehicle computes the next-generation record of prev. prev and gen
// are read-only.
func (e *Engine) updateVehicle(prev *models.Vehicle, gen *Generation, road *navigation.RoadState) models.Vehicle {
	v := prev.Clone()
	if v.State.Terminal() {
		v.Stop()
		return v
	}

	dest, err := e.graph.PositionOf(v.Destination)
	if err != nil {
		return e.fail(v, err)
	}
	fv := navigation.NewFrontView(&v, e.cfg.LookAheadNodes, dest, e.tol)
	if fv.CrossedNodeEvent() {
		v.AdvanceWaypoint()
	}

	// classification sees the path after the crossing and may rewrite it
	fv = navigation.NewFrontView(&v, e.cfg.LookAheadNodes, dest, e.tol)
	state, err := e.classifier.Classify(&v, fv, road)
	if err != nil {
		return e.fail(v, err)
	}
	if state == models.Blocked && prev.State != models.Blocked {
		log.Debugf("[Simulation] vehicle %d blocked, keeping route %v", v.ID, v.Route)
	}
	v.State = state
	if state == models.Arrived {
		v.Stop()
		v.DistanceToNode = 0
		v.DistanceToCar = models.NoObstacle
		v.DistanceToRedLight = models.NoObstacle
		return v
	}

	fv = navigation.NewFrontView(&v, e.cfg.LookAheadNodes, dest, e.tol)
	v.DistanceToNode = fv.DistanceToNode()
	v.DistanceToCar = fv.CarObstacles(gen.Vehicles)
	v.DistanceToRedLight = fv.LightObstacles(gen.Lights)

	theta, dTurn := fv.TurnAngle()
	v.SpeedFactor = e.regulator.Factor(theta, dTurn, speed.NearestObstacle(v.DistanceToCar, v.DistanceToRedLight))

	target := fv.UpcomingNodePosition()
	v.Velocity = e.regulator.Velocity(v.Position, target, v.SpeedFactor)

	// never overshoot a waypoint, so the crossing fires on the next tick
	step := v.Velocity.Mul(e.cfg.DT)
	if spatial.Magnitude(step) >= v.DistanceToNode {
		v.Position = target
	} else {
		v.Position = v.Position.Add(step)
	}
	v.Bin = e.grid.BinOf(v.Position)
	v.RouteTime += e.cfg.DT
	return v
}

// fail takes v out of the simulation after a routing error
func (e *Engine) fail(v models.Vehicle, err error) models.Vehicle {
	log.Debugf("[Simulation] vehicle %d failed: %v", v.ID, err)
	v.State = models.Failed
	v.Err = err.Error()
	v.Stop()
	return v
}
