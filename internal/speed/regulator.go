// Package speed turns road curvature and obstacle distances into a scalar
// speed factor in [0, 1].
package speed

import (
	"math"

	"github.com/samber/lo"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// CrawlFactor floors the curvature factor so the ramp, which reaches zero
// 2θ/π short of the bend, still lets the vehicle get there.
const CrawlFactor = 0.05

// Regulator applies the speed model for one configuration
type Regulator struct {
	SpeedLimit     float64
	StopDistance   float64
	FreeDistance   float64
	AngleTolerance float64
}

// NewRegulator creates a regulator from the simulation config
func NewRegulator(cfg config.Simulation) *Regulator {
	return &Regulator{
		SpeedLimit:     cfg.SpeedLimit,
		StopDistance:   cfg.StopDistance,
		FreeDistance:   cfg.FreeDistance,
		AngleTolerance: cfg.AngleTolerance,
	}
}

// RoadCurvatureFactor dampens speed ahead of a bend of angle theta (radians)
// at distance d. Straight roads and distant bends do not slow the vehicle.
func (r *Regulator) RoadCurvatureFactor(theta, d float64) float64 {
	if theta <= r.AngleTolerance {
		return 1
	}
	if d <= 0 || d >= r.FreeDistance {
		return 1
	}
	scale := 2 * theta / math.Pi
	factor := math.Log(d/scale) / math.Log(r.FreeDistance/scale)
	if math.IsNaN(factor) {
		return CrawlFactor
	}
	return lo.Clamp(factor, CrawlFactor, 1)
}

// CarObstacleFactor dampens speed for an obstacle at distance d. A negative
// distance means nothing is in view.
func (r *Regulator) CarObstacleFactor(d float64) float64 {
	if d < 0 || d >= r.FreeDistance {
		return 1
	}
	if d < r.StopDistance {
		return 0
	}
	factor := math.Log(d/r.StopDistance) / math.Log(r.FreeDistance/r.StopDistance)
	return lo.Clamp(factor, 0, 1)
}

// NearestObstacle merges car and red-light distances; lights behave exactly
// like cars. Returns models.NoObstacle when neither is present.
func NearestObstacle(distances ...float64) float64 {
	nearest := models.NoObstacle
	for _, d := range distances {
		if d < 0 {
			continue
		}
		if nearest < 0 || d < nearest {
			nearest = d
		}
	}
	return nearest
}

// Factor combines the curvature and obstacle factors
func (r *Regulator) Factor(theta, dTurn, dObstacle float64) float64 {
	return math.Min(r.RoadCurvatureFactor(theta, dTurn), r.CarObstacleFactor(dObstacle))
}

// Velocity returns the velocity vector toward next at factor × speed limit
func (r *Regulator) Velocity(position, next spatial.Point, factor float64) spatial.Point {
	dir := spatial.UnitVector(next.Sub(position))
	return dir.Mul(r.SpeedLimit * factor)
}
