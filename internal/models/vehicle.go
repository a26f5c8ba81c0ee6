package models

import (
	"slices"

	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// NoObstacle marks a sensed distance field with nothing in view
const NoObstacle = -1.0

// JourneyState is the single state a vehicle is in during a tick
type JourneyState int

const (
	CruisingClear JourneyState = iota
	LightAhead
	CongestionAhead
	Rerouting
	CruisingClearAlt
	Arrived
	Blocked // re-route search failed, original route kept
	Failed  // routing error, excluded from further updates
)

var journeyStateNames = [...]string{
	"cruising-clear",
	"light-ahead",
	"congestion-ahead",
	"rerouting",
	"cruising-clear-alt",
	"arrived",
	"blocked",
	"failed",
}

func (s JourneyState) String() string {
	if s < 0 || int(s) >= len(journeyStateNames) {
		return "unknown"
	}
	return journeyStateNames[s]
}

// MarshalText lets the state serialize by name in JSON
func (s JourneyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseJourneyState is the inverse of String; unknown names map to Failed
func ParseJourneyState(name string) JourneyState {
	for i, n := range journeyStateNames {
		if n == name {
			return JourneyState(i)
		}
	}
	return Failed
}

// Terminal reports whether a vehicle in this state no longer moves
func (s JourneyState) Terminal() bool {
	return s == Arrived || s == Failed
}

// Waypoint is one point of a decompiled path. Node is set when the point is
// a graph node rather than an intermediate bend of an edge geometry.
type Waypoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Node   int64   `json:"node,omitempty"`
	IsNode bool    `json:"is_node"`
}

// Point returns the waypoint position
func (w Waypoint) Point() spatial.Point {
	return spatial.Point{X: w.X, Y: w.Y}
}

// Vehicle is one simulated car
type Vehicle struct {
	ID          int           `json:"id"`
	Position    spatial.Point `json:"position"`
	Velocity    spatial.Point `json:"velocity"`
	Route       []int64       `json:"route"` // route[0] is the current or last passed node
	Path        []Waypoint    `json:"path"`  // remaining waypoints
	Origin      int64         `json:"origin"`
	Destination int64         `json:"destination"`
	Bin         spatial.Bin   `json:"bin"`

	// Sensed each tick
	DistanceToNode     float64 `json:"distance_to_node"`
	DistanceToCar      float64 `json:"distance_to_car"`
	DistanceToRedLight float64 `json:"distance_to_red_light"`
	SpeedFactor        float64 `json:"speed_factor"`

	RouteTime float64      `json:"route_time"` // seconds spent en route
	ETA       float64      `json:"eta"`        // expected seconds for the planned route
	State     JourneyState `json:"state"`

	Rerouted      bool    `json:"rerouted"`
	AvoidedLights []int64 `json:"avoided_lights,omitempty"` // light nodes a re-route was attempted for
	BlockedLights []int64 `json:"blocked_lights,omitempty"` // light nodes whose re-route failed
	Err           string  `json:"error,omitempty"`
}

// Clone returns a deep copy so a new generation never aliases the previous one
func (v *Vehicle) Clone() Vehicle {
	out := *v
	out.Route = slices.Clone(v.Route)
	out.Path = slices.Clone(v.Path)
	out.AvoidedLights = slices.Clone(v.AvoidedLights)
	out.BlockedLights = slices.Clone(v.BlockedLights)
	return out
}

// Speed returns the magnitude of the velocity vector
func (v *Vehicle) Speed() float64 {
	return spatial.Magnitude(v.Velocity)
}

// Active reports whether the vehicle still takes part in the simulation
func (v *Vehicle) Active() bool {
	return !v.State.Terminal()
}

// AdvanceWaypoint drops the first waypoint of the path. When that waypoint is
// the next node of the route, the route advances as well.
func (v *Vehicle) AdvanceWaypoint() {
	if len(v.Path) == 0 {
		return
	}
	w := v.Path[0]
	v.Path = v.Path[1:]
	if w.IsNode && len(v.Route) > 1 && v.Route[1] == w.Node {
		v.Route = v.Route[1:]
	}
}

// HasAvoided reports whether a re-route was already attempted around node
func (v *Vehicle) HasAvoided(node int64) bool {
	return slices.Contains(v.AvoidedLights, node)
}

// BlockedBy reports whether a failed re-route around node left the vehicle blocked
func (v *Vehicle) BlockedBy(node int64) bool {
	return slices.Contains(v.BlockedLights, node)
}

// Stop zeroes the velocity and the speed factor
func (v *Vehicle) Stop() {
	v.Velocity = spatial.Point{}
	v.SpeedFactor = 0
}
