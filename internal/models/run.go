package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Network is a stored road network
type Network struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	NodeCount int       `json:"node_count" db:"node_count"`
	EdgeCount int       `json:"edge_count" db:"edge_count"`
	Projected bool      `json:"projected" db:"projected"` // input was lon/lat and has been projected to metres
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Run is a simulation run over a stored network
type Run struct {
	ID           string    `json:"id" db:"id"` // uuid
	NetworkID    int64     `json:"network_id" db:"network_id"`
	Tick         int64     `json:"tick" db:"tick"`
	Elapsed      float64   `json:"elapsed" db:"elapsed"` // simulated seconds
	ConfigJSON   string    `json:"-" db:"config_json"`
	VehicleCount int       `json:"vehicle_count" db:"vehicle_count"`
	LightCount   int       `json:"light_count" db:"light_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// VehicleState is one persisted row of a vehicle at a tick
type VehicleState struct {
	RunID     string  `json:"run_id" db:"run_id"`
	Tick      int64   `json:"tick" db:"tick"`
	VehicleID int     `json:"vehicle_id" db:"vehicle_id"`
	X         float64 `json:"x" db:"x"`
	Y         float64 `json:"y" db:"y"`
	VX        float64 `json:"vx" db:"vx"`
	VY        float64 `json:"vy" db:"vy"`
	XBin      int     `json:"xbin" db:"xbin"`
	YBin      int     `json:"ybin" db:"ybin"`
	State     string  `json:"state" db:"state"`
	RouteTime float64 `json:"route_time" db:"route_time"`
	RouteJSON string  `json:"-" db:"route_json"`
}

// LightState is one persisted row of a traffic light at a tick
type LightState struct {
	RunID   string `json:"run_id" db:"run_id"`
	Tick    int64  `json:"tick" db:"tick"`
	LightID int    `json:"light_id" db:"light_id"`
	Node    int64  `json:"node" db:"node"`
	Phase   int    `json:"phase" db:"phase"`
	GoJSON  string `json:"go_json" db:"go_json"`
}

// CreateRunRequest is the body of POST /api/v1/runs
type CreateRunRequest struct {
	NetworkID   int64   `json:"network_id" binding:"required"`
	Vehicles    int     `json:"vehicles" binding:"required,min=1"`
	Destination int64   `json:"destination"` // 0 picks the node farthest from the first spawn point
	Lights      []int64 `json:"lights"`      // light nodes; empty selects intersections automatically
	SpeedLimit  float64 `json:"speed_limit"`
	DT          float64 `json:"dt"`
}

// StepRequest is the body of POST /api/v1/runs/:id/step
type StepRequest struct {
	Ticks int `json:"ticks" binding:"omitempty,min=1,max=100000"`
}

// RunSnapshot is the current generation of a run
type RunSnapshot struct {
	RunID    string         `json:"run_id"`
	Tick     int64          `json:"tick"`
	Elapsed  float64        `json:"elapsed"`
	Vehicles []Vehicle      `json:"vehicles"`
	Lights   []TrafficLight `json:"lights"`
}

// RunStats summarizes a run's current generation
type RunStats struct {
	RunID         string         `json:"run_id"`
	Tick          int64          `json:"tick"`
	StateCounts   map[string]int `json:"state_counts"`
	MeanSpeed     float64        `json:"mean_speed"`
	SpeedP50      float64        `json:"speed_p50"`
	SpeedP90      float64        `json:"speed_p90"`
	MeanRouteTime float64        `json:"mean_route_time"`
	RouteTimeP90  float64        `json:"route_time_p90"`
	BinPopulation map[string]int `json:"bin_population"`
}

// NetworkNode is one stored node of a network, in planar metres
type NetworkNode struct {
	NodeID int64   `json:"node_id" db:"node_id"`
	X      float64 `json:"x" db:"x"`
	Y      float64 `json:"y" db:"y"`
}

// NetworkEdge is one stored directed edge of a network
type NetworkEdge struct {
	U        int64          `json:"u" db:"u"`
	V        int64          `json:"v" db:"v"`
	Length   float64        `json:"length" db:"length"`
	Geometry orb.LineString `json:"geometry,omitempty" db:"geometry_wkt"`
}
