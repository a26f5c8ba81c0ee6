package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	LogLevel  string
	RateLimit int // mutating requests per client per minute, 0 disables
	Sim       Simulation
}

// Simulation holds the constants a driver may tune
type Simulation struct {
	DT                   float64 `json:"dt"`                    // seconds per tick
	SpeedLimit           float64 `json:"speed_limit"`           // metres per second
	StopDistance         float64 `json:"stop_distance"`         // obstacles closer than this stop the vehicle
	FreeDistance         float64 `json:"free_distance"`         // obstacles and bends farther than this have no influence
	DefaultAcceleration  float64 `json:"default_acceleration"`  // kept for compatibility, speed changes are instantaneous
	LookAheadNodes       int     `json:"look_ahead_nodes"`      // waypoints in the front view
	MaxCarsPerBin        int     `json:"max_cars_per_bin"`      // a bin holding more vehicles is congested
	BinSize              float64 `json:"bin_size"`              // metres
	LightSwitchTime      float64 `json:"light_switch_time"`     // seconds per light cycle
	LightPrescale        int     `json:"light_prescale"`        // every n-th eligible intersection gets a light
	RerouteMaxIterations int     `json:"reroute_max_iterations"`
	CrossingTolerance    float64 `json:"crossing_tolerance"` // relative tolerance for waypoint crossings
	StripTolerance       float64 `json:"strip_tolerance"`    // absolute slack, metres, around the look-ahead strip
	AngleTolerance       float64 `json:"angle_tolerance"`    // radians
	Workers              int     `json:"workers"`            // parallel updates per tick, 0 means GOMAXPROCS
}

// DefaultSimulation returns the tuning used when nothing is overridden
func DefaultSimulation() Simulation {
	return Simulation{
		DT:                   1.0 / 1000,
		SpeedLimit:           15,
		StopDistance:         3,
		FreeDistance:         30,
		DefaultAcceleration:  3,
		LookAheadNodes:       3,
		MaxCarsPerBin:        10,
		BinSize:              200,
		LightSwitchTime:      30,
		LightPrescale:        10,
		RerouteMaxIterations: 50,
		CrossingTolerance:    1e-6,
		StripTolerance:       1.5,
		AngleTolerance:       0.05,
		Workers:              0,
	}
}

// ErrInvalid wraps every configuration validation failure
var ErrInvalid = errors.New("invalid simulation config")

// Validate checks the relations the speed model depends on
func (s Simulation) Validate() error {
	switch {
	case s.DT <= 0:
		return fmt.Errorf("%w: dt must be positive", ErrInvalid)
	case s.SpeedLimit <= 0:
		return fmt.Errorf("%w: speed_limit must be positive", ErrInvalid)
	case s.StopDistance <= 0:
		return fmt.Errorf("%w: stop_distance must be positive", ErrInvalid)
	case s.FreeDistance <= s.StopDistance:
		return fmt.Errorf("%w: free_distance must exceed stop_distance", ErrInvalid)
	case s.LookAheadNodes < 1:
		return fmt.Errorf("%w: look_ahead_nodes must be at least 1", ErrInvalid)
	case s.BinSize <= 0:
		return fmt.Errorf("%w: bin_size must be positive", ErrInvalid)
	case s.LightSwitchTime <= 0:
		return fmt.Errorf("%w: light_switch_time must be positive", ErrInvalid)
	case s.RerouteMaxIterations < 1:
		return fmt.Errorf("%w: reroute_max_iterations must be at least 1", ErrInvalid)
	case s.CrossingTolerance < 0 || s.StripTolerance < 0 || s.AngleTolerance < 0:
		return fmt.Errorf("%w: tolerances must not be negative", ErrInvalid)
	}
	return nil
}

// Load 加载配置
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/roadsim.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	rateLimit := 120
	envInt("RATE_LIMIT", &rateLimit)

	sim := DefaultSimulation()
	envFloat("SIM_DT", &sim.DT)
	envFloat("SIM_SPEED_LIMIT", &sim.SpeedLimit)
	envFloat("SIM_STOP_DISTANCE", &sim.StopDistance)
	envFloat("SIM_FREE_DISTANCE", &sim.FreeDistance)
	envFloat("SIM_BIN_SIZE", &sim.BinSize)
	envFloat("SIM_LIGHT_SWITCH_TIME", &sim.LightSwitchTime)
	envFloat("SIM_STRIP_TOLERANCE", &sim.StripTolerance)
	envInt("SIM_LOOK_AHEAD_NODES", &sim.LookAheadNodes)
	envInt("SIM_MAX_CARS_PER_BIN", &sim.MaxCarsPerBin)
	envInt("SIM_LIGHT_PRESCALE", &sim.LightPrescale)
	envInt("SIM_REROUTE_MAX_ITERATIONS", &sim.RerouteMaxIterations)
	envInt("SIM_WORKERS", &sim.Workers)

	return &Config{
		Port:      port,
		DBPath:    dbPath,
		JWTSecret: jwtSecret,
		LogLevel:  logLevel,
		RateLimit: rateLimit,
		Sim:       sim,
	}
}

func envFloat(key string, dst *float64) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("[Config] ignoring %s=%q: %v", key, raw, err)
		return
	}
	*dst = v
}

func envInt(key string, dst *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[Config] ignoring %s=%q: %v", key, raw, err)
		return
	}
	*dst = v
}
