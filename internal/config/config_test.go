package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSimulationIsValid(t *testing.T) {
	require.NoError(t, DefaultSimulation().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Simulation){
		"zero dt":          func(s *Simulation) { s.DT = 0 },
		"free below stop":  func(s *Simulation) { s.FreeDistance = s.StopDistance },
		"no look ahead":    func(s *Simulation) { s.LookAheadNodes = 0 },
		"no bound":         func(s *Simulation) { s.RerouteMaxIterations = 0 },
		"negative epsilon": func(s *Simulation) { s.CrossingTolerance = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := DefaultSimulation()
			mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("SIM_SPEED_LIMIT", "22.5")
	t.Setenv("SIM_LOOK_AHEAD_NODES", "5")
	t.Setenv("SIM_BIN_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, 22.5, cfg.Sim.SpeedLimit)
	assert.Equal(t, 5, cfg.Sim.LookAheadNodes)
	assert.Equal(t, DefaultSimulation().BinSize, cfg.Sim.BinSize, "unparsable values keep the default")
}
