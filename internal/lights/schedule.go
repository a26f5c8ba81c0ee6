package lights

import (
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// AxisGroups assigns every face to a group of faces lying on the same axis.
// Faces facing each other across the intersection share a group.
func AxisGroups(faces []models.Face, angleTolerance float64) []int {
	groups := make([]int, len(faces))
	var axes []spatial.Point
	for i, f := range faces {
		groups[i] = -1
		for g, axis := range axes {
			if spatial.Parallel(f.Direction, axis, angleTolerance) {
				groups[i] = g
				break
			}
		}
		if groups[i] < 0 {
			groups[i] = len(axes)
			axes = append(axes, f.Direction)
		}
	}
	return groups
}

// BuildSchedule precomputes one cycle of switchTime seconds. Each axis group
// gets an equal green slot in turn. With a single group the light stops all
// faces for the first half of the cycle and lets them go for the second.
func BuildSchedule(faces []models.Face, switchTime, angleTolerance float64) []models.Phase {
	if len(faces) == 0 || switchTime <= 0 {
		return nil
	}
	groups := AxisGroups(faces, angleTolerance)
	count := 0
	for _, g := range groups {
		count = max(count, g+1)
	}

	if count == 1 {
		all := func(v bool) []bool {
			out := make([]bool, len(faces))
			for i := range out {
				out[i] = v
			}
			return out
		}
		return []models.Phase{
			{Start: 0, Go: all(false)},
			{Start: switchTime / 2, Go: all(true)},
		}
	}

	slot := switchTime / float64(count)
	schedule := make([]models.Phase, count)
	for k := range schedule {
		goValues := make([]bool, len(faces))
		for i, g := range groups {
			goValues[i] = g == k
		}
		schedule[k] = models.Phase{Start: float64(k) * slot, Go: goValues}
	}
	return schedule
}

// PhaseAt returns the index of the phase active at t seconds into the cycle
func PhaseAt(schedule []models.Phase, t float64) int {
	phase := 0
	for i, p := range schedule {
		if t >= p.Start {
			phase = i
		}
	}
	return phase
}
