// Package stats summarizes the vehicles of a generation
package stats

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/jengzang/roadsim-backend-go/internal/models"
)

// Mean returns the arithmetic mean, or 0 for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// Quantile returns the q-quantile (0-1) with linear interpolation between
// closest ranks. values need not be sorted.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	q = lo.Clamp(q, 0, 1)
	index := q * float64(len(sorted)-1)
	lower, upper := int(math.Floor(index)), int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Percentile is Quantile on a 0-100 scale
func Percentile(values []float64, p float64) float64 {
	return Quantile(values, p/100)
}

// Summarize computes the run statistics of one generation. Speeds cover the
// vehicles still moving; route times cover every vehicle that is not Failed.
func Summarize(runID string, tick int64, vehicles []models.Vehicle) models.RunStats {
	out := models.RunStats{
		RunID:         runID,
		Tick:          tick,
		StateCounts:   make(map[string]int),
		BinPopulation: make(map[string]int),
	}

	var speeds, routeTimes []float64
	for i := range vehicles {
		v := &vehicles[i]
		out.StateCounts[v.State.String()]++
		if v.State == models.Failed {
			continue
		}
		routeTimes = append(routeTimes, v.RouteTime)
		if v.Active() {
			speeds = append(speeds, v.Speed())
			out.BinPopulation[v.Bin.String()]++
		}
	}

	out.MeanSpeed = Mean(speeds)
	out.SpeedP50 = Percentile(speeds, 50)
	out.SpeedP90 = Percentile(speeds, 90)
	out.MeanRouteTime = Mean(routeTimes)
	out.RouteTimeP90 = Percentile(routeTimes, 90)
	return out
}
