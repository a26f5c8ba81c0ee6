package models

import (
	"slices"

	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// Face is one road leaving an intersection. Direction points from the
// intersection toward the nearest point of that road.
type Face struct {
	Direction spatial.Point `json:"direction"`
	Go        bool          `json:"go"`
}

// Phase is one slot of a light's precomputed cycle
type Phase struct {
	Start float64 `json:"start"` // seconds into the cycle
	Go    []bool  `json:"go"`    // per face, same order as Pedigree
}

// TrafficLight sits on an intersection node and stops traffic per face
type TrafficLight struct {
	ID         int           `json:"id"`
	Node       int64         `json:"node"`
	Position   spatial.Point `json:"position"`
	Degree     int           `json:"degree"` // always len(Pedigree)
	Pedigree   []Face        `json:"pedigree"`
	SwitchTime float64       `json:"switch_time"` // cycle length in seconds
	Bin        spatial.Bin   `json:"bin"`
	Schedule   []Phase       `json:"-"`
	Phase      int           `json:"phase"`
}

// Clone returns a deep copy. The schedule is immutable and shared.
func (l *TrafficLight) Clone() TrafficLight {
	out := *l
	out.Pedigree = slices.Clone(l.Pedigree)
	return out
}

// GoValues returns the current go flag of every face
func (l *TrafficLight) GoValues() []bool {
	out := make([]bool, len(l.Pedigree))
	for i, f := range l.Pedigree {
		out[i] = f.Go
	}
	return out
}
