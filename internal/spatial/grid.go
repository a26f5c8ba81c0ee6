package spatial

import (
	"fmt"
	"math"
)

// Bin is a coarse grid cell used to prune obstacle candidates
type Bin struct {
	X int `json:"xbin"`
	Y int `json:"ybin"`
}

// String formats the bin as "x_y"
func (b Bin) String() string {
	return fmt.Sprintf("%d_%d", b.X, b.Y)
}

// Grid maps planar positions onto square bins of Size metres anchored at Origin
type Grid struct {
	Origin Point
	Size   float64
}

// NewGrid creates a grid; a non-positive size falls back to one bin per metre
func NewGrid(origin Point, size float64) Grid {
	if size <= 0 {
		size = 1
	}
	return Grid{Origin: origin, Size: size}
}

// BinOf returns the bin containing p
func (g Grid) BinOf(p Point) Bin {
	return Bin{
		X: int(math.Floor((p.X - g.Origin.X) / g.Size)),
		Y: int(math.Floor((p.Y - g.Origin.Y) / g.Size)),
	}
}

// BinsAlong returns the bins visited by points in order, with consecutive
// repeats collapsed.
func (g Grid) BinsAlong(points []Point) []Bin {
	var bins []Bin
	for _, p := range points {
		b := g.BinOf(p)
		if len(bins) > 0 && bins[len(bins)-1] == b {
			continue
		}
		bins = append(bins, b)
	}
	return bins
}

// BoundingBox returns the lower-left and upper-right corners of points
func BoundingBox(points []Point) (Point, Point) {
	if len(points) == 0 {
		return Point{}, Point{}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
	}
	return lo, hi
}
