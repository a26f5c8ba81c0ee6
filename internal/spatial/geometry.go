package spatial

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
)

// Point is a planar position or displacement in projected metres.
type Point = r2.Point

// FromOrb converts an orb point (x, y) into a planar Point
func FromOrb(p orb.Point) Point {
	return Point{X: p.X(), Y: p.Y()}
}

// ToOrb converts a planar Point into an orb point
func ToOrb(p Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

// Magnitude returns the Euclidean length of v
func Magnitude(v Point) float64 {
	return math.Hypot(v.X, v.Y)
}

// Distance returns the Euclidean distance between a and b
func Distance(a, b Point) float64 {
	return Magnitude(b.Sub(a))
}

// UnitVector returns v scaled to length 1, or the zero vector when v has no length
func UnitVector(v Point) Point {
	m := Magnitude(v)
	if m == 0 {
		return Point{}
	}
	return v.Mul(1 / m)
}

// AngleBetween returns the unsigned angle between a and b in radians, in [0, π].
// Zero-length vectors yield 0.
func AngleBetween(a, b Point) float64 {
	ma, mb := Magnitude(a), Magnitude(b)
	if ma == 0 || mb == 0 {
		return 0
	}
	cos := a.Dot(b) / (ma * mb)
	// rounding can push |cos| slightly above 1
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// Parallel reports whether a and b lie on the same line within tol radians,
// pointing either the same or the opposite way.
func Parallel(a, b Point, tol float64) bool {
	if Magnitude(a) == 0 || Magnitude(b) == 0 {
		return false
	}
	angle := AngleBetween(a, b)
	return angle <= tol || math.Pi-angle <= tol
}

// IsClose reports |a-b| <= atol + rtol*|b|, the same rule numpy.isclose applies
func IsClose(a, b, rtol, atol float64) bool {
	return math.Abs(a-b) <= atol+rtol*math.Abs(b)
}

// PointsClose applies IsClose independently to both axes
func PointsClose(a, b Point, rtol, atol float64) bool {
	return IsClose(a.X, b.X, rtol, atol) && IsClose(a.Y, b.Y, rtol, atol)
}

// OnSegment reports whether p lies on the segment a→b, allowing atol of slack
// on each axis around the closest point of the segment.
func OnSegment(p, a, b Point, rtol, atol float64) bool {
	d := b.Sub(a)
	lenSq := d.Dot(d)
	if lenSq == 0 {
		return PointsClose(a, p, rtol, atol)
	}
	t := p.Sub(a).Dot(d) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := a.Add(d.Mul(t))
	return PointsClose(closest, p, rtol, atol)
}

// InStrip reports whether p lies on the polyline through points, ahead of
// its start. Each segment only claims points strictly past its first end, so
// nothing level with or behind points[0] is in the strip. A single point
// degenerates to a closeness test.
func InStrip(p Point, points []Point, rtol, atol float64) bool {
	switch len(points) {
	case 0:
		return false
	case 1:
		return PointsClose(points[0], p, rtol, atol)
	}
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if p.Sub(a).Dot(b.Sub(a)) <= 0 {
			continue
		}
		if OnSegment(p, a, b, rtol, atol) {
			return true
		}
	}
	return false
}

// TurnAngles returns the angle between each pair of consecutive segments of
// the polyline through points. A polyline of n points yields n-2 angles.
// Repeated points are skipped so that a zero-length segment never reads as a bend.
func TurnAngles(points []Point) []float64 {
	var segments []Point
	for i := 1; i < len(points); i++ {
		d := points[i].Sub(points[i-1])
		if Magnitude(d) == 0 {
			continue
		}
		segments = append(segments, d)
	}
	if len(segments) < 2 {
		return nil
	}
	angles := make([]float64, len(segments)-1)
	for i := 1; i < len(segments); i++ {
		angles[i-1] = AngleBetween(segments[i-1], segments[i])
	}
	return angles
}

// PathLength sums the segment lengths of the polyline through points
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}
