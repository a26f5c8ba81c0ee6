package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMagnitudeAndDistance(t *testing.T) {
	assert.Equal(t, 5.0, Magnitude(Point{X: 3, Y: 4}))
	assert.Equal(t, 5.0, Distance(Point{X: 1, Y: 1}, Point{X: 4, Y: 5}))
	assert.Equal(t, Point{}, UnitVector(Point{}))
	assert.InDelta(t, 1.0, Magnitude(UnitVector(Point{X: 7, Y: -2})), 1e-12)
}

func TestAngleBetween(t *testing.T) {
	assert.Equal(t, 0.0, AngleBetween(Point{X: 1}, Point{X: 2}))
	assert.InDelta(t, math.Pi/2, AngleBetween(Point{X: 1}, Point{Y: 3}), 1e-12)
	assert.InDelta(t, math.Pi, AngleBetween(Point{X: 1}, Point{X: -1}), 1e-12)
	assert.Equal(t, 0.0, AngleBetween(Point{}, Point{X: 1}))
}

func TestParallel(t *testing.T) {
	tol := 0.01
	assert.True(t, Parallel(Point{X: 1, Y: 1}, Point{X: 2, Y: 2}, tol))
	assert.True(t, Parallel(Point{X: 1, Y: 1}, Point{X: -3, Y: -3}, tol), "opposite sense is still parallel")
	assert.False(t, Parallel(Point{X: 1}, Point{Y: 1}, tol))
	assert.False(t, Parallel(Point{}, Point{X: 1}, tol))
}

func TestIsClose(t *testing.T) {
	assert.True(t, IsClose(1000, 1000.0005, 1e-6, 0))
	assert.False(t, IsClose(1000, 1000.01, 1e-6, 0))
	assert.True(t, IsClose(0, 2.9, 0, 3))
	assert.False(t, IsClose(0, 3.1, 0, 3))
}

func TestOnSegmentAndStrip(t *testing.T) {
	a, b, c := Point{X: 0, Y: 0}, Point{X: 10, Y: 0}, Point{X: 10, Y: 10}

	assert.True(t, OnSegment(Point{X: 5, Y: 0.2}, a, b, 0, 0.5))
	assert.False(t, OnSegment(Point{X: 5, Y: 1}, a, b, 0, 0.5))
	assert.False(t, OnSegment(Point{X: 12, Y: 0}, a, b, 0, 0.5), "beyond the segment end")

	strip := []Point{a, b, c}
	assert.True(t, InStrip(Point{X: 10, Y: 4}, strip, 0, 0.5))
	assert.False(t, InStrip(Point{X: 4, Y: 4}, strip, 0, 0.5))
	assert.False(t, InStrip(Point{X: 4, Y: 4}, nil, 0, 0.5))
}

func TestInStrip_OnlyAheadOfStart(t *testing.T) {
	strip := []Point{{X: 0}, {X: 10}, {X: 10, Y: 10}}

	assert.False(t, InStrip(Point{X: -1}, strip, 0, 1.5), "behind the start")
	assert.False(t, InStrip(Point{X: -0.2, Y: 0.3}, strip, 0, 1.5))
	assert.False(t, InStrip(Point{}, strip, 0, 1.5), "level with the start")
	assert.True(t, InStrip(Point{X: 0.1}, strip, 0, 1.5))

	// the corner stays covered by the segment that ends there
	assert.True(t, InStrip(Point{X: 10.5, Y: -0.5}, strip, 0, 1.5))
	assert.True(t, InStrip(Point{X: 10, Y: 11}, strip, 0, 1.5))

	// degenerate segments claim nothing
	assert.False(t, InStrip(Point{X: 0.5}, []Point{{}, {}}, 0, 1.5))
}

func TestTurnAngles(t *testing.T) {
	straight := []Point{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}, {X: 5}}
	for _, angle := range TurnAngles(straight) {
		assert.Equal(t, 0.0, angle)
	}

	corner := []Point{{X: 0}, {X: 1}, {X: 1}, {X: 1, Y: 1}}
	angles := TurnAngles(corner)
	assert.Len(t, angles, 1)
	assert.InDelta(t, math.Pi/2, angles[0], 1e-12)

	assert.Nil(t, TurnAngles([]Point{{X: 0}, {X: 1}}))
}

func TestGridBins(t *testing.T) {
	g := NewGrid(Point{}, 200)
	assert.Equal(t, Bin{X: 0, Y: 0}, g.BinOf(Point{X: 199, Y: 0}))
	assert.Equal(t, Bin{X: 1, Y: -1}, g.BinOf(Point{X: 200, Y: -1}))

	bins := g.BinsAlong([]Point{{X: 10}, {X: 20}, {X: 250}, {X: 260}, {X: 10}})
	assert.Equal(t, []Bin{{X: 0}, {X: 1}, {X: 0}}, bins)
}

func TestProjector(t *testing.T) {
	p := NewProjector(-122.23, 37.82)
	origin := p.Project(-122.23, 37.82)
	assert.InDelta(t, 0, origin.X, 1e-9)
	assert.InDelta(t, 0, origin.Y, 1e-9)

	north := p.Project(-122.23, 37.83)
	want := HaversineDistance(37.82, -122.23, 37.83, -122.23)
	assert.InDelta(t, want, north.Y, 1.0)

	east := p.Project(-122.22, 37.82)
	want = HaversineDistance(37.82, -122.23, 37.82, -122.22)
	assert.InDelta(t, want, east.X, 1.0)
}
