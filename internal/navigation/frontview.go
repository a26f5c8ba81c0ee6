package navigation

import (
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// Tolerances groups the epsilons used by the front view tests
type Tolerances struct {
	Crossing float64 // relative, waypoint crossings
	Strip    float64 // absolute metres around the look-ahead strip
	Angle    float64 // radians, parallel light faces
}

// FrontView is what a vehicle sees ahead of it: the next k waypoints of its path
type FrontView struct {
	vehicle     *models.Vehicle
	position    spatial.Point
	destination spatial.Point
	view        []spatial.Point
	tol         Tolerances
}

// NewFrontView builds the view window for v. destination is the position of
// v.Destination, resolved by the caller against the map.
func NewFrontView(v *models.Vehicle, lookAhead int, destination spatial.Point, tol Tolerances) *FrontView {
	n := min(lookAhead, len(v.Path))
	view := make([]spatial.Point, n)
	for i := 0; i < n; i++ {
		view[i] = v.Path[i].Point()
	}
	return &FrontView{
		vehicle:     v,
		position:    v.Position,
		destination: destination,
		view:        view,
		tol:         tol,
	}
}

// View returns the look-ahead waypoints; empty at the end of the route
func (f *FrontView) View() []spatial.Point {
	return f.view
}

// Empty reports the end-of-route condition
func (f *FrontView) Empty() bool {
	return len(f.view) == 0
}

// CrossedNodeEvent reports whether the vehicle sits on the first waypoint
func (f *FrontView) CrossedNodeEvent() bool {
	if f.Empty() {
		return false
	}
	return spatial.PointsClose(f.view[0], f.position, f.tol.Crossing, 0)
}

// UpcomingNodePosition returns the waypoint the vehicle is heading for. While
// crossing, that is the second waypoint, or the destination if none is left.
func (f *FrontView) UpcomingNodePosition() spatial.Point {
	if f.Empty() {
		return f.destination
	}
	if f.CrossedNodeEvent() {
		if len(f.view) >= 2 {
			return f.view[1]
		}
		return f.destination
	}
	return f.view[0]
}

// DistanceToNode returns the distance to the upcoming waypoint
func (f *FrontView) DistanceToNode() float64 {
	return spatial.Distance(f.position, f.UpcomingNodePosition())
}

// EndOfRoute reports whether the vehicle is within stopDistance of the
// destination on both axes
func (f *FrontView) EndOfRoute(stopDistance float64) bool {
	return spatial.PointsClose(f.destination, f.position, 0, stopDistance)
}

// Strip returns the polyline from the vehicle through the view
func (f *FrontView) Strip() []spatial.Point {
	strip := make([]spatial.Point, 0, len(f.view)+1)
	strip = append(strip, f.position)
	return append(strip, f.view...)
}

// TurnAngle returns the angle of the next bend and the distance to it.
// With fewer than two waypoints ahead the road is treated as straight.
func (f *FrontView) TurnAngle() (theta, distance float64) {
	if f.Empty() {
		return 0, spatial.Distance(f.position, f.destination)
	}
	distance = spatial.Distance(f.position, f.view[0])
	angles := spatial.TurnAngles(f.Strip())
	if len(angles) == 0 {
		return 0, distance
	}
	return angles[0], distance
}

// inStrip reports whether p lies in the look-ahead strip
func (f *FrontView) inStrip(p spatial.Point) bool {
	if f.Empty() {
		return false
	}
	return spatial.InStrip(p, f.Strip(), f.tol.Crossing, f.tol.Strip)
}

// CarObstacles returns the distance to the nearest other vehicle in the same
// bin that lies in the look-ahead strip, or models.NoObstacle.
func (f *FrontView) CarObstacles(others []models.Vehicle) float64 {
	nearest := models.NoObstacle
	for i := range others {
		other := &others[i]
		if other.ID == f.vehicle.ID || !other.Active() {
			continue
		}
		if other.Bin != f.vehicle.Bin {
			continue
		}
		if !f.inStrip(other.Position) {
			continue
		}
		d := spatial.Distance(f.position, other.Position)
		if nearest < 0 || d < nearest {
			nearest = d
		}
	}
	return nearest
}

// LightObstacles returns the distance to the nearest light in the same bin,
// inside the look-ahead strip, showing red on a face parallel to the
// vehicle→light direction. Green and non-parallel faces are ignored.
func (f *FrontView) LightObstacles(lights []models.TrafficLight) float64 {
	nearest := models.NoObstacle
	for i := range lights {
		light := &lights[i]
		if light.Bin != f.vehicle.Bin || !f.inStrip(light.Position) {
			continue
		}
		toLight := light.Position.Sub(f.position)
		for _, face := range light.Pedigree {
			if face.Go || !spatial.Parallel(toLight, face.Direction, f.tol.Angle) {
				continue
			}
			d := spatial.Magnitude(toLight)
			if nearest < 0 || d < nearest {
				nearest = d
			}
			break
		}
	}
	return nearest
}
