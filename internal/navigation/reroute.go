package navigation

import (
	"errors"
	"fmt"
	"math"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

var (
	// ErrRerouteFailed means the detour search hit a dead end or its iteration bound
	ErrRerouteFailed = errors.New("re-route failed")
	// ErrNoAlternative means the departure node has no road other than the route itself
	ErrNoAlternative = errors.New("no alternative direction")
)

// lookAheadTargets is how many original route nodes past the departure steer the search
const lookAheadTargets = 3

// Rerouter searches greedy detours around a node of a route
type Rerouter struct {
	planner       *Planner
	maxIterations int
}

// NewRerouter creates a rerouter bounded to maxIterations hops
func NewRerouter(planner *Planner, maxIterations int) *Rerouter {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Rerouter{planner: planner, maxIterations: maxIterations}
}

// Reroute leaves route at index departure, avoiding route[departure+1], and
// greedily walks toward the next original route nodes until it reaches a
// route node past the avoided one. The result is
// route[:departure+1] + detour + route[reconnect:].
func (r *Rerouter) Reroute(route []int64, departure int) ([]int64, error) {
	if departure < 0 || departure+1 >= len(route) {
		return nil, fmt.Errorf("departure index %d outside route of %d nodes: %w", departure, len(route), ErrNoAlternative)
	}
	avoid := route[departure+1]

	targets, err := r.planner.Positions(route[departure+1 : min(len(route), departure+1+lookAheadTargets)])
	if err != nil {
		return nil, err
	}

	// reconnecting is allowed anywhere past the avoided node
	reconnect := make(map[int64]int, len(route))
	for i := departure + 2; i < len(route); i++ {
		if _, seen := reconnect[route[i]]; !seen {
			reconnect[route[i]] = i
		}
	}
	visited := make(map[int64]bool, len(route))
	for _, n := range route[:departure+1] {
		visited[n] = true
	}
	visited[avoid] = true

	current := route[departure]
	var detour []int64
	for i := 0; i < r.maxIterations; i++ {
		next, err := r.bestStep(current, visited, reconnect, targets)
		if err != nil {
			if errors.Is(err, errDeadEnd) {
				if i == 0 {
					return nil, fmt.Errorf("from node %d: %w", current, ErrNoAlternative)
				}
				return nil, fmt.Errorf("dead end at node %d after %d hops: %w", current, i, ErrRerouteFailed)
			}
			return nil, err
		}

		if idx, ok := reconnect[next]; ok {
			spliced := make([]int64, 0, departure+1+len(detour)+len(route)-idx)
			spliced = append(spliced, route[:departure+1]...)
			spliced = append(spliced, detour...)
			return append(spliced, route[idx:]...), nil
		}
		detour = append(detour, next)
		visited[next] = true
		current = next
	}
	return nil, fmt.Errorf("no reconnection within %d hops: %w", r.maxIterations, ErrRerouteFailed)
}

var errDeadEnd = errors.New("dead end")

// bestStep picks the unvisited neighbour of current with the smallest summed
// distance to targets. Neighbours that lead nowhere else are disqualified
// unless they rejoin the route.
func (r *Rerouter) bestStep(current int64, visited map[int64]bool, reconnect map[int64]int, targets []spatial.Point) (int64, error) {
	graph := r.planner.Graph()
	neighbors, err := graph.Neighbors(current)
	if err != nil {
		return 0, classify(err)
	}

	best, bestScore := int64(0), math.Inf(1)
	for _, n := range neighbors {
		if visited[n] {
			continue
		}
		if _, rejoins := reconnect[n]; !rejoins {
			onward, err := graph.Neighbors(n)
			if err != nil {
				return 0, classify(err)
			}
			if !hasExit(onward, current, visited) {
				continue
			}
		}
		pos, err := graph.PositionOf(n)
		if err != nil {
			return 0, classify(err)
		}
		var score float64
		for _, t := range targets {
			score += spatial.Distance(pos, t)
		}
		if score < bestScore {
			best, bestScore = n, score
		}
	}
	if math.IsInf(bestScore, 1) {
		return 0, errDeadEnd
	}
	return best, nil
}

func hasExit(onward []int64, from int64, visited map[int64]bool) bool {
	for _, n := range onward {
		if n != from && !visited[n] {
			return true
		}
	}
	return false
}

// SplicePath keeps the waypoints of path up to and including the one for
// node departure and appends the decompiled remainder of newRoute from that node.
func (p *Planner) SplicePath(path []models.Waypoint, newRoute []int64, departure int64) ([]models.Waypoint, error) {
	cut := -1
	for i, w := range path {
		if w.IsNode && w.Node == departure {
			cut = i
			break
		}
	}
	start := -1
	for i, n := range newRoute {
		if n == departure {
			start = i
			break
		}
	}
	if cut < 0 || start < 0 {
		return nil, fmt.Errorf("departure node %d not ahead on path: %w", departure, ErrRerouteFailed)
	}

	tail, err := p.Decompile(newRoute[start:])
	if err != nil {
		return nil, err
	}
	out := make([]models.Waypoint, 0, cut+len(tail))
	out = append(out, path[:cut+1]...)
	for _, w := range tail[1:] {
		out = appendWaypoint(out, w)
	}
	return out, nil
}
