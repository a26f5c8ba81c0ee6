package navigation

// ETA estimates the travel time of route in seconds: the route length at the
// speed limit plus, for every light on the route, half its switch time as the
// expected wait. Curvature and hard stops are not accounted for.
func (p *Planner) ETA(route []int64, road *RoadState, speedLimit float64) (float64, error) {
	length, err := p.Length(route)
	if err != nil {
		return 0, err
	}
	eta := 0.0
	if speedLimit > 0 {
		eta = length / speedLimit
	}

	var wait float64
	if road != nil {
		for _, node := range route {
			if l, ok := road.LightsByNode[node]; ok {
				wait += l.SwitchTime
			}
		}
	}
	return eta + wait/2, nil
}
