package service

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/repository"
	"github.com/jengzang/roadsim-backend-go/internal/roadgraph"
	"github.com/jengzang/roadsim-backend-go/internal/spatial"
)

// ImportOptions controls how a GeoJSON network is read
type ImportOptions struct {
	Name       string
	Geographic bool // coordinates are lon/lat degrees and get projected to metres
}

// NetworkService imports road networks and serves them as graphs
type NetworkService struct {
	repo *repository.NetworkRepository

	mu     sync.RWMutex
	graphs map[int64]*roadgraph.Graph
	loads  singleflight.Group // one load per network id in flight
}

// NewNetworkService creates a new network service
func NewNetworkService(repo *repository.NetworkRepository) *NetworkService {
	return &NetworkService{repo: repo, graphs: make(map[int64]*roadgraph.Graph)}
}

// Import reads a FeatureCollection of Point nodes (property "id") and
// LineString roads (properties "u", "v", optional "length" and "oneway")
// and stores it. Roads without u/v are attached to the nodes at their ends.
func (s *NetworkService) Import(fc *geojson.FeatureCollection, opts ImportOptions) (*models.Network, error) {
	nodes, edges, err := parseNetwork(fc, opts.Geographic)
	if err != nil {
		return nil, err
	}
	// building the graph validates every edge before anything is stored
	g, err := BuildGraph(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNetwork, err)
	}

	name := opts.Name
	if name == "" {
		name = "network"
	}
	network, err := s.repo.Create(name, opts.Geographic, nodes, edges)
	if err != nil {
		return nil, err
	}
	log.Printf("[NetworkService] imported network %d %q: %d nodes, %d edges", network.ID, name, g.NodeCount(), g.EdgeCount())
	return network, nil
}

// Get returns a network summary
func (s *NetworkService) Get(id int64) (*models.Network, error) {
	network, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if network == nil {
		return nil, fmt.Errorf("network %d: %w", id, ErrNetworkNotFound)
	}
	return network, nil
}

// Graph loads the graph of a network. Graphs are immutable and cached.
func (s *NetworkService) Graph(id int64) (*roadgraph.Graph, error) {
	s.mu.RLock()
	g, ok := s.graphs[id]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	v, err, _ := s.loads.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return s.loadGraph(id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*roadgraph.Graph), nil
}

func (s *NetworkService) loadGraph(id int64) (*roadgraph.Graph, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	nodes, err := s.repo.GetNodes(id)
	if err != nil {
		return nil, err
	}
	edges, err := s.repo.GetEdges(id)
	if err != nil {
		return nil, err
	}
	g, err := BuildGraph(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("network %d: %w", id, err)
	}

	s.mu.Lock()
	s.graphs[id] = g
	s.mu.Unlock()
	log.Debugf("[NetworkService] cached graph of network %d (%d nodes, %d edges)", id, g.NodeCount(), g.EdgeCount())
	return g, nil
}

// BuildGraph assembles the in-memory graph from stored rows
func BuildGraph(nodes []models.NetworkNode, edges []models.NetworkEdge) (*roadgraph.Graph, error) {
	g := roadgraph.New()
	for _, n := range nodes {
		g.AddNode(n.NodeID, spatial.Point{X: n.X, Y: n.Y})
	}
	for _, e := range edges {
		if err := g.AddEdge(e.U, e.V, e.Length, e.Geometry); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func parseNetwork(fc *geojson.FeatureCollection, geographic bool) ([]models.NetworkNode, []models.NetworkEdge, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, nil, fmt.Errorf("%w: empty feature collection", ErrInvalidNetwork)
	}

	project := func(p orb.Point) orb.Point { return p }
	if geographic {
		bound := collectionBound(fc)
		if fc.BBox.Valid() {
			bound = fc.BBox.Bound()
		}
		center := bound.Center()
		projector := spatial.NewProjector(center.Lon(), center.Lat())
		project = func(p orb.Point) orb.Point {
			return spatial.ToOrb(projector.Project(p.Lon(), p.Lat()))
		}
	}

	var nodes []models.NetworkNode
	byPosition := make(map[orb.Point]int64)
	seen := make(map[int64]bool)
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		id, ok := intProperty(f.Properties, "id")
		if !ok {
			return nil, nil, fmt.Errorf("%w: point feature %d has no numeric id", ErrInvalidNetwork, i)
		}
		if seen[id] {
			return nil, nil, fmt.Errorf("%w: duplicate node id %d", ErrInvalidNetwork, id)
		}
		seen[id] = true
		byPosition[p] = id
		q := project(p)
		nodes = append(nodes, models.NetworkNode{NodeID: id, X: q.X(), Y: q.Y()})
	}

	var edges []models.NetworkEdge
	for i, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		if len(ls) < 2 {
			return nil, nil, fmt.Errorf("%w: road feature %d has fewer than two points", ErrInvalidNetwork, i)
		}
		u, okU := intProperty(f.Properties, "u")
		v, okV := intProperty(f.Properties, "v")
		if !okU {
			u, okU = byPosition[ls[0]]
		}
		if !okV {
			v, okV = byPosition[ls[len(ls)-1]]
		}
		if !okU || !okV {
			return nil, nil, fmt.Errorf("%w: road feature %d does not name or touch its end nodes", ErrInvalidNetwork, i)
		}

		geometry := make(orb.LineString, len(ls))
		for j, p := range ls {
			geometry[j] = project(p)
		}
		length := f.Properties.MustFloat64("length", 0)
		switch {
		case length > 0:
		case geographic:
			length = spatial.GreatCircleLength(ls)
		default:
			pu := spatial.FromOrb(geometry[0])
			pv := spatial.FromOrb(geometry[len(geometry)-1])
			length = roadgraph.EdgeLength(pu, pv, geometry)
		}

		edges = append(edges, models.NetworkEdge{U: u, V: v, Length: length, Geometry: geometry})
		if !f.Properties.MustBool("oneway", false) {
			reversed := geometry.Clone()
			reversed.Reverse()
			edges = append(edges, models.NetworkEdge{U: v, V: u, Length: length, Geometry: reversed})
		}
	}

	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("%w: no point features", ErrInvalidNetwork)
	}
	return nodes, edges, nil
}

func collectionBound(fc *geojson.FeatureCollection) orb.Bound {
	var (
		bound orb.Bound
		first = true
	)
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			bound, first = f.Geometry.Bound(), false
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	return bound
}

// intProperty reads an integer id stored either as a JSON number or a string
func intProperty(props geojson.Properties, key string) (int64, bool) {
	raw, ok := props[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), v == float64(int64(v))
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	}
	return 0, false
}
