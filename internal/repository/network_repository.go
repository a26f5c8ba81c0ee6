package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/jengzang/roadsim-backend-go/internal/database"
	"github.com/jengzang/roadsim-backend-go/internal/models"
)

// NetworkRepository handles database operations for road networks
type NetworkRepository struct {
	db *sql.DB
}

// NewNetworkRepository creates a new network repository
func NewNetworkRepository(db *sql.DB) *NetworkRepository {
	return &NetworkRepository{db: db}
}

// Create stores a network with its nodes and edges in one transaction
func (r *NetworkRepository) Create(name string, projected bool, nodes []models.NetworkNode, edges []models.NetworkEdge) (*models.Network, error) {
	var id int64
	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO networks (name, node_count, edge_count, projected) VALUES (?, ?, ?, ?)`,
			name, len(nodes), len(edges), projected,
		)
		if err != nil {
			return fmt.Errorf("failed to insert network: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read network id: %w", err)
		}

		nodeStmt, err := tx.Prepare(`INSERT INTO network_nodes (network_id, node_id, x, y) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare node insert: %w", err)
		}
		defer nodeStmt.Close()
		for _, n := range nodes {
			if _, err := nodeStmt.Exec(id, n.NodeID, n.X, n.Y); err != nil {
				return fmt.Errorf("failed to insert node %d: %w", n.NodeID, err)
			}
		}

		edgeStmt, err := tx.Prepare(`INSERT INTO network_edges (network_id, u, v, length, geometry_wkt) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare edge insert: %w", err)
		}
		defer edgeStmt.Close()
		for _, e := range edges {
			var geom sql.NullString
			if len(e.Geometry) > 0 {
				geom = sql.NullString{String: wkt.MarshalString(e.Geometry), Valid: true}
			}
			if _, err := edgeStmt.Exec(id, e.U, e.V, e.Length, geom); err != nil {
				return fmt.Errorf("failed to insert edge %d->%d: %w", e.U, e.V, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// GetByID retrieves a network summary; nil when it does not exist
func (r *NetworkRepository) GetByID(id int64) (*models.Network, error) {
	var n models.Network
	err := r.db.QueryRow(
		`SELECT id, name, node_count, edge_count, projected, created_at FROM networks WHERE id = ?`, id,
	).Scan(&n.ID, &n.Name, &n.NodeCount, &n.EdgeCount, &n.Projected, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get network: %w", err)
	}
	return &n, nil
}

// GetNodes returns the nodes of a network in insertion order
func (r *NetworkRepository) GetNodes(networkID int64) ([]models.NetworkNode, error) {
	rows, err := r.db.Query(
		`SELECT node_id, x, y FROM network_nodes WHERE network_id = ? ORDER BY rowid`, networkID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.NetworkNode
	for rows.Next() {
		var n models.NetworkNode
		if err := rows.Scan(&n.NodeID, &n.X, &n.Y); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// GetEdges returns the edges of a network in insertion order
func (r *NetworkRepository) GetEdges(networkID int64) ([]models.NetworkEdge, error) {
	rows, err := r.db.Query(
		`SELECT u, v, length, geometry_wkt FROM network_edges WHERE network_id = ? ORDER BY id`, networkID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []models.NetworkEdge
	for rows.Next() {
		var (
			e    models.NetworkEdge
			geom sql.NullString
		)
		if err := rows.Scan(&e.U, &e.V, &e.Length, &geom); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if geom.Valid && geom.String != "" {
			if e.Geometry, err = parseLineString(geom.String); err != nil {
				return nil, fmt.Errorf("edge %d->%d: %w", e.U, e.V, err)
			}
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func parseLineString(s string) (orb.LineString, error) {
	ls, err := wkt.UnmarshalLineString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geometry: %w", err)
	}
	return ls, nil
}
