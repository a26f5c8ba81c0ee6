package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jengzang/roadsim-backend-go/internal/database"
	"github.com/jengzang/roadsim-backend-go/internal/models"
)

// RunRepository handles database operations for simulation runs and their
// per-tick state rows
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run
func (r *RunRepository) Create(run *models.Run) error {
	_, err := r.db.Exec(
		`INSERT INTO runs (id, network_id, tick, elapsed, config_json, vehicle_count, light_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.NetworkID, run.Tick, run.Elapsed, run.ConfigJSON, run.VehicleCount, run.LightCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run; nil when it does not exist
func (r *RunRepository) GetByID(id string) (*models.Run, error) {
	var run models.Run
	err := r.db.QueryRow(
		`SELECT id, network_id, tick, elapsed, config_json, vehicle_count, light_count, created_at, updated_at
		FROM runs WHERE id = ?`, id,
	).Scan(
		&run.ID, &run.NetworkID, &run.Tick, &run.Elapsed, &run.ConfigJSON,
		&run.VehicleCount, &run.LightCount, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// SaveGeneration writes the vehicle and light rows of one tick and moves the
// run to that tick
func (r *RunRepository) SaveGeneration(runID string, tick int64, elapsed float64, vehicles []models.Vehicle, lights []models.TrafficLight) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		vStmt, err := tx.Prepare(
			`INSERT OR REPLACE INTO vehicle_states
			(run_id, tick, vehicle_id, x, y, vx, vy, xbin, ybin, state, route_time, route_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("failed to prepare vehicle insert: %w", err)
		}
		defer vStmt.Close()
		for i := range vehicles {
			v := &vehicles[i]
			route, err := json.Marshal(v.Route)
			if err != nil {
				return fmt.Errorf("failed to encode route of vehicle %d: %w", v.ID, err)
			}
			_, err = vStmt.Exec(
				runID, tick, v.ID, v.Position.X, v.Position.Y, v.Velocity.X, v.Velocity.Y,
				v.Bin.X, v.Bin.Y, v.State.String(), v.RouteTime, string(route),
			)
			if err != nil {
				return fmt.Errorf("failed to insert vehicle %d: %w", v.ID, err)
			}
		}

		lStmt, err := tx.Prepare(
			`INSERT OR REPLACE INTO light_states (run_id, tick, light_id, node, phase, go_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("failed to prepare light insert: %w", err)
		}
		defer lStmt.Close()
		for i := range lights {
			l := &lights[i]
			goValues, err := json.Marshal(l.GoValues())
			if err != nil {
				return fmt.Errorf("failed to encode light %d: %w", l.ID, err)
			}
			if _, err := lStmt.Exec(runID, tick, l.ID, l.Node, l.Phase, string(goValues)); err != nil {
				return fmt.Errorf("failed to insert light %d: %w", l.ID, err)
			}
		}

		_, err = tx.Exec(
			`UPDATE runs SET tick = ?, elapsed = ?, vehicle_count = ?, light_count = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			tick, elapsed, len(vehicles), len(lights), runID,
		)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		return nil
	})
}

// GetVehicleStates returns the vehicle rows of one tick ordered by vehicle id
func (r *RunRepository) GetVehicleStates(runID string, tick int64) ([]models.VehicleState, error) {
	rows, err := r.db.Query(
		`SELECT run_id, tick, vehicle_id, x, y, vx, vy, xbin, ybin, state, route_time, route_json
		FROM vehicle_states WHERE run_id = ? AND tick = ? ORDER BY vehicle_id`,
		runID, tick,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle states: %w", err)
	}
	defer rows.Close()

	var states []models.VehicleState
	for rows.Next() {
		var s models.VehicleState
		err := rows.Scan(
			&s.RunID, &s.Tick, &s.VehicleID, &s.X, &s.Y, &s.VX, &s.VY,
			&s.XBin, &s.YBin, &s.State, &s.RouteTime, &s.RouteJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// GetLightStates returns the light rows of one tick ordered by light id
func (r *RunRepository) GetLightStates(runID string, tick int64) ([]models.LightState, error) {
	rows, err := r.db.Query(
		`SELECT run_id, tick, light_id, node, phase, go_json
		FROM light_states WHERE run_id = ? AND tick = ? ORDER BY light_id`,
		runID, tick,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query light states: %w", err)
	}
	defer rows.Close()

	var states []models.LightState
	for rows.Next() {
		var s models.LightState
		if err := rows.Scan(&s.RunID, &s.Tick, &s.LightID, &s.Node, &s.Phase, &s.GoJSON); err != nil {
			return nil, fmt.Errorf("failed to scan light state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// Delete removes a run and, by cascade, its state rows
func (r *RunRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
