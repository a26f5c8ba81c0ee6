package database

import (
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Migration is one versioned schema change
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order; a released entry is never edited
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_networks",
		SQL: `
			CREATE TABLE networks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				node_count INTEGER NOT NULL DEFAULT 0,
				edge_count INTEGER NOT NULL DEFAULT 0,
				projected INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE network_nodes (
				network_id INTEGER NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
				node_id INTEGER NOT NULL,
				x REAL NOT NULL,
				y REAL NOT NULL,
				PRIMARY KEY (network_id, node_id)
			);
			CREATE TABLE network_edges (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				network_id INTEGER NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
				u INTEGER NOT NULL,
				v INTEGER NOT NULL,
				length REAL NOT NULL,
				geometry_wkt TEXT
			);
			CREATE INDEX idx_network_edges_network ON network_edges(network_id);
		`,
	},
	{
		Version: 2,
		Name:    "create_runs",
		SQL: `
			CREATE TABLE runs (
				id TEXT PRIMARY KEY,
				network_id INTEGER NOT NULL REFERENCES networks(id),
				tick INTEGER NOT NULL DEFAULT 0,
				elapsed REAL NOT NULL DEFAULT 0,
				config_json TEXT NOT NULL,
				vehicle_count INTEGER NOT NULL DEFAULT 0,
				light_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE vehicle_states (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				tick INTEGER NOT NULL,
				vehicle_id INTEGER NOT NULL,
				x REAL NOT NULL,
				y REAL NOT NULL,
				vx REAL NOT NULL,
				vy REAL NOT NULL,
				xbin INTEGER NOT NULL,
				ybin INTEGER NOT NULL,
				state TEXT NOT NULL,
				route_time REAL NOT NULL,
				route_json TEXT NOT NULL,
				PRIMARY KEY (run_id, tick, vehicle_id)
			);
			CREATE TABLE light_states (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				tick INTEGER NOT NULL,
				light_id INTEGER NOT NULL,
				node INTEGER NOT NULL,
				phase INTEGER NOT NULL,
				go_json TEXT NOT NULL,
				PRIMARY KEY (run_id, tick, light_id)
			);
		`,
	},
	{
		Version: 3,
		Name:    "create_run_jobs",
		SQL: `
			CREATE TABLE run_jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				ticks INTEGER NOT NULL,
				status TEXT NOT NULL,
				progress_percent INTEGER NOT NULL DEFAULT 0,
				eta_seconds INTEGER NOT NULL DEFAULT 0,
				processed_ticks INTEGER NOT NULL DEFAULT 0,
				start_time INTEGER NOT NULL DEFAULT 0,
				end_time INTEGER NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX idx_run_jobs_run ON run_jobs(run_id, status);
		`,
	},
}

// MigrationManager manages database migrations
type MigrationManager struct {
	db         *sql.DB
	migrations []Migration
}

// NewMigrationManager creates a migration manager for the built-in schema
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db, migrations: migrations}
}

// InitMigrationsTable creates the migrations tracking table
func (m *MigrationManager) InitMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := m.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// AppliedVersions returns the set of applied migration versions
func (m *MigrationManager) AppliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// apply runs one migration and records it in the same transaction
func (m *MigrationManager) apply(migration Migration) error {
	err := Transaction(m.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[Database] applied migration %d: %s", migration.Version, migration.Name)
	return nil
}

// RunMigrations runs all pending migrations
func (m *MigrationManager) RunMigrations() error {
	if err := m.InitMigrationsTable(); err != nil {
		return err
	}
	applied, err := m.AppliedVersions()
	if err != nil {
		return err
	}
	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.apply(migration); err != nil {
			return err
		}
	}
	return nil
}
