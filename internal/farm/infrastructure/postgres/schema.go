package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sectors (
	sector_id TEXT PRIMARY KEY,
	grid_row INTEGER NOT NULL,
	grid_col INTEGER NOT NULL,
	center_lat DOUBLE PRECISION NOT NULL,
	center_lng DOUBLE PRECISION NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS panels (
	panel_id TEXT NOT NULL,
	sector_id TEXT NOT NULL REFERENCES sectors (sector_id),
	seq INTEGER NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lng DOUBLE PRECISION NOT NULL,
	capacity INTEGER NOT NULL,
	installation_date TEXT NOT NULL,
	status TEXT NOT NULL,
	current_efficiency DOUBLE PRECISION NOT NULL,
	dust_level DOUBLE PRECISION NOT NULL,
	voltage DOUBLE PRECISION NOT NULL,
	last_cleaned TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS panels_panel_id_idx ON panels (panel_id)`,
	`CREATE TABLE IF NOT EXISTS sensor_data (
	id TEXT PRIMARY KEY,
	panel_id TEXT NOT NULL,
	sector_id TEXT NOT NULL,
	voltage DOUBLE PRECISION NOT NULL,
	current_amps DOUBLE PRECISION NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	dust_level DOUBLE PRECISION NOT NULL,
	efficiency DOUBLE PRECISION NOT NULL,
	ts TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS sensor_data_panel_ts_idx ON sensor_data (panel_id, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS cleaning_history (
	id TEXT PRIMARY KEY,
	panel_id TEXT NOT NULL,
	sector_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	water_used DOUBLE PRECISION NOT NULL,
	duration_seconds INTEGER NOT NULL,
	trigger_type TEXT NOT NULL,
	pre_cleaning_efficiency DOUBLE PRECISION NOT NULL,
	post_cleaning_efficiency DOUBLE PRECISION NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS cleaning_history_panel_ts_idx ON cleaning_history (panel_id, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS analytics (
	panel_id TEXT NOT NULL,
	date TEXT NOT NULL,
	sector_id TEXT NOT NULL,
	efficiency DOUBLE PRECISION NOT NULL,
	dust_level DOUBLE PRECISION NOT NULL,
	power_output_w DOUBLE PRECISION NOT NULL,
	needs_cleaning BOOLEAN NOT NULL,
	cleanings INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (panel_id, date)
)`,
	`CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	panel_id TEXT NOT NULL,
	sector_id TEXT NOT NULL,
	type TEXT NOT NULL,
	message TEXT NOT NULL,
	severity TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	resolved BOOLEAN NOT NULL DEFAULT FALSE,
	resolved_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS alerts_unresolved_idx ON alerts (resolved, ts DESC)`,
}

// EnsureSchema creates the farm tables and indexes when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("postgres schema: nil db")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}
