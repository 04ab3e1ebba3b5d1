package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
)

// PanelRepository persists sectors and panel state.
type PanelRepository struct {
	db *sql.DB
}

// NewPanelRepository constructs a repository.
func NewPanelRepository(db *sql.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

// Count returns the number of stored panels.
func (r *PanelRepository) Count(ctx context.Context) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("panel repo: nil db")
	}
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM panels`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertFarm stores a generated farm in one transaction.
func (r *PanelRepository) InsertFarm(ctx context.Context, sectors []farm.Sector, panels []farm.Panel) error {
	if r == nil || r.db == nil {
		return errors.New("panel repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sectorStmt, err := tx.PrepareContext(ctx, `
INSERT INTO sectors (sector_id, grid_row, grid_col, center_lat, center_lng)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sector_id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer sectorStmt.Close()
	for _, s := range sectors {
		if _, err := sectorStmt.ExecContext(ctx, s.ID, s.Row, s.Col, s.CenterLat, s.CenterLng); err != nil {
			return err
		}
	}

	panelStmt, err := tx.PrepareContext(ctx, `
INSERT INTO panels (
	panel_id, sector_id, seq, lat, lng, capacity, installation_date, status,
	current_efficiency, dust_level, voltage, last_cleaned, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13
)`)
	if err != nil {
		return err
	}
	defer panelStmt.Close()
	now := time.Now().UTC()
	for i, p := range panels {
		if _, err := panelStmt.ExecContext(ctx,
			p.ID, p.SectorID, i, p.Location.Lat, p.Location.Lng, p.Capacity, p.InstallationDate, p.Status,
			p.CurrentEfficiency, p.DustLevel, p.Voltage, p.LastCleaned, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Sectors loads sectors in grid order.
func (r *PanelRepository) Sectors(ctx context.Context) ([]farm.Sector, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("panel repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sector_id, grid_row, grid_col, center_lat, center_lng
FROM sectors
ORDER BY grid_row ASC, grid_col ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []farm.Sector
	for rows.Next() {
		var s farm.Sector
		if err := rows.Scan(&s.ID, &s.Row, &s.Col, &s.CenterLat, &s.CenterLng); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Find loads panels in generation order; an empty status matches all.
func (r *PanelRepository) Find(ctx context.Context, status string) ([]farm.Panel, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("panel repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT panel_id, sector_id, lat, lng, capacity, installation_date, status,
	current_efficiency, dust_level, voltage, last_cleaned
FROM panels
WHERE ($1 = '' OR status = $1)
ORDER BY seq ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []farm.Panel
	for rows.Next() {
		var p farm.Panel
		if err := rows.Scan(
			&p.ID,
			&p.SectorID,
			&p.Location.Lat,
			&p.Location.Lng,
			&p.Capacity,
			&p.InstallationDate,
			&p.Status,
			&p.CurrentEfficiency,
			&p.DustLevel,
			&p.Voltage,
			&p.LastCleaned,
		); err != nil {
			return nil, err
		}
		p.LastCleaned = p.LastCleaned.UTC()
		result = append(result, p)
	}
	return result, rows.Err()
}

// Load returns the stored farm.
func (r *PanelRepository) Load(ctx context.Context) ([]farm.Sector, []farm.Panel, error) {
	sectors, err := r.Sectors(ctx)
	if err != nil {
		return nil, nil, err
	}
	panels, err := r.Find(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	return sectors, panels, nil
}

// SaveState writes the mutable fields of every panel.
func (r *PanelRepository) SaveState(ctx context.Context, panels []farm.Panel) error {
	if r == nil || r.db == nil {
		return errors.New("panel repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
UPDATE panels
SET status = $2, current_efficiency = $3, dust_level = $4, voltage = $5, last_cleaned = $6, updated_at = $7
WHERE panel_id = $1`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, p := range panels {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Status, p.CurrentEfficiency, p.DustLevel, p.Voltage, p.LastCleaned, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
