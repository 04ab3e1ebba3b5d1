package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
)

// SensorRepository stores sensor readings.
type SensorRepository struct {
	db *sql.DB
}

// NewSensorRepository constructs a repository.
func NewSensorRepository(db *sql.DB) *SensorRepository {
	return &SensorRepository{db: db}
}

// Append inserts a reading.
func (r *SensorRepository) Append(ctx context.Context, reading farm.SensorReading) error {
	if r == nil || r.db == nil {
		return errors.New("sensor repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sensor_data (id, panel_id, sector_id, voltage, current_amps, temperature, dust_level, efficiency, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reading.ID, reading.PanelID, reading.SectorID, reading.Voltage, reading.Current,
		reading.Temperature, reading.DustLevel, reading.Efficiency, reading.Timestamp)
	return err
}

// Range returns readings for a panel at or after since, oldest first.
func (r *SensorRepository) Range(ctx context.Context, panelID string, since time.Time) ([]farm.SensorReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, panel_id, sector_id, voltage, current_amps, temperature, dust_level, efficiency, ts
FROM sensor_data
WHERE panel_id = $1 AND ts >= $2
ORDER BY ts ASC`, panelID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []farm.SensorReading
	for rows.Next() {
		var s farm.SensorReading
		if err := rows.Scan(&s.ID, &s.PanelID, &s.SectorID, &s.Voltage, &s.Current, &s.Temperature, &s.DustLevel, &s.Efficiency, &s.Timestamp); err != nil {
			return nil, err
		}
		s.Timestamp = s.Timestamp.UTC()
		result = append(result, s)
	}
	return result, rows.Err()
}

// CleaningRepository stores cleaning records.
type CleaningRepository struct {
	db *sql.DB
}

// NewCleaningRepository constructs a repository.
func NewCleaningRepository(db *sql.DB) *CleaningRepository {
	return &CleaningRepository{db: db}
}

// Append inserts records in one transaction.
func (r *CleaningRepository) Append(ctx context.Context, records ...farm.CleaningRecord) error {
	if r == nil || r.db == nil {
		return errors.New("cleaning repo: nil db")
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO cleaning_history (
	id, panel_id, sector_id, ts, water_used, duration_seconds, trigger_type,
	pre_cleaning_efficiency, post_cleaning_efficiency
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.PanelID, rec.SectorID, rec.Timestamp, rec.WaterUsedLiters,
			rec.DurationSeconds, string(rec.Trigger), rec.PreCleaningEfficiency, rec.PostCleaningEfficiency); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent returns up to limit records for a panel, newest first.
func (r *CleaningRepository) Recent(ctx context.Context, panelID string, limit int) ([]farm.CleaningRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("cleaning repo: nil db")
	}
	if limit <= 0 {
		limit = farm.RecentCleaningsLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, panel_id, sector_id, ts, water_used, duration_seconds, trigger_type,
	pre_cleaning_efficiency, post_cleaning_efficiency
FROM cleaning_history
WHERE panel_id = $1
ORDER BY ts DESC
LIMIT $2`, panelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []farm.CleaningRecord{}
	for rows.Next() {
		var rec farm.CleaningRecord
		var trigger string
		if err := rows.Scan(&rec.ID, &rec.PanelID, &rec.SectorID, &rec.Timestamp, &rec.WaterUsedLiters,
			&rec.DurationSeconds, &trigger, &rec.PreCleaningEfficiency, &rec.PostCleaningEfficiency); err != nil {
			return nil, err
		}
		rec.Trigger = farm.CleaningTrigger(trigger)
		rec.Timestamp = rec.Timestamp.UTC()
		result = append(result, rec)
	}
	return result, rows.Err()
}

// CountSince counts cleanings per panel at or after since.
func (r *CleaningRepository) CountSince(ctx context.Context, since time.Time) (map[string]int, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("cleaning repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT panel_id, COUNT(*)
FROM cleaning_history
WHERE ts >= $1
GROUP BY panel_id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var panelID string
		var n int
		if err := rows.Scan(&panelID, &n); err != nil {
			return nil, err
		}
		counts[panelID] = n
	}
	return counts, rows.Err()
}

// AnalyticsRepository stores daily panel analytics.
type AnalyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository constructs a repository.
func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// UpsertMany inserts or replaces rows keyed by (panel_id, date).
func (r *AnalyticsRepository) UpsertMany(ctx context.Context, rows []farm.DailyAnalytics) error {
	if r == nil || r.db == nil {
		return errors.New("analytics repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO analytics (
	panel_id, date, sector_id, efficiency, dust_level, power_output_w, needs_cleaning, cleanings, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (panel_id, date) DO UPDATE SET
	sector_id = EXCLUDED.sector_id,
	efficiency = EXCLUDED.efficiency,
	dust_level = EXCLUDED.dust_level,
	power_output_w = EXCLUDED.power_output_w,
	needs_cleaning = EXCLUDED.needs_cleaning,
	cleanings = EXCLUDED.cleanings,
	updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows {
		if row.PanelID == "" || row.Date == "" {
			return errors.New("analytics repo: missing panel id or date")
		}
		if _, err := stmt.ExecContext(ctx, row.PanelID, row.Date, row.SectorID, row.Efficiency, row.DustLevel,
			row.PowerOutputW, row.NeedsCleaning, row.CleaningsToday, row.UpdatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Range returns rows for a panel on or after sinceDate, ascending by date.
func (r *AnalyticsRepository) Range(ctx context.Context, panelID, sinceDate string) ([]farm.DailyAnalytics, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("analytics repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT panel_id, date, sector_id, efficiency, dust_level, power_output_w, needs_cleaning, cleanings, updated_at
FROM analytics
WHERE panel_id = $1 AND date >= $2
ORDER BY date ASC`, panelID, sinceDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []farm.DailyAnalytics
	for rows.Next() {
		var a farm.DailyAnalytics
		if err := rows.Scan(&a.PanelID, &a.Date, &a.SectorID, &a.Efficiency, &a.DustLevel, &a.PowerOutputW,
			&a.NeedsCleaning, &a.CleaningsToday, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.UpdatedAt = a.UpdatedAt.UTC()
		result = append(result, a)
	}
	return result, rows.Err()
}

// AlertRepository stores panel alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert stores an alert.
func (r *AlertRepository) Insert(ctx context.Context, alert farm.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alerts (id, panel_id, sector_id, type, message, severity, value, ts, resolved)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		alert.ID, alert.PanelID, alert.SectorID, alert.Type, alert.Message, alert.Severity,
		alert.Value, alert.Timestamp, alert.Resolved)
	return err
}

// Unresolved returns open alerts, newest first.
func (r *AlertRepository) Unresolved(ctx context.Context) ([]farm.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, panel_id, sector_id, type, message, severity, value, ts, resolved, resolved_at
FROM alerts
WHERE resolved = FALSE
ORDER BY ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []farm.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

// HasUnresolved reports whether the panel has an open alert of the given type.
func (r *AlertRepository) HasUnresolved(ctx context.Context, panelID, alertType string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("alert repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM alerts WHERE panel_id = $1 AND type = $2 AND resolved = FALSE
)`, panelID, alertType).Scan(&exists)
	return exists, err
}

// Resolve marks an alert resolved and returns it.
func (r *AlertRepository) Resolve(ctx context.Context, id string, at time.Time) (farm.Alert, error) {
	if r == nil || r.db == nil {
		return farm.Alert{}, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
UPDATE alerts
SET resolved = TRUE, resolved_at = COALESCE(resolved_at, $2)
WHERE id = $1
RETURNING id, panel_id, sector_id, type, message, severity, value, ts, resolved, resolved_at`, id, at)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return farm.Alert{}, farm.ErrAlertNotFound
	}
	return alert, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (farm.Alert, error) {
	var a farm.Alert
	var resolvedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.PanelID, &a.SectorID, &a.Type, &a.Message, &a.Severity, &a.Value,
		&a.Timestamp, &a.Resolved, &resolvedAt); err != nil {
		return farm.Alert{}, err
	}
	a.Timestamp = a.Timestamp.UTC()
	if resolvedAt.Valid {
		a.ResolvedAt = resolvedAt.Time.UTC()
	}
	return a, nil
}
