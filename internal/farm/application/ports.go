package application

import (
	"context"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
)

// CleaningLog stores cleaning records.
type CleaningLog interface {
	Append(ctx context.Context, records ...farm.CleaningRecord) error
	Recent(ctx context.Context, panelID string, limit int) ([]farm.CleaningRecord, error)
	CountSince(ctx context.Context, since time.Time) (map[string]int, error)
}

// SensorLog stores ingested sensor readings.
type SensorLog interface {
	Append(ctx context.Context, reading farm.SensorReading) error
	Range(ctx context.Context, panelID string, since time.Time) ([]farm.SensorReading, error)
}

// AlertLog stores panel alerts.
type AlertLog interface {
	Insert(ctx context.Context, alert farm.Alert) error
	Unresolved(ctx context.Context) ([]farm.Alert, error)
	HasUnresolved(ctx context.Context, panelID, alertType string) (bool, error)
	Resolve(ctx context.Context, id string, at time.Time) (farm.Alert, error)
}

// AlertNotifier is told about each newly raised alert.
type AlertNotifier interface {
	Notify(ctx context.Context, alert farm.Alert)
}

// AnalyticsLog stores daily per-panel analytics.
type AnalyticsLog interface {
	UpsertMany(ctx context.Context, rows []farm.DailyAnalytics) error
	Range(ctx context.Context, panelID, sinceDate string) ([]farm.DailyAnalytics, error)
}

// PanelStateSink persists the live panel state.
type PanelStateSink interface {
	SaveState(ctx context.Context, panels []farm.Panel) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}
