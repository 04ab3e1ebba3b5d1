package farm

import "time"

// Cleaning defaults applied per panel.
const (
	WaterPerCleaningLiters    = 2.3
	CleaningDurationSeconds   = 120
	CleaningHoursPerPanel     = 0.033
	SensorHistoryCapacity     = 10000
	RecentCleaningsLimit      = 10
	DefaultSensorHistoryHours = 24
	DefaultAnalyticsDays      = 7

	// MaxHistoryDays caps history windows so time arithmetic stays in range.
	MaxHistoryDays = 3650
)

type CleaningTrigger string

const (
	TriggerManual    CleaningTrigger = "manual"
	TriggerAutomatic CleaningTrigger = "automatic"
)

// CleaningRecord is an append-only log entry of a single panel cleaning.
type CleaningRecord struct {
	ID                     string          `json:"id"`
	PanelID                string          `json:"panel_id"`
	SectorID               string          `json:"sector_id"`
	Timestamp              time.Time       `json:"timestamp"`
	WaterUsedLiters        float64         `json:"water_used"`
	DurationSeconds        int             `json:"duration"`
	Trigger                CleaningTrigger `json:"type"`
	PreCleaningEfficiency  float64         `json:"pre_cleaning_efficiency"`
	PostCleaningEfficiency float64         `json:"post_cleaning_efficiency"`
}

// SensorReading is a single ingested sensor sample.
type SensorReading struct {
	ID          string    `json:"id"`
	PanelID     string    `json:"panel_id"`
	SectorID    string    `json:"sector_id"`
	Voltage     float64   `json:"voltage"`
	Current     float64   `json:"current"`
	Temperature float64   `json:"temperature"`
	DustLevel   float64   `json:"dust_level"`
	Efficiency  float64   `json:"efficiency"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	AlertDustHigh      = "dust_high"
	AlertEfficiencyLow = "efficiency_low"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert is a panel-level condition raised from sensor data.
type Alert struct {
	ID         string    `json:"id"`
	PanelID    string    `json:"panel_id"`
	SectorID   string    `json:"sector_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Resolved   bool      `json:"resolved"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// DailyAnalytics is the per-panel daily summary keyed by (PanelID, Date).
type DailyAnalytics struct {
	PanelID        string    `json:"panel_id"`
	SectorID       string    `json:"sector_id"`
	Date           string    `json:"date"`
	Efficiency     float64   `json:"efficiency"`
	DustLevel      float64   `json:"dust_level"`
	PowerOutputW   float64   `json:"power_output_w"`
	NeedsCleaning  bool      `json:"needs_cleaning"`
	CleaningsToday int       `json:"cleanings"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DateKey formats t as the analytics date key.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
