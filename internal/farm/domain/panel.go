package farm

import (
	"math"
	"time"
)

// Panel electrical and cleaning thresholds.
const (
	RatedVoltage = 19.5
	// AssumedCurrent is the fixed current draw used for power estimates.
	AssumedCurrent = 5.0
	// RatedCurrent is the expected current at full output, used for sensor efficiency.
	RatedCurrent = 5.5

	MaxDustLevel  = 800.0
	MinEfficiency = 0.0
	MaxEfficiency = 100.0

	DustCleaningThreshold       = 300.0
	EfficiencyCleaningThreshold = 85.0

	PanelCapacityWatts = 500
	InstallationDate   = "2023-01-15"
)

const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
)

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Panel is the live state of a single solar panel.
type Panel struct {
	ID                string    `json:"panel_id"`
	SectorID          string    `json:"sector_id"`
	Location          Location  `json:"location"`
	Capacity          int       `json:"capacity"`
	InstallationDate  string    `json:"installation_date"`
	Status            string    `json:"status"`
	CurrentEfficiency float64   `json:"current_efficiency"`
	DustLevel         float64   `json:"dust_level"`
	Voltage           float64   `json:"voltage"`
	LastCleaned       time.Time `json:"last_cleaned"`
}

// IsActive reports whether the panel takes part in evolution and aggregates.
func (p Panel) IsActive() bool {
	return p.Status == StatusActive
}

// NeedsCleaning applies the canonical needs-cleaning predicate.
func (p Panel) NeedsCleaning() bool {
	return NeedsCleaning(p.DustLevel, p.CurrentEfficiency)
}

// PowerOutput returns the estimated output in watts at the assumed current.
func (p Panel) PowerOutput() float64 {
	return p.Voltage * AssumedCurrent
}

// SetEfficiency updates efficiency and the derived voltage together.
func (p *Panel) SetEfficiency(efficiency float64) {
	p.CurrentEfficiency = efficiency
	p.Voltage = VoltageFor(efficiency)
}

// SetDust stores a dust level clamped to the valid range.
func (p *Panel) SetDust(dust float64) {
	p.DustLevel = Clamp(dust, 0, MaxDustLevel)
}

// NeedsCleaning is true when dust is above 300 or efficiency below 85.
func NeedsCleaning(dust, efficiency float64) bool {
	return dust > DustCleaningThreshold || efficiency < EfficiencyCleaningThreshold
}

// VoltageFor derives the panel voltage from its efficiency.
func VoltageFor(efficiency float64) float64 {
	return RatedVoltage * (efficiency / 100)
}

// SensorEfficiency converts a measured voltage and current into an efficiency percentage.
func SensorEfficiency(voltage, current float64) float64 {
	expected := RatedVoltage * RatedCurrent
	return Clamp(voltage*current/expected*100, MinEfficiency, MaxEfficiency)
}

// Clamp bounds value to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

// PanelView is a panel as surfaced by the API, with the derived cleaning flag.
type PanelView struct {
	Panel
	NeedsCleaning bool `json:"needs_cleaning"`
}

// ViewOf builds a PanelView recomputing needs-cleaning.
func ViewOf(p Panel) PanelView {
	return PanelView{Panel: p, NeedsCleaning: p.NeedsCleaning()}
}

// ViewsOf maps ViewOf over panels.
func ViewsOf(panels []Panel) []PanelView {
	views := make([]PanelView, 0, len(panels))
	for _, p := range panels {
		views = append(views, ViewOf(p))
	}
	return views
}
