package feed

import (
	"math"
	"time"

	"solarfarm-cloud/internal/farm/application"
	"solarfarm-cloud/internal/farm/simrand"
)

const (
	sampleSize      = 50
	sentPanels      = 10
	summarySectors  = 9
	weatherClear    = "clear"
	baseCurrent     = 5.0
	currentJitter   = 0.3
	baseTemperature = 32.0
	panelTempJitter = 3.0
	airTempJitter   = 2.0
	baseHumidity    = 45.0
	humidityJitter  = 5.0
	baseWindSpeed   = 3.5
	windJitter      = 1.0
)

// Snapshot is one push of the live feed.
type Snapshot struct {
	Timestamp       time.Time       `json:"timestamp"`
	FarmStatistics  FarmPulse       `json:"farm_statistics"`
	SectorSummaries []SectorSummary `json:"sector_summaries"`
	SamplePanels    []SamplePanel   `json:"sample_panels"`
	Weather         Weather         `json:"weather"`
}

// FarmPulse is the compact farm summary carried by each snapshot.
type FarmPulse struct {
	TotalEfficiency       float64 `json:"total_efficiency"`
	PanelsNeedingCleaning int     `json:"panels_needing_cleaning"`
	TotalPowerOutputMW    float64 `json:"total_power_output_mw"`
	CleaningPercentage    float64 `json:"cleaning_percentage"`
}

// SectorSummary is a per-sector entry of the feed.
type SectorSummary struct {
	SectorID              string  `json:"sector_id"`
	Efficiency            float64 `json:"efficiency"`
	PanelsNeedingCleaning int     `json:"panels_needing_cleaning"`
}

// SamplePanel is a sampled panel with synthesized current and temperature.
type SamplePanel struct {
	ID          string  `json:"id"`
	Sector      string  `json:"sector"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Efficiency  float64 `json:"efficiency"`
	DustLevel   float64 `json:"dust_level"`
	Temperature float64 `json:"temperature"`
	PowerOutput float64 `json:"power_output"`
}

// Weather is synthesized site weather.
type Weather struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Conditions  string  `json:"conditions"`
}

// Composer builds snapshots from aggregate overviews.
type Composer struct {
	rng *simrand.Source
}

// NewComposer constructs a composer.
func NewComposer(rng *simrand.Source) *Composer {
	return &Composer{rng: rng}
}

// Compose builds a snapshot from one consistent overview.
func (c *Composer) Compose(ov application.Overview) Snapshot {
	stats := ov.Statistics
	snap := Snapshot{
		Timestamp: ov.At,
		FarmStatistics: FarmPulse{
			TotalEfficiency:       stats.OverallEfficiency,
			PanelsNeedingCleaning: stats.PanelsNeedingCleaning,
			TotalPowerOutputMW:    stats.TotalPowerOutputMW,
			CleaningPercentage:    stats.CleaningPercentage,
		},
		SectorSummaries: make([]SectorSummary, 0, summarySectors),
		SamplePanels:    make([]SamplePanel, 0, sentPanels),
	}

	for i, st := range ov.Sectors {
		if i >= summarySectors {
			break
		}
		if st.PanelCount == 0 {
			continue
		}
		snap.SectorSummaries = append(snap.SectorSummaries, SectorSummary{
			SectorID:              st.ID,
			Efficiency:            round(st.AverageEfficiency, 1),
			PanelsNeedingCleaning: st.PanelsNeedingCleaning,
		})
	}

	sample := c.rng.Sample(len(ov.Panels), sampleSize)
	for i, idx := range sample {
		if i >= sentPanels {
			break
		}
		p := ov.Panels[idx]
		snap.SamplePanels = append(snap.SamplePanels, SamplePanel{
			ID:          p.ID,
			Sector:      p.SectorID,
			Voltage:     round(p.Voltage, 2),
			Current:     round(jitter(c.rng, baseCurrent, currentJitter), 2),
			Efficiency:  round(p.CurrentEfficiency, 1),
			DustLevel:   round(p.DustLevel, 0),
			Temperature: round(jitter(c.rng, baseTemperature, panelTempJitter), 1),
			PowerOutput: round(p.PowerOutput(), 1),
		})
	}

	snap.Weather = Weather{
		Temperature: round(jitter(c.rng, baseTemperature, airTempJitter), 1),
		Humidity:    round(jitter(c.rng, baseHumidity, humidityJitter), 0),
		WindSpeed:   round(jitter(c.rng, baseWindSpeed, windJitter), 1),
		Conditions:  weatherClear,
	}
	return snap
}

func jitter(rng *simrand.Source, base, spread float64) float64 {
	return base + rng.Uniform(-spread, spread)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
