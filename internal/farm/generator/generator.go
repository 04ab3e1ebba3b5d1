package generator

import (
	"errors"
	"fmt"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/simrand"
)

const (
	DefaultTotalPanels    = 2700
	DefaultAreaSizeKm     = 10.0
	DefaultSectorsPerSide = 9
	DefaultBaseLat        = 24.4539
	DefaultBaseLng        = 54.3773

	// kmPerDegree approximates one degree of latitude or longitude.
	kmPerDegree      = 111.0
	panelJitterDeg   = 0.005
	sectorJitter     = 3
	maxSectorsSide   = 26
	maxDaysUncleaned = 14
)

// Config controls the shape of a generated farm.
type Config struct {
	TotalPanels    int
	AreaSizeKm     float64
	SectorsPerSide int
	BaseLat        float64
	BaseLng        float64
}

// DefaultConfig returns the standard 2700 panel, 9x9 sector farm.
func DefaultConfig() Config {
	return Config{
		TotalPanels:    DefaultTotalPanels,
		AreaSizeKm:     DefaultAreaSizeKm,
		SectorsPerSide: DefaultSectorsPerSide,
		BaseLat:        DefaultBaseLat,
		BaseLng:        DefaultBaseLng,
	}
}

// Validate checks farm geometry.
func (c Config) Validate() error {
	if c.TotalPanels <= 0 {
		return errors.New("generator: total panels must be positive")
	}
	if c.AreaSizeKm <= 0 {
		return errors.New("generator: area size must be positive")
	}
	if c.SectorsPerSide <= 0 || c.SectorsPerSide > maxSectorsSide {
		return fmt.Errorf("generator: sectors per side must be in 1..%d", maxSectorsSide)
	}
	return nil
}

// Farm is the initial population produced by Generate.
type Farm struct {
	Sectors []farm.Sector
	Panels  []farm.Panel
}

type regime struct {
	cumulative float64
	effLo      float64
	effHi      float64
	dustLo     float64
	dustHi     float64
}

// good 60%, fair 25%, needs attention 15%
var regimes = []regime{
	{cumulative: 0.60, effLo: 88, effHi: 95, dustLo: 100, dustHi: 250},
	{cumulative: 0.85, effLo: 82, effHi: 88, dustLo: 250, dustHi: 350},
	{cumulative: 1.00, effLo: 75, effHi: 82, dustLo: 350, dustHi: 500},
}

// Generate builds sectors in row-major order and the panels inside each of them.
func Generate(cfg Config, rng *simrand.Source, now time.Time) (Farm, error) {
	if err := cfg.Validate(); err != nil {
		return Farm{}, err
	}
	if rng == nil {
		return Farm{}, errors.New("generator: nil random source")
	}

	side := cfg.SectorsPerSide
	totalSectors := side * side
	perSector := cfg.TotalPanels / totalSectors
	sectorSizeKm := cfg.AreaSizeKm / float64(side)
	step := sectorSizeKm / kmPerDegree
	half := float64(side) / 2

	out := Farm{
		Sectors: make([]farm.Sector, 0, totalSectors),
		Panels:  make([]farm.Panel, 0, cfg.TotalPanels+sectorJitter*totalSectors),
	}
	next := 1
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			sector := farm.Sector{
				ID:        farm.SectorCode(row, col),
				Row:       row,
				Col:       col,
				CenterLat: cfg.BaseLat + (float64(row)-half)*step,
				CenterLng: cfg.BaseLng + (float64(col)-half)*step,
			}
			out.Sectors = append(out.Sectors, sector)

			count := perSector + rng.IntRange(-sectorJitter, sectorJitter)
			for i := 0; i < count; i++ {
				out.Panels = append(out.Panels, newPanel(next, sector, rng, now))
				next++
			}
		}
	}
	return out, nil
}

func newPanel(seq int, sector farm.Sector, rng *simrand.Source, now time.Time) farm.Panel {
	lat := sector.CenterLat + rng.Uniform(-panelJitterDeg, panelJitterDeg)
	lng := sector.CenterLng + rng.Uniform(-panelJitterDeg, panelJitterDeg)

	pick := rng.Float64()
	r := regimes[len(regimes)-1]
	for _, candidate := range regimes {
		if pick < candidate.cumulative {
			r = candidate
			break
		}
	}
	efficiency := rng.Uniform(r.effLo, r.effHi)
	dust := rng.Uniform(r.dustLo, r.dustHi)
	days := rng.IntRange(1, maxDaysUncleaned)

	p := farm.Panel{
		ID:               fmt.Sprintf("PNL-%04d", seq),
		SectorID:         sector.ID,
		Location:         farm.Location{Lat: lat, Lng: lng},
		Capacity:         farm.PanelCapacityWatts,
		InstallationDate: farm.InstallationDate,
		Status:           farm.StatusActive,
		DustLevel:        dust,
		LastCleaned:      now.Add(-time.Duration(days) * 24 * time.Hour),
	}
	p.SetEfficiency(efficiency)
	return p
}
