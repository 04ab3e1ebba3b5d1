package application

import (
	"fmt"
	"testing"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func makePanel(n int, sector string, efficiency, dust float64) farm.Panel {
	p := farm.Panel{
		ID:               fmt.Sprintf("PNL-%04d", n),
		SectorID:         sector,
		Capacity:         farm.PanelCapacityWatts,
		InstallationDate: farm.InstallationDate,
		Status:           farm.StatusActive,
		DustLevel:        dust,
		LastCleaned:      fixedNow.Add(-72 * time.Hour),
	}
	p.SetEfficiency(efficiency)
	return p
}

// uniformStore builds sectors with size panels each at the given state.
func uniformStore(t *testing.T, sectors []string, size int, efficiency, dust float64) *memory.Store {
	t.Helper()
	var ss []farm.Sector
	var panels []farm.Panel
	n := 1
	for i, id := range sectors {
		ss = append(ss, farm.Sector{ID: id, Row: 0, Col: i})
		for j := 0; j < size; j++ {
			panels = append(panels, makePanel(n, id, efficiency, dust))
			n++
		}
	}
	store, err := memory.NewStore(ss, panels)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

var memoryFilterAll = memory.Filter{}
