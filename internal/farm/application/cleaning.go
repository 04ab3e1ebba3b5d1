package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/farm/simrand"
	"solarfarm-cloud/internal/observability/metrics"
)

const (
	cleanedDustMin       = 50.0
	cleanedDustMax       = 150.0
	cleanedEfficiencyMin = 92.0
	cleanedEfficiencyMax = 98.0
	sectorGainPoints     = 10.0

	statusCompleted = "completed"
)

// PanelCleanResult is returned by CleanPanel.
type PanelCleanResult struct {
	Message           string  `json:"message"`
	PanelID           string  `json:"panel_id"`
	RecordID          string  `json:"record_id"`
	EstimatedDuration int     `json:"estimated_duration"`
	WaterUsage        float64 `json:"water_usage"`
	Status            string  `json:"status"`
	NewEfficiency     float64 `json:"new_efficiency"`
	NewDustLevel      float64 `json:"new_dust_level"`
}

// SectorCleanResult is returned by CleanSector.
type SectorCleanResult struct {
	SectorID                string               `json:"sector_id"`
	PanelsCleaned           int                  `json:"panels_cleaned"`
	TotalWaterUsed          float64              `json:"total_water_used"`
	EstimatedEfficiencyGain float64              `json:"estimated_efficiency_gain"`
	Status                  string               `json:"status"`
	Trigger                 farm.CleaningTrigger `json:"trigger"`
}

// CleaningService resets panel soiling and records each cleaning.
type CleaningService struct {
	store  *memory.Store
	log    CleaningLog
	rng    *simrand.Source
	clock  Clock
	logger *log.Logger
}

// CleaningOption customizes the cleaning service.
type CleaningOption func(*CleaningService)

// WithCleaningClock assigns a clock.
func WithCleaningClock(clock Clock) CleaningOption {
	return func(s *CleaningService) {
		s.clock = clock
	}
}

// NewCleaningService constructs a cleaning service.
func NewCleaningService(store *memory.Store, records CleaningLog, rng *simrand.Source, logger *log.Logger, opts ...CleaningOption) (*CleaningService, error) {
	if store == nil {
		return nil, errors.New("cleaning: nil store")
	}
	if records == nil {
		return nil, errors.New("cleaning: nil cleaning log")
	}
	if rng == nil {
		return nil, errors.New("cleaning: nil random source")
	}
	s := &CleaningService{store: store, log: records, rng: rng, clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CleanPanel cleans one panel unconditionally.
func (s *CleaningService) CleanPanel(ctx context.Context, panelID string) (PanelCleanResult, error) {
	now := s.clock.Now()
	var pre float64
	p, err := s.store.Update(panelID, func(p *farm.Panel) {
		pre = p.CurrentEfficiency
		s.reset(p, now)
	})
	if err != nil {
		return PanelCleanResult{}, err
	}
	record := s.record(p, pre, now, farm.TriggerManual)
	s.persist(ctx, record)
	metrics.AddCleanings(string(farm.TriggerManual), 1)

	return PanelCleanResult{
		Message:           fmt.Sprintf("Cleaning initiated for panel %s", panelID),
		PanelID:           panelID,
		RecordID:          record.ID,
		EstimatedDuration: farm.CleaningDurationSeconds,
		WaterUsage:        farm.WaterPerCleaningLiters,
		Status:            statusCompleted,
		NewEfficiency:     p.CurrentEfficiency,
		NewDustLevel:      p.DustLevel,
	}, nil
}

// CleanSector cleans every panel of the sector that needs cleaning.
func (s *CleaningService) CleanSector(ctx context.Context, sectorID string) (SectorCleanResult, error) {
	return s.CleanSectorWith(ctx, sectorID, farm.TriggerManual)
}

// CleanSectorWith is CleanSector with an explicit trigger.
func (s *CleaningService) CleanSectorWith(ctx context.Context, sectorID string, trigger farm.CleaningTrigger) (SectorCleanResult, error) {
	now := s.clock.Now()
	pre := make(map[string]float64)
	cleaned, total, err := s.store.UpdateSector(sectorID, func(p *farm.Panel) bool {
		if !p.NeedsCleaning() {
			return false
		}
		pre[p.ID] = p.CurrentEfficiency
		s.reset(p, now)
		return true
	})
	if err != nil {
		return SectorCleanResult{}, err
	}

	records := make([]farm.CleaningRecord, 0, len(cleaned))
	for _, p := range cleaned {
		records = append(records, s.record(p, pre[p.ID], now, trigger))
	}
	s.persist(ctx, records...)
	metrics.AddCleanings(string(trigger), len(cleaned))

	return SectorCleanResult{
		SectorID:                sectorID,
		PanelsCleaned:           len(cleaned),
		TotalWaterUsed:          round2(farm.WaterPerCleaningLiters * float64(len(cleaned))),
		EstimatedEfficiencyGain: round2(sectorGainPoints * float64(len(cleaned)) / float64(total)),
		Status:                  statusCompleted,
		Trigger:                 trigger,
	}, nil
}

// History returns the most recent cleanings of a panel, newest first.
func (s *CleaningService) History(ctx context.Context, panelID string) ([]farm.CleaningRecord, error) {
	if _, err := s.store.Get(panelID); err != nil {
		return nil, err
	}
	records, err := s.log.Recent(ctx, panelID, farm.RecentCleaningsLimit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []farm.CleaningRecord{}
	}
	return records, nil
}

func (s *CleaningService) reset(p *farm.Panel, now time.Time) {
	p.SetDust(s.rng.Uniform(cleanedDustMin, cleanedDustMax))
	p.SetEfficiency(s.rng.Uniform(cleanedEfficiencyMin, cleanedEfficiencyMax))
	p.LastCleaned = now
}

func (s *CleaningService) record(p farm.Panel, pre float64, now time.Time, trigger farm.CleaningTrigger) farm.CleaningRecord {
	return farm.CleaningRecord{
		ID:                     uuid.NewString(),
		PanelID:                p.ID,
		SectorID:               p.SectorID,
		Timestamp:              now,
		WaterUsedLiters:        farm.WaterPerCleaningLiters,
		DurationSeconds:        farm.CleaningDurationSeconds,
		Trigger:                trigger,
		PreCleaningEfficiency:  pre,
		PostCleaningEfficiency: p.CurrentEfficiency,
	}
}

// persist never rolls back the store; a failed write is logged and counted.
func (s *CleaningService) persist(ctx context.Context, records ...farm.CleaningRecord) {
	if len(records) == 0 {
		return
	}
	if err := s.log.Append(ctx, records...); err != nil {
		metrics.IncPersistenceError("cleaning_history")
		if s.logger != nil {
			s.logger.Printf("cleaning: persist records failed: count=%d err=%v", len(records), err)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
