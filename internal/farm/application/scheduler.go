package application

import (
	"context"
	"errors"
	"log"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/observability/metrics"
)

// AutoCleaner cleans sectors whose predicted score exceeds a threshold.
type AutoCleaner struct {
	analytics *AnalyticsService
	cleaning  *CleaningService
	store     *memory.Store
	threshold float64
	logger    *log.Logger
}

// NewAutoCleaner constructs an automatic cleaning scheduler.
func NewAutoCleaner(analytics *AnalyticsService, cleaning *CleaningService, store *memory.Store, threshold float64, logger *log.Logger) (*AutoCleaner, error) {
	if analytics == nil || cleaning == nil || store == nil {
		return nil, errors.New("autoclean: nil dependency")
	}
	if threshold <= 0 {
		threshold = scoreThreshold
	}
	return &AutoCleaner{analytics: analytics, cleaning: cleaning, store: store, threshold: threshold, logger: logger}, nil
}

// Start runs RunOnce every interval until ctx is cancelled.
func (a *AutoCleaner) Start(ctx context.Context, interval time.Duration) {
	if a == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// RunOnce evaluates every sector and returns the results of the sectors it cleaned.
func (a *AutoCleaner) RunOnce(ctx context.Context) []SectorCleanResult {
	var results []SectorCleanResult
	for _, sector := range a.store.Sectors() {
		if ctx.Err() != nil {
			return results
		}
		pred, err := a.analytics.PredictSector(sector.ID)
		if err != nil || pred.Score() <= a.threshold || pred.PanelsNeedingCleaning == 0 {
			continue
		}
		res, err := a.cleaning.CleanSectorWith(ctx, sector.ID, farm.TriggerAutomatic)
		if err != nil {
			if a.logger != nil {
				a.logger.Printf("autoclean: sector clean failed: sector=%s err=%v", sector.ID, err)
			}
			continue
		}
		if a.logger != nil {
			a.logger.Printf("autoclean: sector cleaned: sector=%s panels=%d score=%.2f", sector.ID, res.PanelsCleaned, pred.Score())
		}
		results = append(results, res)
	}
	return results
}

// Snapshotter writes the daily analytics rows and, when configured, the panel state.
type Snapshotter struct {
	store     *memory.Store
	analytics AnalyticsLog
	cleanings CleaningLog
	state     PanelStateSink
	clock     Clock
	logger    *log.Logger
}

// NewSnapshotter constructs a snapshotter. state may be nil.
func NewSnapshotter(store *memory.Store, analytics AnalyticsLog, cleanings CleaningLog, state PanelStateSink, clock Clock, logger *log.Logger) (*Snapshotter, error) {
	if store == nil || analytics == nil || cleanings == nil {
		return nil, errors.New("snapshot: nil dependency")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Snapshotter{store: store, analytics: analytics, cleanings: cleanings, state: state, clock: clock, logger: logger}, nil
}

// Start runs RunOnce every interval until ctx is cancelled.
func (s *Snapshotter) Start(ctx context.Context, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && s.logger != nil {
				s.logger.Printf("snapshot: run failed: err=%v", err)
			}
		}
	}
}

// RunOnce upserts one analytics row per panel for the current day.
func (s *Snapshotter) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	_, panels := s.store.Snapshot()

	counts, err := s.cleanings.CountSince(ctx, dayStart)
	if err != nil {
		metrics.IncPersistenceError("cleaning_history")
		return err
	}

	var efficiency float64
	active, needing := 0, 0
	date := farm.DateKey(now)
	rows := make([]farm.DailyAnalytics, 0, len(panels))
	for _, p := range panels {
		rows = append(rows, farm.DailyAnalytics{
			PanelID:        p.ID,
			SectorID:       p.SectorID,
			Date:           date,
			Efficiency:     p.CurrentEfficiency,
			DustLevel:      p.DustLevel,
			PowerOutputW:   p.PowerOutput(),
			NeedsCleaning:  p.NeedsCleaning(),
			CleaningsToday: counts[p.ID],
			UpdatedAt:      now,
		})
		if p.IsActive() {
			active++
			efficiency += p.CurrentEfficiency
			if p.NeedsCleaning() {
				needing++
			}
		}
	}
	if active > 0 {
		metrics.SetFarmGauges(round2(efficiency/float64(active)), needing)
	}

	if err := s.analytics.UpsertMany(ctx, rows); err != nil {
		metrics.IncPersistenceError("analytics")
		return err
	}
	if s.state != nil {
		if err := s.state.SaveState(ctx, panels); err != nil {
			metrics.IncPersistenceError("panels")
			return err
		}
	}
	return nil
}
