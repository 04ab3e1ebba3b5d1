package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
)

// Aggregation constants.
const (
	rankedSectors       = 5
	hoursPerDay         = 24
	alertEfficiencyMin  = 85.0
	alertEfficiencyHigh = 80.0
	alertNeedShare      = 0.5
	maxSectorAlerts     = 20
	maxAttentionSectors = 10

	scoreDustWeight       = 0.4
	scoreTimeWeight       = 0.3
	scoreEfficiencyWeight = 0.3
	scoreDustNorm         = 500.0
	scoreDaysNorm         = 14.0
	scoreThreshold        = 0.5
	predictionConfidence  = 0.89

	// PlaceholderDaysSinceCleaning is used when last-cleaned tracking is disabled.
	PlaceholderDaysSinceCleaning = 7.0

	sectorAlertType = "sector_performance"
)

var (
	pricePerKWh        = decimal.RequireFromString("0.05")
	cleaningCostEach   = decimal.RequireFromString("0.50")
	revenueGainEach    = decimal.RequireFromString("2.50")
	wattsPerKilowatt   = decimal.NewFromInt(1000)
	wattsPerMegawatt   = decimal.NewFromInt(1_000_000)
	hoursPerDayDecimal = decimal.NewFromInt(hoursPerDay)
)

// SectorStats is a sector with aggregates recomputed from its live panels.
type SectorStats struct {
	farm.Sector
	PanelCount            int     `json:"panel_count"`
	ActivePanels          int     `json:"active_panels"`
	TotalCapacity         int     `json:"total_capacity"`
	AverageEfficiency     float64 `json:"average_efficiency"`
	PanelsNeedingCleaning int     `json:"panels_needing_cleaning"`
	TotalPowerOutput      float64 `json:"total_power_output"`
	AverageDustLevel      float64 `json:"average_dust_level"`
}

// SectorRank is one entry of the best/worst rankings.
type SectorRank struct {
	SectorID   string  `json:"sector_id"`
	Efficiency float64 `json:"efficiency"`
	PanelCount int     `json:"panel_count"`
}

// FarmStatistics summarizes the active panel population.
type FarmStatistics struct {
	TotalPanels           int          `json:"total_panels"`
	TotalSectors          int          `json:"total_sectors"`
	ActivePanels          int          `json:"active_panels"`
	OverallEfficiency     float64      `json:"overall_efficiency"`
	PanelsNeedingCleaning int          `json:"panels_needing_cleaning"`
	CleaningPercentage    float64      `json:"cleaning_percentage"`
	TotalPowerOutputKW    float64      `json:"total_power_output_kw"`
	TotalPowerOutputMW    float64      `json:"total_power_output_mw"`
	TotalCapacityMW       float64      `json:"total_capacity_mw"`
	BestSectors           []SectorRank `json:"best_performing_sectors"`
	WorstSectors          []SectorRank `json:"worst_performing_sectors"`
	EstimatedDailyRevenue float64      `json:"estimated_daily_revenue"`
}

// ROIAnalysis holds the fixed-rate cleaning economics.
type ROIAnalysis struct {
	CleaningCost        float64 `json:"cleaning_cost"`
	ExpectedRevenueGain float64 `json:"expected_revenue_gain"`
	NetBenefit          float64 `json:"net_benefit"`
}

// Prediction is the cleaning-need estimate for a sector or a single panel.
type Prediction struct {
	SectorID                  string      `json:"sector_id,omitempty"`
	PanelID                   string      `json:"panel_id,omitempty"`
	CleaningScore             float64     `json:"cleaning_score"`
	ShouldClean               bool        `json:"should_clean"`
	Confidence                float64     `json:"confidence"`
	DaysSinceCleaning         float64     `json:"days_since_cleaning"`
	PanelsNeedingCleaning     int         `json:"panels_needing_cleaning"`
	PercentageNeedingCleaning float64     `json:"percentage_needing_cleaning"`
	EstimatedWaterUsage       float64     `json:"estimated_water_usage"`
	EstimatedTimeHours        float64     `json:"estimated_time_hours"`
	Recommendation            string      `json:"recommendation"`
	ROI                       ROIAnalysis `json:"roi_analysis"`

	score float64
}

// Score returns the unrounded cleaning score.
func (p Prediction) Score() float64 {
	return p.score
}

// PanelPredictionInput overrides live panel values; nil fields use the panel's state.
type PanelPredictionInput struct {
	PanelID           string   `json:"panel_id"`
	DustLevel         *float64 `json:"dust_level"`
	DaysSinceCleaning *float64 `json:"days_since_cleaning"`
	CurrentEfficiency *float64 `json:"current_efficiency"`
}

// SectorAlert flags an underperforming sector.
type SectorAlert struct {
	SectorID       string  `json:"sector_id"`
	Type           string  `json:"type"`
	Severity       string  `json:"severity"`
	Message        string  `json:"message"`
	AvgEfficiency  float64 `json:"avg_efficiency"`
	PanelsAffected int     `json:"panels_affected"`
}

// AlertSummary ranks sector alerts.
type AlertSummary struct {
	TotalAlerts             int           `json:"total_alerts"`
	HighPrioritySectors     int           `json:"high_priority_sectors"`
	SectorsNeedingAttention []string      `json:"sectors_needing_attention"`
	Alerts                  []SectorAlert `json:"alerts"`
}

// Overview bundles aggregates and panels observed from one store snapshot.
type Overview struct {
	At         time.Time
	Statistics FarmStatistics
	Sectors    []SectorStats
	Panels     []farm.Panel
}

// AnalyticsOptions tune aggregation behavior.
type AnalyticsOptions struct {
	// UseLastCleaned derives days-since-cleaning from panel timestamps instead of the placeholder.
	UseLastCleaned bool
}

// AnalyticsService computes aggregates, rankings and predictions from the live store.
type AnalyticsService struct {
	store   *memory.Store
	history AnalyticsLog
	opts    AnalyticsOptions
	clock   Clock
}

// NewAnalyticsService constructs an analytics service. history may be nil when daily rows are not kept.
func NewAnalyticsService(store *memory.Store, history AnalyticsLog, opts AnalyticsOptions, clock Clock) (*AnalyticsService, error) {
	if store == nil {
		return nil, errors.New("analytics: nil store")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &AnalyticsService{store: store, history: history, opts: opts, clock: clock}, nil
}

// Sectors returns every sector with fresh aggregates in grid order.
func (s *AnalyticsService) Sectors() []SectorStats {
	sectors, panels := s.store.Snapshot()
	return aggregateSectors(sectors, panels)
}

// SectorStats returns aggregates for one sector.
func (s *AnalyticsService) SectorStats(sectorID string) (SectorStats, error) {
	sector, ok := s.store.Sector(sectorID)
	panels := s.store.BySector(sectorID)
	if !ok || len(panels) == 0 {
		return SectorStats{}, farm.ErrSectorNotFound
	}
	return aggregateSector(sector, panels), nil
}

// FarmStatistics summarizes the farm.
func (s *AnalyticsService) FarmStatistics() FarmStatistics {
	sectors, panels := s.store.Snapshot()
	return farmStatistics(aggregateSectors(sectors, panels), panels)
}

// Overview returns statistics, sector aggregates and panels from one snapshot.
func (s *AnalyticsService) Overview() Overview {
	sectors, panels := s.store.Snapshot()
	stats := aggregateSectors(sectors, panels)
	return Overview{
		At:         s.clock.Now(),
		Statistics: farmStatistics(stats, panels),
		Sectors:    stats,
		Panels:     panels,
	}
}

// PredictSector scores the cleaning need of a sector.
func (s *AnalyticsService) PredictSector(sectorID string) (Prediction, error) {
	panels := s.store.BySector(sectorID)
	if len(panels) == 0 {
		return Prediction{}, farm.ErrSectorNotFound
	}
	var dust, efficiency, days float64
	active, needing := 0, 0
	now := s.clock.Now()
	for _, p := range panels {
		if !p.IsActive() {
			continue
		}
		active++
		dust += p.DustLevel
		efficiency += p.CurrentEfficiency
		days += daysSince(p.LastCleaned, now)
		if p.NeedsCleaning() {
			needing++
		}
	}
	if active == 0 {
		pred := buildPrediction(0, 0, 0, len(panels))
		pred.SectorID = sectorID
		pred.Recommendation = "Monitor sector for 48 hours"
		return pred, nil
	}
	n := float64(active)
	avgDays := PlaceholderDaysSinceCleaning
	if s.opts.UseLastCleaned {
		avgDays = days / n
	}
	pred := buildPrediction(cleaningScore(dust/n, avgDays, efficiency/n), avgDays, needing, len(panels))
	pred.SectorID = sectorID
	if pred.ShouldClean {
		pred.Recommendation = fmt.Sprintf("Clean %d panels in sector %s", needing, sectorID)
	} else {
		pred.Recommendation = "Monitor sector for 48 hours"
	}
	return pred, nil
}

// PredictPanel scores a single panel, optionally with caller-supplied values.
func (s *AnalyticsService) PredictPanel(in PanelPredictionInput) (Prediction, error) {
	p, err := s.store.Get(in.PanelID)
	if err != nil {
		return Prediction{}, err
	}
	dust := p.DustLevel
	if in.DustLevel != nil {
		dust = *in.DustLevel
	}
	efficiency := p.CurrentEfficiency
	if in.CurrentEfficiency != nil {
		efficiency = *in.CurrentEfficiency
	}
	days := PlaceholderDaysSinceCleaning
	if s.opts.UseLastCleaned {
		days = daysSince(p.LastCleaned, s.clock.Now())
	}
	if in.DaysSinceCleaning != nil {
		days = *in.DaysSinceCleaning
	}
	if err := validatePrediction(dust, days, efficiency); err != nil {
		return Prediction{}, err
	}
	needing := 0
	if farm.NeedsCleaning(dust, efficiency) {
		needing = 1
	}
	pred := buildPrediction(cleaningScore(dust, days, efficiency), days, needing, 1)
	pred.PanelID = p.ID
	pred.SectorID = p.SectorID
	if pred.ShouldClean {
		pred.Recommendation = fmt.Sprintf("Clean panel %s", p.ID)
	} else {
		pred.Recommendation = "Monitor panel for 48 hours"
	}
	return pred, nil
}

// AlertSummary lists underperforming sectors, high severity first.
func (s *AnalyticsService) AlertSummary() AlertSummary {
	var alerts []SectorAlert
	for _, st := range s.Sectors() {
		if st.ActivePanels == 0 {
			continue
		}
		if st.AverageEfficiency >= alertEfficiencyMin && float64(st.PanelsNeedingCleaning) <= alertNeedShare*float64(st.PanelCount) {
			continue
		}
		severity := farm.SeverityMedium
		if st.AverageEfficiency < alertEfficiencyHigh {
			severity = farm.SeverityHigh
		}
		alerts = append(alerts, SectorAlert{
			SectorID:       st.ID,
			Type:           sectorAlertType,
			Severity:       severity,
			Message:        fmt.Sprintf("Sector %s: %d panels need cleaning", st.ID, st.PanelsNeedingCleaning),
			AvgEfficiency:  round2(st.AverageEfficiency),
			PanelsAffected: st.PanelsNeedingCleaning,
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		hi, hj := alerts[i].Severity == farm.SeverityHigh, alerts[j].Severity == farm.SeverityHigh
		if hi != hj {
			return hi
		}
		return alerts[i].PanelsAffected > alerts[j].PanelsAffected
	})

	summary := AlertSummary{TotalAlerts: len(alerts), SectorsNeedingAttention: []string{}, Alerts: []SectorAlert{}}
	for i, a := range alerts {
		if a.Severity == farm.SeverityHigh {
			summary.HighPrioritySectors++
		}
		if i < maxAttentionSectors {
			summary.SectorsNeedingAttention = append(summary.SectorsNeedingAttention, a.SectorID)
		}
		if i < maxSectorAlerts {
			summary.Alerts = append(summary.Alerts, a)
		}
	}
	return summary
}

// PanelAnalytics returns daily rows for a panel covering the last days, ascending by date.
func (s *AnalyticsService) PanelAnalytics(ctx context.Context, panelID string, days int) ([]farm.DailyAnalytics, error) {
	if _, err := s.store.Get(panelID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = farm.DefaultAnalyticsDays
	}
	days = min(days, farm.MaxHistoryDays)
	if s.history == nil {
		return []farm.DailyAnalytics{}, nil
	}
	since := farm.DateKey(s.clock.Now().AddDate(0, 0, -days))
	rows, err := s.history.Range(ctx, panelID, since)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []farm.DailyAnalytics{}
	}
	return rows, nil
}

func aggregateSectors(sectors []farm.Sector, panels []farm.Panel) []SectorStats {
	bySector := make(map[string][]farm.Panel, len(sectors))
	for _, p := range panels {
		bySector[p.SectorID] = append(bySector[p.SectorID], p)
	}
	out := make([]SectorStats, 0, len(sectors))
	for _, sector := range sectors {
		out = append(out, aggregateSector(sector, bySector[sector.ID]))
	}
	return out
}

func aggregateSector(sector farm.Sector, panels []farm.Panel) SectorStats {
	st := SectorStats{Sector: sector, PanelCount: len(panels)}
	var efficiency, dust float64
	for _, p := range panels {
		st.TotalCapacity += p.Capacity
		if !p.IsActive() {
			continue
		}
		st.ActivePanels++
		efficiency += p.CurrentEfficiency
		dust += p.DustLevel
		st.TotalPowerOutput += p.PowerOutput()
		if p.NeedsCleaning() {
			st.PanelsNeedingCleaning++
		}
	}
	if st.ActivePanels > 0 {
		st.AverageEfficiency = efficiency / float64(st.ActivePanels)
		st.AverageDustLevel = dust / float64(st.ActivePanels)
	}
	return st
}

func farmStatistics(sectors []SectorStats, panels []farm.Panel) FarmStatistics {
	stats := FarmStatistics{TotalPanels: len(panels), TotalSectors: len(sectors)}
	var efficiency, power float64
	capacity := 0
	for _, p := range panels {
		capacity += p.Capacity
		if !p.IsActive() {
			continue
		}
		stats.ActivePanels++
		efficiency += p.CurrentEfficiency
		power += p.PowerOutput()
		if p.NeedsCleaning() {
			stats.PanelsNeedingCleaning++
		}
	}
	if stats.ActivePanels > 0 {
		stats.OverallEfficiency = round2(efficiency / float64(stats.ActivePanels))
	}
	if stats.TotalPanels > 0 {
		stats.CleaningPercentage = round2(float64(stats.PanelsNeedingCleaning) / float64(stats.TotalPanels) * 100)
	}

	watts := decimal.NewFromFloat(power)
	kw := watts.Div(wattsPerKilowatt)
	stats.TotalPowerOutputKW = kw.Round(2).InexactFloat64()
	stats.TotalPowerOutputMW = watts.Div(wattsPerMegawatt).Round(2).InexactFloat64()
	stats.TotalCapacityMW = decimal.NewFromInt(int64(capacity)).Div(wattsPerMegawatt).InexactFloat64()
	stats.EstimatedDailyRevenue = kw.Mul(hoursPerDayDecimal).Mul(pricePerKWh).Round(2).InexactFloat64()

	ranked := make([]SectorRank, 0, len(sectors))
	for _, st := range sectors {
		if st.ActivePanels == 0 {
			continue
		}
		ranked = append(ranked, SectorRank{SectorID: st.ID, Efficiency: st.AverageEfficiency, PanelCount: st.PanelCount})
	}
	best := append([]SectorRank(nil), ranked...)
	sort.SliceStable(best, func(i, j int) bool { return best[i].Efficiency > best[j].Efficiency })
	worst := append([]SectorRank(nil), ranked...)
	sort.SliceStable(worst, func(i, j int) bool { return worst[i].Efficiency < worst[j].Efficiency })
	stats.BestSectors = head(best, rankedSectors)
	stats.WorstSectors = head(worst, rankedSectors)
	return stats
}

func head(ranks []SectorRank, n int) []SectorRank {
	if len(ranks) > n {
		return ranks[:n]
	}
	return ranks
}

func cleaningScore(avgDust, days, avgEfficiency float64) float64 {
	dustScore := math.Min(avgDust/scoreDustNorm, 1) * scoreDustWeight
	timeScore := math.Min(days/scoreDaysNorm, 1) * scoreTimeWeight
	efficiencyScore := math.Max(0, (100-avgEfficiency)/100) * scoreEfficiencyWeight
	return dustScore + timeScore + efficiencyScore
}

func buildPrediction(score, days float64, needing, size int) Prediction {
	n := decimal.NewFromInt(int64(needing))
	cost := n.Mul(cleaningCostEach)
	gain := n.Mul(revenueGainEach)
	pred := Prediction{
		CleaningScore:         round2(score),
		ShouldClean:           score > scoreThreshold,
		Confidence:            predictionConfidence,
		DaysSinceCleaning:     round2(days),
		PanelsNeedingCleaning: needing,
		EstimatedWaterUsage:   round2(float64(needing) * farm.WaterPerCleaningLiters),
		EstimatedTimeHours:    round2(float64(needing) * farm.CleaningHoursPerPanel),
		ROI: ROIAnalysis{
			CleaningCost:        cost.Round(2).InexactFloat64(),
			ExpectedRevenueGain: gain.Round(2).InexactFloat64(),
			NetBenefit:          gain.Sub(cost).Round(2).InexactFloat64(),
		},
		score: score,
	}
	if size > 0 {
		pred.PercentageNeedingCleaning = round2(float64(needing) / float64(size) * 100)
	}
	return pred
}

func validatePrediction(dust, days, efficiency float64) error {
	switch {
	case math.IsNaN(dust) || dust < 0 || dust > farm.MaxDustLevel:
		return fmt.Errorf("%w: dust_level must be within [0,%v]", farm.ErrInvalidReading, farm.MaxDustLevel)
	case math.IsNaN(days) || days < 0:
		return fmt.Errorf("%w: days_since_cleaning must be non-negative", farm.ErrInvalidReading)
	case math.IsNaN(efficiency) || efficiency < farm.MinEfficiency || efficiency > farm.MaxEfficiency:
		return fmt.Errorf("%w: current_efficiency must be within [0,100]", farm.ErrInvalidReading)
	}
	return nil
}

func daysSince(t, now time.Time) float64 {
	if t.IsZero() || t.After(now) {
		return 0
	}
	return now.Sub(t).Hours() / hoursPerDay
}
