package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/observability/metrics"
)

// Panel alert thresholds.
const (
	alertDustMedium       = farm.DustCleaningThreshold
	alertDustSevere       = 500.0
	alertEfficiencyMedium = farm.EfficiencyCleaningThreshold
	alertEfficiencySevere = 80.0
)

// SensorInput is a raw reading as submitted by a field device.
// Pointer fields distinguish missing values from zero.
type SensorInput struct {
	PanelID     string     `json:"panel_id"`
	Voltage     *float64   `json:"voltage"`
	Current     *float64   `json:"current"`
	Temperature *float64   `json:"temperature"`
	DustLevel   *float64   `json:"dust_level"`
	Timestamp   *time.Time `json:"timestamp"`
}

// Validate rejects missing or out-of-range fields.
func (in SensorInput) Validate() error {
	if in.PanelID == "" {
		return fmt.Errorf("%w: panel_id required", farm.ErrInvalidReading)
	}
	fields := []struct {
		name  string
		value *float64
	}{
		{"voltage", in.Voltage},
		{"current", in.Current},
		{"temperature", in.Temperature},
		{"dust_level", in.DustLevel},
	}
	for _, f := range fields {
		if f.value == nil {
			return fmt.Errorf("%w: %s required", farm.ErrInvalidReading, f.name)
		}
		if math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", farm.ErrInvalidReading, f.name)
		}
	}
	if *in.Voltage < 0 || *in.Current < 0 {
		return fmt.Errorf("%w: voltage and current must be non-negative", farm.ErrInvalidReading)
	}
	if *in.DustLevel < 0 || *in.DustLevel > farm.MaxDustLevel {
		return fmt.Errorf("%w: dust_level must be within [0,%v]", farm.ErrInvalidReading, farm.MaxDustLevel)
	}
	return nil
}

// SensorResult confirms an accepted reading.
type SensorResult struct {
	Message       string       `json:"message"`
	ReadingID     string       `json:"reading_id"`
	PanelID       string       `json:"panel_id"`
	SectorID      string       `json:"sector_id"`
	Efficiency    float64      `json:"efficiency"`
	NeedsCleaning bool         `json:"needs_cleaning"`
	Alerts        []farm.Alert `json:"alerts,omitempty"`
}

// SensorService ingests readings, updates panels and raises panel alerts.
type SensorService struct {
	store   *memory.Store
	history SensorLog
	alerts  AlertLog
	clock   Clock
	logger  *log.Logger
	notify  AlertNotifier

	// serializes the check-then-insert of alert deduplication
	alertMu sync.Mutex
}

// NewSensorService constructs a sensor service.
func NewSensorService(store *memory.Store, history SensorLog, alerts AlertLog, clock Clock, logger *log.Logger) (*SensorService, error) {
	if store == nil {
		return nil, errors.New("sensor: nil store")
	}
	if history == nil {
		return nil, errors.New("sensor: nil sensor log")
	}
	if alerts == nil {
		return nil, errors.New("sensor: nil alert log")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &SensorService{store: store, history: history, alerts: alerts, clock: clock, logger: logger}, nil
}

// SetNotifier registers a notifier for newly raised alerts. Call before serving.
func (s *SensorService) SetNotifier(n AlertNotifier) {
	s.notify = n
}

// Submit validates and applies a reading.
func (s *SensorService) Submit(ctx context.Context, in SensorInput) (SensorResult, error) {
	start := time.Now()
	result, err := s.submit(ctx, in)
	switch {
	case err == nil:
		metrics.ObserveSensorIngest(metrics.ResultSuccess, time.Since(start))
	case errors.Is(err, farm.ErrPanelNotFound):
		metrics.ObserveSensorIngest(metrics.ResultNotFound, time.Since(start))
	case errors.Is(err, farm.ErrInvalidReading):
		metrics.ObserveSensorIngest(metrics.ResultRejected, time.Since(start))
	default:
		metrics.ObserveSensorIngest(metrics.ResultError, time.Since(start))
	}
	return result, err
}

func (s *SensorService) submit(ctx context.Context, in SensorInput) (SensorResult, error) {
	if err := in.Validate(); err != nil {
		return SensorResult{}, err
	}
	at := s.clock.Now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		at = in.Timestamp.UTC()
	}
	efficiency := farm.SensorEfficiency(*in.Voltage, *in.Current)

	// voltage is re-derived from efficiency by the store; the measured value stays on the reading
	p, err := s.store.Update(in.PanelID, func(p *farm.Panel) {
		p.SetEfficiency(efficiency)
		p.SetDust(*in.DustLevel)
	})
	if err != nil {
		return SensorResult{}, err
	}

	reading := farm.SensorReading{
		ID:          uuid.NewString(),
		PanelID:     p.ID,
		SectorID:    p.SectorID,
		Voltage:     *in.Voltage,
		Current:     *in.Current,
		Temperature: *in.Temperature,
		DustLevel:   *in.DustLevel,
		Efficiency:  efficiency,
		Timestamp:   at,
	}
	if err := s.history.Append(ctx, reading); err != nil {
		metrics.IncPersistenceError("sensor_data")
		if s.logger != nil {
			s.logger.Printf("sensor: persist reading failed: panel=%s err=%v", p.ID, err)
		}
	}

	return SensorResult{
		Message:       "Data received",
		ReadingID:     reading.ID,
		PanelID:       p.ID,
		SectorID:      p.SectorID,
		Efficiency:    efficiency,
		NeedsCleaning: farm.NeedsCleaning(*in.DustLevel, efficiency),
		Alerts:        s.raiseAlerts(ctx, p, at),
	}, nil
}

// History returns readings of a panel over the last hours, oldest first.
func (s *SensorService) History(ctx context.Context, panelID string, hours int) ([]farm.SensorReading, error) {
	if _, err := s.store.Get(panelID); err != nil {
		return nil, err
	}
	if hours <= 0 {
		hours = farm.DefaultSensorHistoryHours
	}
	hours = min(hours, farm.MaxHistoryDays*24)
	since := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	readings, err := s.history.Range(ctx, panelID, since)
	if err != nil {
		return nil, err
	}
	if readings == nil {
		readings = []farm.SensorReading{}
	}
	return readings, nil
}

func (s *SensorService) raiseAlerts(ctx context.Context, p farm.Panel, at time.Time) []farm.Alert {
	var candidates []farm.Alert
	if p.DustLevel > alertDustMedium {
		severity := farm.SeverityMedium
		if p.DustLevel > alertDustSevere {
			severity = farm.SeverityHigh
		}
		candidates = append(candidates, farm.Alert{
			Type:     farm.AlertDustHigh,
			Severity: severity,
			Value:    p.DustLevel,
			Message:  fmt.Sprintf("Panel %s dust level %.1f exceeds %.0f", p.ID, p.DustLevel, alertDustMedium),
		})
	}
	if p.CurrentEfficiency < alertEfficiencyMedium {
		severity := farm.SeverityMedium
		if p.CurrentEfficiency < alertEfficiencySevere {
			severity = farm.SeverityHigh
		}
		candidates = append(candidates, farm.Alert{
			Type:     farm.AlertEfficiencyLow,
			Severity: severity,
			Value:    p.CurrentEfficiency,
			Message:  fmt.Sprintf("Panel %s efficiency %.2f%% below %.0f%%", p.ID, p.CurrentEfficiency, alertEfficiencyMedium),
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	var raised []farm.Alert
	for _, alert := range candidates {
		open, err := s.alerts.HasUnresolved(ctx, p.ID, alert.Type)
		if err != nil {
			metrics.IncPersistenceError("alerts")
			if s.logger != nil {
				s.logger.Printf("sensor: alert lookup failed: panel=%s type=%s err=%v", p.ID, alert.Type, err)
			}
			continue
		}
		if open {
			continue
		}
		alert.ID = uuid.NewString()
		alert.PanelID = p.ID
		alert.SectorID = p.SectorID
		alert.Timestamp = at
		if err := s.alerts.Insert(ctx, alert); err != nil {
			metrics.IncPersistenceError("alerts")
			if s.logger != nil {
				s.logger.Printf("sensor: alert insert failed: panel=%s type=%s err=%v", p.ID, alert.Type, err)
			}
			continue
		}
		metrics.IncAlertRaised(alert.Type)
		if s.notify != nil {
			s.notify.Notify(ctx, alert)
		}
		raised = append(raised, alert)
	}
	return raised
}

// AlertService lists and resolves panel alerts.
type AlertService struct {
	alerts AlertLog
	clock  Clock
}

// NewAlertService constructs an alert service.
func NewAlertService(alerts AlertLog, clock Clock) (*AlertService, error) {
	if alerts == nil {
		return nil, errors.New("alerts: nil alert log")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &AlertService{alerts: alerts, clock: clock}, nil
}

// Active returns unresolved alerts, newest first.
func (s *AlertService) Active(ctx context.Context) ([]farm.Alert, error) {
	alerts, err := s.alerts.Unresolved(ctx)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []farm.Alert{}
	}
	return alerts, nil
}

// Resolve closes an alert.
func (s *AlertService) Resolve(ctx context.Context, id string) (farm.Alert, error) {
	if id == "" {
		return farm.Alert{}, farm.ErrAlertNotFound
	}
	return s.alerts.Resolve(ctx, id, s.clock.Now())
}
