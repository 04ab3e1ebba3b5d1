package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
)

// SensorHistory keeps the most recent readings in a fixed-size ring; the oldest entry is evicted first.
type SensorHistory struct {
	mu    sync.RWMutex
	buf   []farm.SensorReading
	start int
	size  int
}

// NewSensorHistory constructs a ring holding up to capacity readings.
func NewSensorHistory(capacity int) *SensorHistory {
	if capacity <= 0 {
		capacity = farm.SensorHistoryCapacity
	}
	return &SensorHistory{buf: make([]farm.SensorReading, capacity)}
}

// Append stores a reading, evicting the oldest when full.
func (h *SensorHistory) Append(_ context.Context, reading farm.SensorReading) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.start+h.size)%capacity] = reading
		h.size++
		return nil
	}
	h.buf[h.start] = reading
	h.start = (h.start + 1) % capacity
	return nil
}

// Len returns the number of retained readings.
func (h *SensorHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Range returns readings for a panel at or after since, oldest first.
func (h *SensorHistory) Range(_ context.Context, panelID string, since time.Time) ([]farm.SensorReading, error) {
	h.mu.RLock()
	var out []farm.SensorReading
	capacity := len(h.buf)
	for i := 0; i < h.size; i++ {
		r := h.buf[(h.start+i)%capacity]
		if r.PanelID != panelID || r.Timestamp.Before(since) {
			continue
		}
		out = append(out, r)
	}
	h.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// oldest returns the first retained reading; test helper.
func (h *SensorHistory) oldest() (farm.SensorReading, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.size == 0 {
		return farm.SensorReading{}, false
	}
	return h.buf[h.start], true
}

// CleaningHistory is the append-only log of cleaning records.
type CleaningHistory struct {
	mu      sync.RWMutex
	records []farm.CleaningRecord
}

// NewCleaningHistory constructs an empty log.
func NewCleaningHistory() *CleaningHistory {
	return &CleaningHistory{}
}

// Append adds records in order.
func (h *CleaningHistory) Append(_ context.Context, records ...farm.CleaningRecord) error {
	h.mu.Lock()
	h.records = append(h.records, records...)
	h.mu.Unlock()
	return nil
}

// Len returns the number of records.
func (h *CleaningHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Recent returns up to limit records for a panel, newest first.
func (h *CleaningHistory) Recent(_ context.Context, panelID string, limit int) ([]farm.CleaningRecord, error) {
	if limit <= 0 {
		limit = farm.RecentCleaningsLimit
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := []farm.CleaningRecord{}
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		if h.records[i].PanelID == panelID {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

// CountSince counts cleanings per panel at or after since.
func (h *CleaningHistory) CountSince(_ context.Context, since time.Time) (map[string]int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts := make(map[string]int)
	for _, r := range h.records {
		if !r.Timestamp.Before(since) {
			counts[r.PanelID]++
		}
	}
	return counts, nil
}

// AlertLog holds panel alerts in insertion order.
type AlertLog struct {
	mu     sync.RWMutex
	alerts []farm.Alert
	index  map[string]int
}

// NewAlertLog constructs an empty alert log.
func NewAlertLog() *AlertLog {
	return &AlertLog{index: make(map[string]int)}
}

// Insert appends an alert.
func (l *AlertLog) Insert(_ context.Context, alert farm.Alert) error {
	if alert.ID == "" {
		return errors.New("memory alert log: empty id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.index[alert.ID]; dup {
		return errors.New("memory alert log: duplicate id")
	}
	l.index[alert.ID] = len(l.alerts)
	l.alerts = append(l.alerts, alert)
	return nil
}

// Unresolved returns open alerts, newest first.
func (l *AlertLog) Unresolved(_ context.Context) ([]farm.Alert, error) {
	l.mu.RLock()
	out := make([]farm.Alert, 0, len(l.alerts))
	for _, a := range l.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	l.mu.RUnlock()
	// insertion order is the tie-break, so reverse before the stable sort
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// HasUnresolved reports whether the panel has an open alert of the given type.
func (l *AlertLog) HasUnresolved(_ context.Context, panelID, alertType string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.alerts {
		if !a.Resolved && a.PanelID == panelID && a.Type == alertType {
			return true, nil
		}
	}
	return false, nil
}

// Resolve marks an alert resolved.
func (l *AlertLog) Resolve(_ context.Context, id string, at time.Time) (farm.Alert, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[id]
	if !ok {
		return farm.Alert{}, farm.ErrAlertNotFound
	}
	if !l.alerts[i].Resolved {
		l.alerts[i].Resolved = true
		l.alerts[i].ResolvedAt = at
	}
	return l.alerts[i], nil
}

type analyticsKey struct {
	panelID string
	date    string
}

// AnalyticsStore keeps daily per-panel analytics keyed by (panel, date).
type AnalyticsStore struct {
	mu   sync.RWMutex
	data map[analyticsKey]farm.DailyAnalytics
}

// NewAnalyticsStore constructs an empty store.
func NewAnalyticsStore() *AnalyticsStore {
	return &AnalyticsStore{data: make(map[analyticsKey]farm.DailyAnalytics)}
}

// UpsertMany inserts or replaces rows by key.
func (s *AnalyticsStore) UpsertMany(_ context.Context, rows []farm.DailyAnalytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if row.PanelID == "" || row.Date == "" {
			return errors.New("memory analytics: missing panel id or date")
		}
		s.data[analyticsKey{panelID: row.PanelID, date: row.Date}] = row
	}
	return nil
}

// Range returns rows for a panel on or after sinceDate, ascending by date.
func (s *AnalyticsStore) Range(_ context.Context, panelID, sinceDate string) ([]farm.DailyAnalytics, error) {
	s.mu.RLock()
	var out []farm.DailyAnalytics
	for key, row := range s.data {
		if key.panelID == panelID && key.date >= sinceDate {
			out = append(out, row)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
