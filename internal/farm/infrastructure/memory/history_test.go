package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
)

func TestSensorHistoryEvictsOldest(t *testing.T) {
	ctx := context.Background()
	h := NewSensorHistory(farm.SensorHistoryCapacity)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < farm.SensorHistoryCapacity+5; i++ {
		_ = h.Append(ctx, farm.SensorReading{ID: fmt.Sprint(i), PanelID: "PNL-0001", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	if h.Len() != farm.SensorHistoryCapacity {
		t.Fatalf("expected %d retained, got %d", farm.SensorHistoryCapacity, h.Len())
	}
	oldest, ok := h.oldest()
	if !ok || oldest.ID != "5" {
		t.Fatalf("expected oldest id 5, got %q", oldest.ID)
	}
}

func TestSensorHistoryRangeSortedAscending(t *testing.T) {
	ctx := context.Background()
	h := NewSensorHistory(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = h.Append(ctx, farm.SensorReading{ID: "b", PanelID: "P1", Timestamp: base.Add(2 * time.Hour)})
	_ = h.Append(ctx, farm.SensorReading{ID: "a", PanelID: "P1", Timestamp: base.Add(time.Hour)})
	_ = h.Append(ctx, farm.SensorReading{ID: "x", PanelID: "P2", Timestamp: base.Add(time.Hour)})
	_ = h.Append(ctx, farm.SensorReading{ID: "old", PanelID: "P1", Timestamp: base.Add(-time.Hour)})

	got, err := h.Range(ctx, "P1", base)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected range result: %+v", got)
	}
}

func TestCleaningHistoryRecent(t *testing.T) {
	ctx := context.Background()
	h := NewCleaningHistory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		_ = h.Append(ctx, farm.CleaningRecord{ID: fmt.Sprint(i), PanelID: "P1", Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	_ = h.Append(ctx, farm.CleaningRecord{ID: "other", PanelID: "P2", Timestamp: base})

	got, _ := h.Recent(ctx, "P1", 10)
	if len(got) != 10 || got[0].ID != "14" || got[9].ID != "5" {
		t.Fatalf("unexpected recent records: first=%s len=%d", got[0].ID, len(got))
	}
	counts, _ := h.CountSince(ctx, base.Add(10*time.Minute))
	if counts["P1"] != 5 || counts["P2"] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestAlertLogLifecycle(t *testing.T) {
	ctx := context.Background()
	l := NewAlertLog()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = l.Insert(ctx, farm.Alert{ID: "a1", Timestamp: base})
	_ = l.Insert(ctx, farm.Alert{ID: "a2", Timestamp: base.Add(time.Minute)})
	if err := l.Insert(ctx, farm.Alert{ID: "a1"}); err == nil {
		t.Fatalf("expected duplicate id error")
	}

	open, _ := l.Unresolved(ctx)
	if len(open) != 2 || open[0].ID != "a2" {
		t.Fatalf("expected newest first, got %+v", open)
	}
	resolved, err := l.Resolve(ctx, "a2", base.Add(time.Hour))
	if err != nil || !resolved.Resolved {
		t.Fatalf("resolve: %v %+v", err, resolved)
	}
	open, _ = l.Unresolved(ctx)
	if len(open) != 1 || open[0].ID != "a1" {
		t.Fatalf("expected only a1 open, got %+v", open)
	}
	if _, err := l.Resolve(ctx, "missing", base); !errors.Is(err, farm.ErrAlertNotFound) {
		t.Fatalf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestAnalyticsStoreUpsertByKey(t *testing.T) {
	ctx := context.Background()
	s := NewAnalyticsStore()
	_ = s.UpsertMany(ctx, []farm.DailyAnalytics{
		{PanelID: "P1", Date: "2026-01-02", Efficiency: 90},
		{PanelID: "P1", Date: "2026-01-01", Efficiency: 91},
	})
	_ = s.UpsertMany(ctx, []farm.DailyAnalytics{{PanelID: "P1", Date: "2026-01-02", Efficiency: 80}})

	rows, _ := s.Range(ctx, "P1", "2026-01-01")
	if len(rows) != 2 || rows[0].Date != "2026-01-01" || rows[1].Efficiency != 80 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if err := s.UpsertMany(ctx, []farm.DailyAnalytics{{PanelID: "P1"}}); err == nil {
		t.Fatalf("expected error for missing date")
	}
}

func TestAlertLogHasUnresolved(t *testing.T) {
	ctx := context.Background()
	l := NewAlertLog()
	_ = l.Insert(ctx, farm.Alert{ID: "a1", PanelID: "P1", Type: farm.AlertDustHigh})
	if ok, _ := l.HasUnresolved(ctx, "P1", farm.AlertDustHigh); !ok {
		t.Fatalf("expected open dust alert")
	}
	if ok, _ := l.HasUnresolved(ctx, "P1", farm.AlertEfficiencyLow); ok {
		t.Fatalf("unexpected efficiency alert")
	}
	_, _ = l.Resolve(ctx, "a1", time.Now())
	if ok, _ := l.HasUnresolved(ctx, "P1", farm.AlertDustHigh); ok {
		t.Fatalf("resolved alert still reported open")
	}
}
