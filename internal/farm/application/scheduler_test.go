package application

import (
	"context"
	"testing"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/farm/simrand"
)

type recordingStateSink struct {
	saved int
}

func (r *recordingStateSink) SaveState(_ context.Context, panels []farm.Panel) error {
	r.saved += len(panels)
	return nil
}

func TestAutoCleanerCleansHighScoreSectors(t *testing.T) {
	store := uniformStore(t, []string{"A1", "A2"}, 5, 95, 100)
	for _, id := range []string{"PNL-0001", "PNL-0002", "PNL-0003", "PNL-0004", "PNL-0005"} {
		_, _ = store.Update(id, func(p *farm.Panel) {
			p.DustLevel = 600
			p.CurrentEfficiency = 75
		})
	}
	analytics := newAnalytics(t, store, AnalyticsOptions{})
	cleaning, history := newCleaning(t, store)
	auto, err := NewAutoCleaner(analytics, cleaning, store, 0.5, nil)
	if err != nil {
		t.Fatalf("new autocleaner: %v", err)
	}

	results := auto.RunOnce(context.Background())
	if len(results) != 1 || results[0].SectorID != "A1" || results[0].PanelsCleaned != 5 {
		t.Fatalf("unexpected results %+v", results)
	}
	records, _ := history.Recent(context.Background(), "PNL-0001", 10)
	if len(records) != 1 || records[0].Trigger != farm.TriggerAutomatic {
		t.Fatalf("expected automatic record, got %+v", records)
	}
	if again := auto.RunOnce(context.Background()); len(again) != 0 {
		t.Fatalf("expected nothing left to clean, got %+v", again)
	}
}

func TestSnapshotterUpsertsDailyRows(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 3, 90, 100)
	cleanings := memory.NewCleaningHistory()
	_ = cleanings.Append(context.Background(),
		farm.CleaningRecord{ID: "c1", PanelID: "PNL-0002", Timestamp: fixedNow.Add(-time.Hour)},
		farm.CleaningRecord{ID: "c0", PanelID: "PNL-0002", Timestamp: fixedNow.Add(-48 * time.Hour)},
	)
	rows := memory.NewAnalyticsStore()
	sink := &recordingStateSink{}
	snap, err := NewSnapshotter(store, rows, cleanings, sink, fixedClock(), nil)
	if err != nil {
		t.Fatalf("new snapshotter: %v", err)
	}
	if err := snap.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if err := snap.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	got, _ := rows.Range(context.Background(), "PNL-0002", "2026-05-04")
	if len(got) != 1 {
		t.Fatalf("expected one row per panel per day, got %d", len(got))
	}
	if got[0].CleaningsToday != 1 || got[0].Efficiency != 90 || got[0].NeedsCleaning {
		t.Fatalf("unexpected row %+v", got[0])
	}
	if sink.saved != 6 {
		t.Fatalf("expected panel state saved twice, got %d panels", sink.saved)
	}
}

func TestSchedulersStopOnCancel(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 1, 90, 100)
	snap, _ := NewSnapshotter(store, memory.NewAnalyticsStore(), memory.NewCleaningHistory(), nil, nil, nil)
	cleaning, _ := NewCleaningService(store, memory.NewCleaningHistory(), simrand.New(1), nil)
	analytics := newAnalytics(t, store, AnalyticsOptions{})
	auto, _ := NewAutoCleaner(analytics, cleaning, store, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { snap.Start(ctx, time.Millisecond); done <- struct{}{} }()
	go func() { auto.Start(ctx, time.Millisecond); done <- struct{}{} }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("scheduler did not stop")
		}
	}
}
