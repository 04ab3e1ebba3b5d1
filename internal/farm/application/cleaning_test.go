package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/farm/simrand"
)

func newCleaning(t *testing.T, store *memory.Store) (*CleaningService, *memory.CleaningHistory) {
	t.Helper()
	history := memory.NewCleaningHistory()
	svc, err := NewCleaningService(store, history, simrand.New(21), nil, WithCleaningClock(fixedClock()))
	if err != nil {
		t.Fatalf("new cleaning service: %v", err)
	}
	return svc, history
}

func TestCleanPanelResetsState(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 2, 80, 400)
	svc, history := newCleaning(t, store)

	res, err := svc.CleanPanel(context.Background(), "PNL-0001")
	if err != nil {
		t.Fatalf("clean panel: %v", err)
	}
	if res.NewEfficiency < 92 || res.NewEfficiency > 98 {
		t.Fatalf("expected efficiency in [92,98], got %v", res.NewEfficiency)
	}
	if res.NewDustLevel < 50 || res.NewDustLevel > 150 {
		t.Fatalf("expected dust in [50,150], got %v", res.NewDustLevel)
	}
	if res.WaterUsage != 2.3 || res.EstimatedDuration != 120 {
		t.Fatalf("unexpected water/duration %v/%d", res.WaterUsage, res.EstimatedDuration)
	}

	records, _ := history.Recent(context.Background(), "PNL-0001", 10)
	if len(records) != 1 {
		t.Fatalf("expected exactly one cleaning record, got %d", len(records))
	}
	rec := records[0]
	if rec.Trigger != farm.TriggerManual || rec.PreCleaningEfficiency != 80 || rec.PostCleaningEfficiency != res.NewEfficiency {
		t.Fatalf("unexpected record %+v", rec)
	}
	p, _ := store.Get("PNL-0001")
	if !p.LastCleaned.Equal(fixedNow) {
		t.Fatalf("expected last cleaned %v, got %v", fixedNow, p.LastCleaned)
	}
	if p.Voltage != farm.VoltageFor(p.CurrentEfficiency) {
		t.Fatalf("voltage invariant broken after cleaning")
	}
}

func TestCleanPanelIsUnconditional(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 1, 97, 60)
	svc, history := newCleaning(t, store)
	if _, err := svc.CleanPanel(context.Background(), "PNL-0001"); err != nil {
		t.Fatalf("clean panel: %v", err)
	}
	if history.Len() != 1 {
		t.Fatalf("expected a record for a clean panel too, got %d", history.Len())
	}
}

func TestCleanPanelUnknown(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 1, 90, 100)
	svc, history := newCleaning(t, store)
	if _, err := svc.CleanPanel(context.Background(), "PNL-9999"); !errors.Is(err, farm.ErrPanelNotFound) {
		t.Fatalf("expected ErrPanelNotFound, got %v", err)
	}
	if history.Len() != 0 {
		t.Fatalf("expected no records, got %d", history.Len())
	}
}

func TestCleanSectorOnlyDirtyPanels(t *testing.T) {
	store := uniformStore(t, []string{"A1", "A2"}, 30, 90, 100)
	dirty := map[string]bool{}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("PNL-%04d", i*6)
		dirty[id] = true
		_, _ = store.Update(id, func(p *farm.Panel) { p.DustLevel = 400 })
	}
	before := map[string]farm.Panel{}
	for _, p := range store.BySector("A1") {
		before[p.ID] = p
	}
	svc, history := newCleaning(t, store)

	res, err := svc.CleanSector(context.Background(), "A1")
	if err != nil {
		t.Fatalf("clean sector: %v", err)
	}
	if res.PanelsCleaned != 5 {
		t.Fatalf("expected 5 panels cleaned, got %d", res.PanelsCleaned)
	}
	if res.TotalWaterUsed != 11.5 {
		t.Fatalf("expected 11.5 L, got %v", res.TotalWaterUsed)
	}
	if res.EstimatedEfficiencyGain != 1.67 {
		t.Fatalf("expected gain 1.67, got %v", res.EstimatedEfficiencyGain)
	}
	if history.Len() != 5 {
		t.Fatalf("expected 5 records, got %d", history.Len())
	}
	for _, p := range store.BySector("A1") {
		if dirty[p.ID] {
			if p.DustLevel > 150 {
				t.Fatalf("%s not cleaned", p.ID)
			}
			continue
		}
		if p != before[p.ID] {
			t.Fatalf("%s changed but did not need cleaning", p.ID)
		}
	}
	if got := len(store.BySector("A1")); got != 30 {
		t.Fatalf("sector count drifted to %d", got)
	}
}

func TestCleanSectorAutomaticTrigger(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 4, 80, 400)
	svc, history := newCleaning(t, store)
	res, err := svc.CleanSectorWith(context.Background(), "A1", farm.TriggerAutomatic)
	if err != nil {
		t.Fatalf("clean sector: %v", err)
	}
	if res.Trigger != farm.TriggerAutomatic || res.PanelsCleaned != 4 || res.EstimatedEfficiencyGain != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	records, _ := history.Recent(context.Background(), "PNL-0003", 10)
	if len(records) != 1 || records[0].Trigger != farm.TriggerAutomatic {
		t.Fatalf("expected automatic record, got %+v", records)
	}
}

func TestCleanSectorUnknown(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 1, 90, 100)
	svc, _ := newCleaning(t, store)
	if _, err := svc.CleanSector(context.Background(), "Z9"); !errors.Is(err, farm.ErrSectorNotFound) {
		t.Fatalf("expected ErrSectorNotFound, got %v", err)
	}
}

type failingCleaningLog struct{ *memory.CleaningHistory }

func (failingCleaningLog) Append(context.Context, ...farm.CleaningRecord) error {
	return errors.New("disk full")
}

func TestCleaningPersistFailureKeepsState(t *testing.T) {
	store := uniformStore(t, []string{"A1"}, 1, 80, 400)
	svc, err := NewCleaningService(store, failingCleaningLog{memory.NewCleaningHistory()}, simrand.New(5), nil)
	if err != nil {
		t.Fatalf("new cleaning service: %v", err)
	}
	res, err := svc.CleanPanel(context.Background(), "PNL-0001")
	if err != nil {
		t.Fatalf("expected success despite log failure, got %v", err)
	}
	p, _ := store.Get("PNL-0001")
	if p.CurrentEfficiency != res.NewEfficiency {
		t.Fatalf("store state rolled back")
	}
}
