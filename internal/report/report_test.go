package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"solarfarm-cloud/internal/farm/application"
	farm "solarfarm-cloud/internal/farm/domain"
)

func sampleReport() SectorReport {
	return SectorReport{
		GeneratedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		Statistics: application.FarmStatistics{
			TotalPanels:       60,
			TotalSectors:      2,
			ActivePanels:      60,
			OverallEfficiency: 91.5,
		},
		Sectors: []application.SectorStats{
			{Sector: farm.Sector{ID: "A1"}, PanelCount: 30, ActivePanels: 30, AverageEfficiency: 92},
			{Sector: farm.Sector{ID: "A2"}, PanelCount: 30, ActivePanels: 30, AverageEfficiency: 91},
		},
	}
}

func TestBuildSectorReportPDF(t *testing.T) {
	out, err := BuildSectorReportPDF(sampleReport())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}
}

func TestBuildSectorReportXLSX(t *testing.T) {
	out, err := BuildSectorReportXLSX(sampleReport())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	got, err := f.GetCellValue("sectors", "A3")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if got != "A2" {
		t.Fatalf("expected A2, got %s", got)
	}
	total, _ := f.GetCellValue("summary", "B3")
	if total != "60" {
		t.Fatalf("expected 60 total panels, got %s", total)
	}
}

func TestBuildRejectsUnknownFormat(t *testing.T) {
	if _, _, err := Build("csv", sampleReport()); err == nil {
		t.Fatalf("expected error for csv")
	}
	_, ct, err := Build(FormatXLSX, sampleReport())
	if err != nil || ct != ContentTypeXLSX {
		t.Fatalf("expected xlsx content type, got %s err=%v", ct, err)
	}
}
