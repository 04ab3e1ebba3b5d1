// Package report renders farm sector reports as PDF and XLSX.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"solarfarm-cloud/internal/farm/application"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"

	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SectorReport is the data rendered into a report.
type SectorReport struct {
	GeneratedAt time.Time
	Statistics  application.FarmStatistics
	Sectors     []application.SectorStats
}

// FromOverview builds a report from one overview.
func FromOverview(ov application.Overview) SectorReport {
	return SectorReport{GeneratedAt: ov.At, Statistics: ov.Statistics, Sectors: ov.Sectors}
}

// Build renders the report in the named format.
func Build(format string, rep SectorReport) ([]byte, string, error) {
	switch format {
	case FormatPDF:
		out, err := BuildSectorReportPDF(rep)
		return out, ContentTypePDF, err
	case FormatXLSX:
		out, err := BuildSectorReportXLSX(rep)
		return out, ContentTypeXLSX, err
	default:
		return nil, "", fmt.Errorf("report: unsupported format %q", format)
	}
}

// BuildSectorReportPDF renders a farm summary followed by a per-sector table.
func BuildSectorReportPDF(rep SectorReport) ([]byte, error) {
	stats := rep.Statistics
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Solar Farm Sector Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", rep.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Panels: %d (%d active) in %d sectors", stats.TotalPanels, stats.ActivePanels, stats.TotalSectors))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Overall Efficiency (%%): %.2f", stats.OverallEfficiency))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Panels Needing Cleaning: %d (%.2f%%)", stats.PanelsNeedingCleaning, stats.CleaningPercentage))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Power Output (MW): %.3f of %.3f", stats.TotalPowerOutputMW, stats.TotalCapacityMW))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Estimated Daily Revenue: %.2f", stats.EstimatedDailyRevenue))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(25, 6, "Sector", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Panels", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Efficiency (%)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Dust", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Need Cleaning", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Output (W)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, st := range rep.Sectors {
		pdf.CellFormat(25, 6, st.ID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", st.PanelCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", st.AverageEfficiency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", st.AverageDustLevel), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%d", st.PanelsNeedingCleaning), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", st.TotalPowerOutput), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSectorReportXLSX renders a summary sheet and a sectors sheet.
func BuildSectorReportXLSX(rep SectorReport) ([]byte, error) {
	stats := rep.Statistics
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	sectorsSheet := "sectors"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sectorsSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Solar Farm Sector Report", nil},
		{"Generated", rep.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total Panels", stats.TotalPanels},
		{"Active Panels", stats.ActivePanels},
		{"Total Sectors", stats.TotalSectors},
		{"Overall Efficiency (%)", stats.OverallEfficiency},
		{"Panels Needing Cleaning", stats.PanelsNeedingCleaning},
		{"Cleaning Percentage", stats.CleaningPercentage},
		{"Power Output (MW)", stats.TotalPowerOutputMW},
		{"Capacity (MW)", stats.TotalCapacityMW},
		{"Estimated Daily Revenue", stats.EstimatedDailyRevenue},
	}
	for i, kv := range summary {
		row := i + 1
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), kv[0])
		if kv[1] != nil {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), kv[1])
		}
	}

	headers := []string{"Sector", "Panels", "Active", "Efficiency (%)", "Dust", "Need Cleaning", "Output (W)", "Capacity (W)"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sectorsSheet, cell, h)
	}
	for i, st := range rep.Sectors {
		row := i + 2
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("A%d", row), st.ID)
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("B%d", row), st.PanelCount)
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("C%d", row), st.ActivePanels)
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("D%d", row), st.AverageEfficiency)
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("E%d", row), st.AverageDustLevel)
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("F%d", row), st.PanelsNeedingCleaning)
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("G%d", row), st.TotalPowerOutput)
		_ = f.SetCellValue(sectorsSheet, fmt.Sprintf("H%d", row), st.TotalCapacity)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
