package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"operating-hours/internal/pipeline"
)

// Line renders the one-line summary of a meter outcome.
func Line(o pipeline.Outcome) string {
	head := fmt.Sprintf("%s (%s): ", o.Entry.NMI, o.Entry.State)
	switch o.Status {
	case pipeline.StatusEstimated:
		return head + fmt.Sprintf("%s, %d of %d qualifying days had same pattern (%d days evaluated)",
			o.Result.Window, o.Result.Support, o.Result.QualifyingDays, o.Result.DaysEvaluated)
	case pipeline.StatusNoPattern:
		return head + fmt.Sprintf("no pattern found (%d days evaluated)", o.Result.DaysEvaluated)
	case pipeline.StatusProcessed:
		return head + fmt.Sprintf("processed %d readings, removed %d incomplete days", o.Report.Kept, o.Report.RemovedDays)
	case pipeline.StatusSkipped:
		return head + "skipped: " + o.Reason()
	case pipeline.StatusNoData:
		return head + "no data: " + o.Reason()
	default:
		return head + "failed: " + o.Reason()
	}
}

func window(o pipeline.Outcome) (string, string) {
	if o.Result.Window == nil {
		return "", ""
	}
	return o.Result.Window.Start, o.Result.Window.End
}

// BuildSummaryXLSX renders a run summary workbook with one row per meter.
func BuildSummaryXLSX(run pipeline.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	metersSheet := "meters"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(metersSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Operating Hours Run")
	_ = f.SetCellValue(summarySheet, "A3", "Run ID")
	_ = f.SetCellValue(summarySheet, "B3", run.RunID.String())
	_ = f.SetCellValue(summarySheet, "A4", "Started")
	_ = f.SetCellValue(summarySheet, "B4", run.StartedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Finished")
	_ = f.SetCellValue(summarySheet, "B5", run.FinishedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Meters")
	_ = f.SetCellValue(summarySheet, "B6", len(run.Outcomes))
	for i, status := range statuses {
		row := 7 + i
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), string(status))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), run.Count(status))
	}

	header := []string{"NMI", "State", "Status", "Window Start", "Window End", "Support", "Qualifying Days", "Days Evaluated", "Removed Days", "Reason"}
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(metersSheet, cell, h)
	}
	for i, o := range run.Outcomes {
		start, end := window(o)
		values := []any{
			o.Entry.NMI,
			o.Entry.State,
			string(o.Status),
			start,
			end,
			o.Result.Support,
			o.Result.QualifyingDays,
			o.Result.DaysEvaluated,
			o.Report.RemovedDays,
			o.Reason(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(metersSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryPDF renders a minimal PDF of a run summary.
func BuildSummaryPDF(run pipeline.Summary) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Operating Hours Run")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", run.RunID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", run.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Finished: %s", run.FinishedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	for _, status := range statuses {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d", status, run.Count(status)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{40, 18, 26, 28, 28, 20, 24, 24}
	header := []string{"NMI", "State", "Status", "Start", "End", "Support", "Qualifying", "Evaluated"}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, o := range run.Outcomes {
		start, end := window(o)
		cells := []string{
			o.Entry.NMI,
			o.Entry.State,
			string(o.Status),
			start,
			end,
			fmt.Sprintf("%d", o.Result.Support),
			fmt.Sprintf("%d", o.Result.QualifyingDays),
			fmt.Sprintf("%d", o.Result.DaysEvaluated),
		}
		for i, c := range cells {
			align := "L"
			if i >= 5 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var statuses = []pipeline.Status{
	pipeline.StatusEstimated,
	pipeline.StatusNoPattern,
	pipeline.StatusProcessed,
	pipeline.StatusNoData,
	pipeline.StatusSkipped,
	pipeline.StatusFailed,
}
