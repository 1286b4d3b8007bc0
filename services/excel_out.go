package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// GenerateSummaryExcel creates the audit workbook for a processed bill:
// a Summary sheet with project meta and totals, a Deviation sheet comparing
// work-order against executed quantities, and an Extra Items sheet when
// present. Returns the file contents as a byte slice.
func GenerateSummaryExcel(rec *ProjectRecord, cfg Config) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, "Summary"); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	labelStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 10},
	})
	if err != nil {
		return nil, fmt.Errorf("create label style: %w", err)
	}

	bodyStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create body style: %w", err)
	}

	// ── Summary sheet ───────────────────────────────────────────────────

	f.SetColWidth("Summary", "A", "A", 32)
	f.SetColWidth("Summary", "B", "B", 48)

	f.MergeCell("Summary", "A1", "B1")
	f.SetCellValue("Summary", "A1", sanitizeExcelCell(rec.Meta.ProjectName))
	f.SetCellStyle("Summary", "A1", "B1", titleStyle)

	t := rec.Totals
	pairs := []struct {
		label string
		value any
	}{
		{"Contractor", sanitizeExcelCell(rec.Meta.ContractorName)},
		{"Agreement No.", sanitizeExcelCell(rec.Meta.AgreementNo)},
		{"Bill No.", sanitizeExcelCell(rec.Meta.BillNumber)},
		{"Work Order Total", FormatINR(t.WorkOrderTotal)},
		{"Executed Total", FormatINR(t.ExecutedTotal)},
		{fmt.Sprintf("Tender Premium (%.2f%%)", t.PremiumPercent*100), FormatINR(t.PremiumH)},
		{"Extra Items (incl. premium)", FormatINR(t.ExtraItemsPayable)},
		{"Payable", FormatINR(t.Payable)},
		{"Total Deductions", FormatINR(t.TotalDeductions)},
		{"Net Payable", FormatINR(t.NetPayable)},
	}
	row := 3
	for _, p := range pairs {
		cell := fmt.Sprintf("%d", row)
		f.SetCellValue("Summary", "A"+cell, p.label)
		f.SetCellStyle("Summary", "A"+cell, "A"+cell, labelStyle)
		f.SetCellValue("Summary", "B"+cell, p.value)
		row++
	}

	// ── Deviation sheet ─────────────────────────────────────────────────

	if _, err := f.NewSheet("Deviation"); err != nil {
		return nil, fmt.Errorf("create deviation sheet: %w", err)
	}
	devCols := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}
	devWidths := []float64{6, 40, 8, 12, 10, 14, 10, 14, 14}
	for i, c := range devCols {
		f.SetColWidth("Deviation", c, c, devWidths[i])
	}

	devHeaders := []string{"S.No", "Description", "Unit", "Rate", "WO Qty", "WO Amount", "Exec Qty", "Exec Amount", "Difference"}
	for i, h := range devHeaders {
		f.SetCellValue("Deviation", devCols[i]+"1", h)
	}
	f.SetCellStyle("Deviation", "A1", "I1", headerStyle)

	for i, d := range BuildDeviations(rec.WorkOrderItems, rec.BillItems, cfg.MatchStrategy) {
		r := fmt.Sprintf("%d", i+2)
		f.SetCellValue("Deviation", "A"+r, sanitizeExcelCell(d.Serial))
		f.SetCellValue("Deviation", "B"+r, sanitizeExcelCell(d.Description))
		f.SetCellValue("Deviation", "C"+r, sanitizeExcelCell(d.Unit))
		f.SetCellValue("Deviation", "D"+r, d.Rate)
		f.SetCellValue("Deviation", "E"+r, d.WOQty)
		f.SetCellValue("Deviation", "F"+r, d.WOAmount)
		f.SetCellValue("Deviation", "G"+r, d.BillQty)
		f.SetCellValue("Deviation", "H"+r, d.BillAmount)
		f.SetCellValue("Deviation", "I"+r, d.BillAmount-d.WOAmount)
		f.SetCellStyle("Deviation", "A"+r, "I"+r, bodyStyle)
	}

	// ── Extra Items sheet ───────────────────────────────────────────────

	if len(rec.ExtraItems) > 0 {
		if _, err := f.NewSheet("Extra Items"); err != nil {
			return nil, fmt.Errorf("create extra items sheet: %w", err)
		}
		extraCols := []string{"A", "B", "C", "D", "E", "F", "G"}
		extraWidths := []float64{6, 40, 8, 10, 12, 14, 18}
		for i, c := range extraCols {
			f.SetColWidth("Extra Items", c, c, extraWidths[i])
		}
		extraHeaders := []string{"S.No", "Description", "Unit", "Qty", "Rate", "Amount", "Approval Ref"}
		for i, h := range extraHeaders {
			f.SetCellValue("Extra Items", extraCols[i]+"1", h)
		}
		f.SetCellStyle("Extra Items", "A1", "G1", headerStyle)

		for i, item := range rec.ExtraItems {
			r := fmt.Sprintf("%d", i+2)
			f.SetCellValue("Extra Items", "A"+r, sanitizeExcelCell(item.Serial))
			f.SetCellValue("Extra Items", "B"+r, sanitizeExcelCell(item.Description))
			f.SetCellValue("Extra Items", "C"+r, sanitizeExcelCell(item.Unit))
			f.SetCellValue("Extra Items", "D"+r, item.Quantity)
			f.SetCellValue("Extra Items", "E"+r, item.Rate)
			f.SetCellValue("Extra Items", "F"+r, item.Amount)
			f.SetCellValue("Extra Items", "G"+r, sanitizeExcelCell(item.ApprovalRef))
			f.SetCellStyle("Extra Items", "A"+r, "G"+r, bodyStyle)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote. Excel interprets cells starting with =, +, -,
// @, \t or \r as formulas, which can be abused for code execution or data theft.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns a slice of excelize.Border for thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
