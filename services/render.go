package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PackagingError means bundle assembly failed and no output exists.
type PackagingError struct {
	Doc DocumentType
	Err error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("assemble bundle: document %q: %v", e.Doc, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// RenderDocument builds the structured description of one document type from
// a normalized record. The record is read only.
func RenderDocument(rec *ProjectRecord, docType DocumentType, cfg Config) (*Document, error) {
	switch docType {
	case DocFirstPage:
		return renderFirstPage(rec), nil
	case DocDeviationStatement:
		return renderDeviationStatement(rec, cfg), nil
	case DocExtraItems:
		return renderExtraItems(rec), nil
	case DocCertificateII:
		return renderCertificateII(rec), nil
	case DocCertificateIII:
		return renderCertificateIII(rec), nil
	case DocNoteSheet:
		return renderNoteSheet(rec), nil
	default:
		return nil, fmt.Errorf("unknown document type %q", docType)
	}
}

// RenderAll assembles the full statutory bundle. The extra-items statement
// is skipped when the record has none. Any single failure aborts with a
// PackagingError; a bundle is complete or absent, never partial.
func RenderAll(rec *ProjectRecord, cfg Config) (*Bundle, error) {
	bundle := &Bundle{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Documents: make(map[DocumentType]*Document, len(DocumentTypes)),
	}

	for _, docType := range DocumentTypes {
		if docType == DocExtraItems && len(rec.ExtraItems) == 0 {
			continue
		}
		doc, err := RenderDocument(rec, docType, cfg)
		if err != nil {
			return nil, &PackagingError{Doc: docType, Err: err}
		}
		bundle.Documents[docType] = doc
	}

	return bundle, nil
}

func metaSlots(meta ProjectMeta) []DocSlot {
	return []DocSlot{
		{Label: "Name of Work", Value: meta.ProjectName},
		{Label: "Name of Firm", Value: meta.ContractorName},
		{Label: "Agreement No.", Value: meta.AgreementNo},
		{Label: "Work Order No.", Value: meta.WorkOrderNo},
		{Label: "Bill No.", Value: meta.BillNumber},
		{Label: "Location", Value: meta.Location},
	}
}

func headerRow(labels ...string) DocRow {
	cells := make([]DocCell, len(labels))
	for i, l := range labels {
		cells[i] = DocCell{Text: l, Align: "center", Bold: true}
	}
	return DocRow{Kind: "header", Cells: cells}
}

func textCell(s string) DocCell { return DocCell{Text: s, Align: "left"} }
func midCell(s string) DocCell  { return DocCell{Text: s, Align: "center"} }
func moneyCell(v float64) DocCell {
	return DocCell{Text: FormatINR(v), Align: "right", Numeric: true}
}
func qtyCell(v float64) DocCell {
	return DocCell{Text: formatQty(v), Align: "right", Numeric: true}
}

func summaryRow(span int, label string, cells ...DocCell) DocRow {
	row := DocRow{Kind: "summary"}
	row.Cells = append(row.Cells, DocCell{Text: label, Span: span, Align: "right", Bold: true})
	for _, c := range cells {
		c.Bold = true
		row.Cells = append(row.Cells, c)
	}
	return row
}

// renderFirstPage is the running-bill summary: every billed item with its
// up-to-date quantity, rate and amount, then premium and payable.
func renderFirstPage(rec *ProjectRecord) *Document {
	doc := &Document{
		Type:    DocFirstPage,
		Title:   "First & Final Bill",
		Header:  metaSlots(rec.Meta),
		Columns: 6,
		Widths:  []int{1, 5, 1, 1, 2, 2},
	}

	doc.Rows = append(doc.Rows, headerRow("S.No.", "Item of Work", "Unit", "Qty Upto Date", "Rate", "Amount"))
	for _, item := range rec.BillItems {
		row := DocRow{Kind: "body", Cells: []DocCell{
			midCell(item.Serial),
			textCell(item.Description),
			midCell(item.Unit),
		}}
		if item.Blank() {
			row.Cells = append(row.Cells, midCell(""), midCell(""), midCell(""))
		} else {
			row.Cells = append(row.Cells, qtyCell(item.Quantity), moneyCell(item.Rate), moneyCell(item.Amount))
		}
		doc.Rows = append(doc.Rows, row)
	}

	t := rec.Totals
	doc.Rows = append(doc.Rows,
		summaryRow(5, "Total Executed", moneyCell(t.ExecutedTotal)),
		summaryRow(5, fmt.Sprintf("Tender Premium @ %.2f%%", t.PremiumPercent*100), moneyCell(t.PremiumH)),
		summaryRow(5, "Grand Total", moneyCell(t.GrandTotalH)),
	)
	if t.ExtraItemsPayable != 0 {
		doc.Rows = append(doc.Rows, summaryRow(5, "Extra Items (incl. premium)", moneyCell(t.ExtraItemsPayable)))
	}
	doc.Rows = append(doc.Rows, summaryRow(5, "Payable Amount", moneyCell(t.Payable)))

	doc.Footer = "Amount in words: " + AmountInWords(t.Payable)
	return doc
}

// renderDeviationStatement lays out the classic F/H/J/L deviation columns.
func renderDeviationStatement(rec *ProjectRecord, cfg Config) *Document {
	doc := &Document{
		Type:      DocDeviationStatement,
		Title:     "Deviation Statement",
		Landscape: true,
		Header:    metaSlots(rec.Meta),
		Columns:   12,
		Widths:    []int{1, 4, 1, 1, 1, 2, 1, 2, 1, 2, 1, 2},
	}

	doc.Rows = append(doc.Rows, headerRow(
		"S.No.", "Item of Work", "Unit", "Rate",
		"WO Qty", "WO Amount", "Exec Qty", "Exec Amount",
		"Excess Qty", "Excess Amount", "Saving Qty", "Saving Amount",
	))

	for _, d := range BuildDeviations(rec.WorkOrderItems, rec.BillItems, cfg.MatchStrategy) {
		desc := d.Description
		if d.UnitMismatch {
			desc += " (unit mismatch)"
		}
		doc.Rows = append(doc.Rows, DocRow{Kind: "body", Cells: []DocCell{
			midCell(d.Serial),
			textCell(desc),
			midCell(d.Unit),
			moneyCell(d.Rate),
			qtyCell(d.WOQty),
			moneyCell(d.WOAmount),
			qtyCell(d.BillQty),
			moneyCell(d.BillAmount),
			qtyCell(d.ExcessQty),
			moneyCell(d.ExcessAmount),
			qtyCell(d.SavingQty),
			moneyCell(d.SavingAmount),
		}})
	}

	t := rec.Totals
	totalLine := func(label string, f, h, j, l float64) DocRow {
		row := DocRow{Kind: "summary", Cells: []DocCell{
			{Text: label, Span: 5, Align: "right", Bold: true},
			moneyCell(f),
			{Text: "", Align: "center"},
			moneyCell(h),
			{Text: "", Align: "center"},
			moneyCell(j),
			{Text: "", Align: "center"},
			moneyCell(l),
		}}
		for i := range row.Cells {
			row.Cells[i].Bold = true
		}
		return row
	}

	doc.Rows = append(doc.Rows,
		totalLine("Total", t.WorkOrderTotal, t.ExecutedTotal, t.OverallExcess, t.OverallSaving),
		totalLine(fmt.Sprintf("Tender Premium @ %.2f%%", t.PremiumPercent*100), t.PremiumF, t.PremiumH, t.PremiumJ, t.PremiumL),
		totalLine("Grand Total", t.GrandTotalF, t.GrandTotalH, t.GrandTotalJ, t.GrandTotalL),
	)

	verdict := "Net Saving"
	if t.NetDeviation > 0 {
		verdict = "Net Excess"
	}
	doc.Footer = fmt.Sprintf("%s: %s", verdict, FormatINR(t.NetDeviation))
	return doc
}

func renderExtraItems(rec *ProjectRecord) *Document {
	doc := &Document{
		Type:    DocExtraItems,
		Title:   "Extra Items Statement",
		Header:  metaSlots(rec.Meta),
		Columns: 7,
		Widths:  []int{1, 4, 1, 1, 2, 2, 2},
	}

	doc.Rows = append(doc.Rows, headerRow("S.No.", "Item of Work", "Unit", "Qty", "Rate", "Amount", "Approval Ref."))
	for _, item := range rec.ExtraItems {
		doc.Rows = append(doc.Rows, DocRow{Kind: "body", Cells: []DocCell{
			midCell(item.Serial),
			textCell(item.Description),
			midCell(item.Unit),
			qtyCell(item.Quantity),
			moneyCell(item.Rate),
			moneyCell(item.Amount),
			midCell(item.ApprovalRef),
		}})
	}

	t := rec.Totals
	doc.Rows = append(doc.Rows,
		summaryRow(5, "Total Extra Items", moneyCell(t.ExtraItemsTotal), midCell("")),
		summaryRow(5, fmt.Sprintf("Tender Premium @ %.2f%%", t.PremiumPercent*100), moneyCell(t.ExtraItemsPremium), midCell("")),
		summaryRow(5, "Total Payable", moneyCell(t.ExtraItemsPayable), midCell("")),
	)
	return doc
}

// renderCertificateII is the measurement certificate.
func renderCertificateII(rec *ProjectRecord) *Document {
	meta := rec.Meta
	doc := &Document{
		Type:    DocCertificateII,
		Title:   "Certificate II",
		Header:  metaSlots(meta),
		Columns: 2,
		Widths:  []int{1, 1},
	}

	mb := meta.MeasurementBookNo
	if mb == "" {
		mb = "—"
	}
	md := meta.MeasurementDate
	if md == "" {
		md = "—"
	}

	lines := []string{
		"Certified that the work recorded in this bill has been actually measured",
		fmt.Sprintf("and recorded in Measurement Book No. %s dated %s.", mb, md),
		"The quantities billed are correct and the work has been executed",
		"in accordance with the sanctioned specifications.",
	}
	for _, l := range lines {
		doc.Rows = append(doc.Rows, DocRow{Kind: "body", Cells: []DocCell{{Text: l, Span: 2, Align: "left"}}})
	}

	doc.Rows = append(doc.Rows,
		DocRow{Kind: "spacer"},
		DocRow{Kind: "body", Cells: []DocCell{
			{Text: "Signature of Officer preparing the bill", Align: "center"},
			{Text: "Signature of Authorising Officer", Align: "center"},
		}},
	)
	return doc
}

// renderCertificateIII is the payment certificate with the deduction
// schedule and the cheque amount in words.
func renderCertificateIII(rec *ProjectRecord) *Document {
	t := rec.Totals
	doc := &Document{
		Type:    DocCertificateIII,
		Title:   "Certificate III",
		Header:  metaSlots(rec.Meta),
		Columns: 2,
		Widths:  []int{3, 2},
	}

	line := func(label string, v float64) DocRow {
		return DocRow{Kind: "body", Cells: []DocCell{textCell(label), moneyCell(v)}}
	}

	doc.Rows = append(doc.Rows,
		line("Total value of work done", t.Payable),
		DocRow{Kind: "header", Cells: []DocCell{
			{Text: "Recoveries", Span: 2, Align: "left", Bold: true},
		}},
	)
	for _, d := range t.Deductions {
		doc.Rows = append(doc.Rows, line(fmt.Sprintf("%s @ %.2f%%", d.Label, d.Percent*100), d.Amount))
	}
	doc.Rows = append(doc.Rows,
		summaryRow(1, "Total Recoveries", moneyCell(t.TotalDeductions)),
		summaryRow(1, "Net Payable by Cheque", moneyCell(t.NetPayable)),
	)

	doc.Footer = "Pay " + AmountInWords(t.NetPayable) + " by cheque."
	return doc
}

// renderNoteSheet is the audit note: resolved sheets, counts, warnings and
// the balance position.
func renderNoteSheet(rec *ProjectRecord) *Document {
	t := rec.Totals
	s := rec.Summary

	doc := &Document{
		Type:    DocNoteSheet,
		Title:   "Note Sheet",
		Header:  metaSlots(rec.Meta),
		Columns: 2,
		Widths:  []int{3, 2},
	}

	note := func(label, value string) DocRow {
		return DocRow{Kind: "body", Cells: []DocCell{textCell(label), textCell(value)}}
	}

	doc.Rows = append(doc.Rows,
		note("Work order items", fmt.Sprintf("%d", s.ItemCounts[SheetWorkOrder])),
		note("Billed items", fmt.Sprintf("%d", s.ItemCounts[SheetBillQuantity])),
		note("Extra items", fmt.Sprintf("%d", s.ItemCounts[SheetExtraItems])),
		note("Unpriced (blank-rate) rows", fmt.Sprintf("%d", s.BlankRateRows)),
		note("Cell warnings", fmt.Sprintf("%d", len(s.Warnings))),
		note("Unit mismatches", fmt.Sprintf("%d", s.UnitMismatches)),
		note("Work order value (incl. premium)", FormatINR(t.GrandTotalF)),
		note("Executed value (incl. premium)", FormatINR(t.GrandTotalH)),
		note("Net payable", FormatINR(t.NetPayable)),
	)

	if t.BalanceOutstanding {
		doc.Rows = append(doc.Rows, note("Balance to complete", FormatINR(t.Balance)))
	} else {
		doc.Rows = append(doc.Rows, note("Balance to complete", "None outstanding"))
	}

	return doc
}
