// Package services implements the billing pipeline: workbook ingestion,
// deviation computation, document assembly and fixed-layout conversion.
package services

import "time"

// ProjectMeta holds the contract-level fields extracted from the title sheet.
type ProjectMeta struct {
	ProjectName       string
	Location          string
	ContractorName    string
	AgreementNo       string
	WorkOrderNo       string
	BillNumber        string
	Period            string
	StartDate         string
	CompletionDate    string
	EstimatedCost     float64
	MeasurementBookNo string
	MeasurementDate   string
}

// LineItem is one normalized row from an item sheet. Items are created once
// during normalization and never mutated afterwards.
type LineItem struct {
	Serial      string
	Description string
	Unit        string
	Quantity    float64
	Rate        float64
	Amount      float64
	Remark      string
	ApprovalRef string // extra items only
}

// Blank reports whether the blank-rate policy fired for this item, i.e. the
// row carries only serial and description.
func (it LineItem) Blank() bool {
	return it.Rate == 0 && it.Quantity == 0 && it.Amount == 0 && it.Unit == ""
}

// DeviationRecord pairs a work-order item with its billed counterpart.
// At most one of ExcessQty/SavingQty is nonzero.
type DeviationRecord struct {
	Serial       string
	Description  string
	Unit         string
	Rate         float64
	WOQty        float64
	WOAmount     float64
	BillQty      float64
	BillAmount   float64
	ExcessQty    float64
	ExcessAmount float64
	SavingQty    float64
	SavingAmount float64
	Remark       string
	UnitMismatch bool
}

// Deduction is one line of the statutory deduction schedule.
type Deduction struct {
	Label   string
	Percent float64
	Amount  float64
}

// Totals is derived by ComputeTotals and never mutated directly.
//
// The single-letter suffixes follow the deviation statement columns:
// F = work order, H = executed, J = excess, L = saving.
type Totals struct {
	WorkOrderTotal float64
	ExecutedTotal  float64
	OverallExcess  float64
	OverallSaving  float64

	PremiumPercent float64
	PremiumF       float64
	PremiumH       float64
	PremiumJ       float64
	PremiumL       float64
	GrandTotalF    float64
	GrandTotalH    float64
	GrandTotalJ    float64
	GrandTotalL    float64

	NetDeviation float64

	ExtraItemsTotal   float64
	ExtraItemsPremium float64
	ExtraItemsPayable float64

	Payable         float64
	Deductions      []Deduction
	TotalDeductions float64
	NetPayable      float64

	// Balance is the work remaining to complete. BalanceOutstanding is false
	// when nothing is outstanding, so a zero Balance is never ambiguous.
	Balance            float64
	BalanceOutstanding bool
}

// DataTypeWarning records a cell that failed tolerant parsing and was
// replaced with a safe default.
type DataTypeWarning struct {
	Sheet  string
	Row    int
	Column string
	Value  string
}

// ValidationSummary accumulates everything an auditor needs about one
// ingestion pass.
type ValidationSummary struct {
	ResolvedSheets map[string]string
	ItemCounts     map[string]int
	Warnings       []DataTypeWarning
	BlankRateRows  int
	UnitMismatches int
}

// ProjectRecord is the in-memory result of one ingestion pass.
type ProjectRecord struct {
	Meta           ProjectMeta
	WorkOrderItems []LineItem
	BillItems      []LineItem
	ExtraItems     []LineItem
	Totals         Totals
	Summary        ValidationSummary
	Fingerprint    string
}

// DocumentType names one deliverable in the statutory bundle.
type DocumentType string

const (
	DocFirstPage          DocumentType = "first_page"
	DocDeviationStatement DocumentType = "deviation_statement"
	DocExtraItems         DocumentType = "extra_items"
	DocCertificateII      DocumentType = "certificate_ii"
	DocCertificateIII     DocumentType = "certificate_iii"
	DocNoteSheet          DocumentType = "note_sheet"
)

// DocumentTypes lists every type RenderAll produces, in bundle order.
// The extra-items statement is included only when the record has extra items.
var DocumentTypes = []DocumentType{
	DocFirstPage,
	DocDeviationStatement,
	DocExtraItems,
	DocCertificateII,
	DocCertificateIII,
	DocNoteSheet,
}

// DocCell is one logical cell of a rendered document row.
type DocCell struct {
	Text    string
	Span    int    // column span, 0 means 1
	Align   string // "left", "center", "right"
	Bold    bool
	Numeric bool
}

// DocRow is one logical row. Kind distinguishes header/body/summary rows so
// conversion strategies can style them without knowing the document type.
type DocRow struct {
	Kind  string // "header", "body", "summary", "spacer"
	Cells []DocCell
}

// Document is the structured description every conversion path consumes.
type Document struct {
	Type      DocumentType
	Title     string
	Landscape bool
	Header    []DocSlot
	Columns   int
	Widths    []int // relative widths summing to Columns' grid
	Rows      []DocRow
	Footer    string
}

// DocSlot is a named template slot bound to canonical data.
type DocSlot struct {
	Label string
	Value string
}

// Bundle groups every document produced in one ingestion pass.
type Bundle struct {
	ID        string
	CreatedAt time.Time
	Documents map[DocumentType]*Document
}
