package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Fingerprint identifies one (workbook, configuration) pair. Identical bytes
// under an identical config version always produce the same fingerprint.
func Fingerprint(workbook []byte, configVersion string) string {
	h := sha256.New()
	h.Write(workbook)
	h.Write([]byte{0})
	h.Write([]byte(configVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// IngestWorkbook resolves the workbook onto the four-sheet schema,
// normalizes every resolved sheet and computes totals. The returned record
// is complete or the error is fatal; there is no partial output. Unresolved
// optional sheets and cell-level parse failures degrade to summary entries,
// never to errors.
func IngestWorkbook(workbook []byte, cfg Config) (*ProjectRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	resolved, err := ResolveSheets(f.GetSheetList(), cfg)
	if err != nil {
		return nil, err
	}

	rec := &ProjectRecord{
		Fingerprint: Fingerprint(workbook, cfg.Version),
		Summary: ValidationSummary{
			ResolvedSheets: resolved,
			ItemCounts:     make(map[string]int),
		},
	}

	titleRows, err := f.GetRows(resolved[SheetTitle])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", resolved[SheetTitle], err)
	}
	rec.Meta = normalizeTitle(titleRows, &rec.Summary)

	rec.WorkOrderItems, err = ingestItemSheet(f, SheetWorkOrder, resolved[SheetWorkOrder], cfg, &rec.Summary)
	if err != nil {
		return nil, err
	}
	rec.BillItems, err = ingestItemSheet(f, SheetBillQuantity, resolved[SheetBillQuantity], cfg, &rec.Summary)
	if err != nil {
		return nil, err
	}

	if name, ok := resolved[SheetExtraItems]; ok {
		rec.ExtraItems, err = ingestItemSheet(f, SheetExtraItems, name, cfg, &rec.Summary)
		if err != nil {
			return nil, err
		}
	}

	rec.Summary.ItemCounts[SheetWorkOrder] = len(rec.WorkOrderItems)
	rec.Summary.ItemCounts[SheetBillQuantity] = len(rec.BillItems)
	rec.Summary.ItemCounts[SheetExtraItems] = len(rec.ExtraItems)

	rec.Totals = ComputeTotals(rec, cfg)
	for _, d := range BuildDeviations(rec.WorkOrderItems, rec.BillItems, cfg.MatchStrategy) {
		if d.UnitMismatch {
			rec.Summary.UnitMismatches++
		}
	}

	return rec, nil
}

// ingestItemSheet reads one item sheet, locates its header row, resolves
// columns and normalizes the data rows.
func ingestItemSheet(f *excelize.File, logical, name string, cfg Config, summary *ValidationSummary) ([]LineItem, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headerRow := findHeaderRow(rows, cfg)
	if headerRow < 0 {
		return nil, &SchemaError{
			Sheet:     logical,
			Aliases:   cfg.ColumnAliases[ColDescription],
			Available: rows[0],
		}
	}

	cols, err := ResolveColumns(logical, rows[headerRow], cfg)
	if err != nil {
		return nil, err
	}

	return normalizeRows(logical, rows, headerRow, cols, summary), nil
}
