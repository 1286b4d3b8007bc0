// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/xuri/excelize/v2"

	"billgen/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app and runs collections.Setup to create all tables.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	collections.Setup(app)

	return app
}

// WorkbookFixture describes a bill workbook to assemble in-memory.
type WorkbookFixture struct {
	TitleRows      [][]any
	WorkOrderRows  [][]any // data rows under the standard header
	BillRows       [][]any
	ExtraItemRows  [][]any // nil omits the extra items sheet
	WorkOrderSheet string  // defaults to "Work Order"
	BillSheet      string  // defaults to "Bill Quantity"
}

// BuildWorkbook serializes the fixture into xlsx bytes with loosely named
// sheets, the way departments actually submit them.
func BuildWorkbook(t *testing.T, fx WorkbookFixture) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), "Title"); err != nil {
		t.Fatalf("rename default sheet: %v", err)
	}
	for i, row := range fx.TitleRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Title", cell, &row); err != nil {
			t.Fatalf("write title row: %v", err)
		}
	}

	writeItems := func(sheet string, header []any, rows [][]any) {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("create sheet %q: %v", sheet, err)
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			t.Fatalf("write header: %v", err)
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				t.Fatalf("write row: %v", err)
			}
		}
	}

	header := []any{"S.No", "Description", "Unit", "Qty", "Rate", "Amount", "Remark"}

	woSheet := fx.WorkOrderSheet
	if woSheet == "" {
		woSheet = "Work Order"
	}
	billSheet := fx.BillSheet
	if billSheet == "" {
		billSheet = "Bill Quantity"
	}

	writeItems(woSheet, header, fx.WorkOrderRows)
	writeItems(billSheet, header, fx.BillRows)
	if fx.ExtraItemRows != nil {
		extraHeader := []any{"S.No", "Description", "Unit", "Qty", "Rate", "Amount", "Approval"}
		writeItems("Extra Items", extraHeader, fx.ExtraItemRows)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}
	return buf.Bytes()
}

// SimpleBillWorkbook returns a minimal valid workbook: one work-order item,
// one billed item with an excess, and one extra item.
func SimpleBillWorkbook(t *testing.T) []byte {
	t.Helper()

	return BuildWorkbook(t, WorkbookFixture{
		TitleRows: [][]any{
			{"Name of Work", "Electric Repair at Govt. Hostel, Udaipur"},
			{"Name of Contractor", "M/s Sharma Constructions"},
			{"Agreement No.", "48/2024-25"},
			{"Bill No.", "First & Final"},
		},
		WorkOrderRows: [][]any{
			{"1", "Earthwork in excavation", "Cum", "100", "50", "5000", ""},
		},
		BillRows: [][]any{
			{"1", "Earthwork in excavation", "Cum", "120", "50", "6000", ""},
		},
		ExtraItemRows: [][]any{
			{"E1", "Dewatering", "Hr", "8", "300", "2400", "SE/112"},
		},
	})
}

// AssertHTMLContains checks that body contains all specified fragments.
func AssertHTMLContains(t *testing.T, body string, fragments ...string) {
	t.Helper()

	for _, frag := range fragments {
		if !strings.Contains(body, frag) {
			t.Errorf("expected HTML to contain %q, but it was not found\nbody (first 500 chars): %s",
				frag, truncate(body, 500))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
