package services

import "testing"

func TestBuildDeviations_Positional(t *testing.T) {
	workOrder := []LineItem{
		{Serial: "1", Description: "Earthwork", Unit: "Cum", Quantity: 100, Rate: 50, Amount: 5000},
	}
	bill := []LineItem{
		{Serial: "1", Description: "Earthwork", Unit: "Cum", Quantity: 120, Rate: 50, Amount: 6000},
	}

	devs := BuildDeviations(workOrder, bill, "positional")
	if len(devs) != 1 {
		t.Fatalf("got %d records, want 1", len(devs))
	}

	d := devs[0]
	if d.WOAmount != 5000 {
		t.Errorf("WOAmount = %v, want 5000", d.WOAmount)
	}
	if d.BillAmount != 6000 {
		t.Errorf("BillAmount = %v, want 6000", d.BillAmount)
	}
	if d.ExcessQty != 20 || d.ExcessAmount != 1000 {
		t.Errorf("excess = %v qty / %v amount, want 20 / 1000", d.ExcessQty, d.ExcessAmount)
	}
	if d.SavingQty != 0 || d.SavingAmount != 0 {
		t.Errorf("saving = %v qty / %v amount, want zero", d.SavingQty, d.SavingAmount)
	}
}

func TestBuildDeviations_ExcessAndSavingExclusive(t *testing.T) {
	workOrder := []LineItem{
		{Serial: "1", Quantity: 100, Rate: 10},
		{Serial: "2", Quantity: 50, Rate: 20},
		{Serial: "3", Quantity: 30, Rate: 5},
	}
	bill := []LineItem{
		{Serial: "1", Quantity: 120, Rate: 10}, // excess
		{Serial: "2", Quantity: 40, Rate: 20},  // saving
		{Serial: "3", Quantity: 30, Rate: 5},   // exact
	}

	for _, d := range BuildDeviations(workOrder, bill, "positional") {
		if d.ExcessQty > 0 && d.SavingQty > 0 {
			t.Errorf("record %s carries both excess and saving", d.Serial)
		}
		if d.BillQty == d.WOQty && (d.ExcessQty != 0 || d.SavingQty != 0) {
			t.Errorf("record %s has deviation despite equal quantities", d.Serial)
		}
	}
}

func TestBuildDeviations_NoWorkOrderIsPureExcess(t *testing.T) {
	bill := []LineItem{
		{Serial: "1", Description: "Unplanned", Unit: "Nos", Quantity: 4, Rate: 250},
	}

	devs := BuildDeviations(nil, bill, "positional")
	if len(devs) != 1 {
		t.Fatalf("got %d records, want 1", len(devs))
	}
	d := devs[0]
	if d.WOQty != 0 || d.WOAmount != 0 {
		t.Errorf("work-order side = %v qty / %v amount, want zero", d.WOQty, d.WOAmount)
	}
	if d.ExcessQty != 4 || d.ExcessAmount != 1000 {
		t.Errorf("excess = %v qty / %v amount, want 4 / 1000", d.ExcessQty, d.ExcessAmount)
	}
	if d.Description != "Unplanned" || d.Rate != 250 {
		t.Errorf("identity not taken from billed side: %+v", d)
	}
}

func TestBuildDeviations_SerialStrategy(t *testing.T) {
	workOrder := []LineItem{
		{Serial: "1", Description: "First", Quantity: 10, Rate: 100},
		{Serial: "2", Description: "Second", Quantity: 5, Rate: 200},
	}
	// Reordered, reformatted serials, plus one unclaimed bill item.
	bill := []LineItem{
		{Serial: "2.", Description: "Second", Quantity: 8, Rate: 200},
		{Serial: " 1 ", Description: "First", Quantity: 10, Rate: 100},
		{Serial: "X-9", Description: "Extra run", Quantity: 2, Rate: 50},
	}

	devs := BuildDeviations(workOrder, bill, "serial")
	if len(devs) != 3 {
		t.Fatalf("got %d records, want 3", len(devs))
	}

	if devs[0].Serial != "1" || devs[0].BillQty != 10 {
		t.Errorf("record 0 = %+v, want serial 1 paired with bill qty 10", devs[0])
	}
	if devs[1].Serial != "2" || devs[1].ExcessQty != 3 {
		t.Errorf("record 1 = %+v, want serial 2 with excess 3", devs[1])
	}
	last := devs[2]
	if last.Description != "Extra run" || last.ExcessQty != 2 || last.ExcessAmount != 100 {
		t.Errorf("unclaimed bill item = %+v, want pure excess of 2 @ 50", last)
	}
}

func TestBuildDeviations_DuplicateSerials(t *testing.T) {
	t.Run("surplus bill rows stay in the executed total", func(t *testing.T) {
		workOrder := []LineItem{
			{Serial: "5", Description: "First run", Quantity: 30, Rate: 100},
		}
		bill := []LineItem{
			{Serial: "5", Description: "First run", Quantity: 30, Rate: 100},
			{Serial: "5", Description: "Second run", Quantity: 35, Rate: 100},
		}

		devs := BuildDeviations(workOrder, bill, "serial")
		if len(devs) != 2 {
			t.Fatalf("got %d records, want 2", len(devs))
		}

		var executed float64
		for _, d := range devs {
			executed += d.BillAmount
		}
		if executed != 6500 {
			t.Errorf("executed total = %v, want 6500", executed)
		}

		surplus := devs[1]
		if surplus.Description != "Second run" || surplus.ExcessQty != 35 || surplus.ExcessAmount != 3500 {
			t.Errorf("surplus row = %+v, want pure excess of 35 @ 100", surplus)
		}
	})

	t.Run("one bill row pairs against one work-order row", func(t *testing.T) {
		workOrder := []LineItem{
			{Serial: "7", Description: "First run", Quantity: 50, Rate: 100},
			{Serial: "7", Description: "Second run", Quantity: 50, Rate: 100},
		}
		bill := []LineItem{
			{Serial: "7", Description: "First run", Quantity: 50, Rate: 100},
		}

		devs := BuildDeviations(workOrder, bill, "serial")
		if len(devs) != 2 {
			t.Fatalf("got %d records, want 2", len(devs))
		}

		var executed float64
		for _, d := range devs {
			executed += d.BillAmount
		}
		if executed != 5000 {
			t.Errorf("executed total = %v, want 5000 (bill row counted once)", executed)
		}

		unexecuted := devs[1]
		if unexecuted.BillQty != 0 || unexecuted.SavingQty != 50 || unexecuted.SavingAmount != 5000 {
			t.Errorf("second work-order row = %+v, want full saving of 50 @ 100", unexecuted)
		}
	})
}

func TestBuildDeviations_UnitMismatchFlag(t *testing.T) {
	workOrder := []LineItem{{Serial: "1", Unit: "Cum", Quantity: 10, Rate: 5}}
	bill := []LineItem{{Serial: "1", Unit: "Sqm", Quantity: 10, Rate: 5}}

	devs := BuildDeviations(workOrder, bill, "positional")
	if !devs[0].UnitMismatch {
		t.Error("UnitMismatch = false, want true for Cum vs Sqm")
	}

	bill[0].Unit = ""
	devs = BuildDeviations(workOrder, bill, "positional")
	if devs[0].UnitMismatch {
		t.Error("UnitMismatch = true when one side has no unit")
	}
}

func TestBuildDeviations_InputsNotMutated(t *testing.T) {
	workOrder := []LineItem{{Serial: "1", Quantity: 100, Rate: 50, Amount: 5000}}
	bill := []LineItem{{Serial: "1", Quantity: 120, Rate: 50, Amount: 6000}}
	woCopy, billCopy := workOrder[0], bill[0]

	BuildDeviations(workOrder, bill, "positional")
	BuildDeviations(workOrder, bill, "serial")

	if workOrder[0] != woCopy || bill[0] != billCopy {
		t.Error("BuildDeviations mutated its inputs")
	}
}

func TestComputeTotals(t *testing.T) {
	cfg := DefaultConfig()
	rec := &ProjectRecord{
		WorkOrderItems: []LineItem{
			{Serial: "1", Quantity: 100, Rate: 50, Amount: 5000},
		},
		BillItems: []LineItem{
			{Serial: "1", Quantity: 120, Rate: 50, Amount: 6000},
		},
		ExtraItems: []LineItem{
			{Serial: "E1", Quantity: 2, Rate: 500, Amount: 1000},
		},
	}

	tt := ComputeTotals(rec, cfg)

	if tt.WorkOrderTotal != 5000 || tt.ExecutedTotal != 6000 {
		t.Errorf("base totals = %v / %v, want 5000 / 6000", tt.WorkOrderTotal, tt.ExecutedTotal)
	}
	if tt.PremiumF != 500 || tt.PremiumH != 600 {
		t.Errorf("premiums = %v / %v, want 500 / 600", tt.PremiumF, tt.PremiumH)
	}
	if tt.GrandTotalF != 5500 || tt.GrandTotalH != 6600 {
		t.Errorf("grand totals = %v / %v, want 5500 / 6600", tt.GrandTotalF, tt.GrandTotalH)
	}
	if tt.OverallExcess != 1000 || tt.OverallSaving != 0 || tt.NetDeviation != 1000 {
		t.Errorf("deviation = excess %v saving %v net %v", tt.OverallExcess, tt.OverallSaving, tt.NetDeviation)
	}
	if tt.ExtraItemsTotal != 1000 || tt.ExtraItemsPremium != 100 || tt.ExtraItemsPayable != 1100 {
		t.Errorf("extra items = %v / %v / %v, want 1000 / 100 / 1100",
			tt.ExtraItemsTotal, tt.ExtraItemsPremium, tt.ExtraItemsPayable)
	}
	if tt.Payable != 7700 {
		t.Errorf("Payable = %v, want 7700 (6600 + 1100)", tt.Payable)
	}

	// Schedule: SD 10%, IT 2%, GST 2%, LC 1% of payable.
	wantDeductions := round2(7700 * 0.15)
	if tt.TotalDeductions != wantDeductions {
		t.Errorf("TotalDeductions = %v, want %v", tt.TotalDeductions, wantDeductions)
	}
	if tt.NetPayable != round2(7700-wantDeductions) {
		t.Errorf("NetPayable = %v, want %v", tt.NetPayable, round2(7700-wantDeductions))
	}
	if len(tt.Deductions) != len(cfg.DeductionSchedule) {
		t.Errorf("deduction lines = %d, want %d", len(tt.Deductions), len(cfg.DeductionSchedule))
	}

	if tt.BalanceOutstanding {
		t.Errorf("BalanceOutstanding = true with payable %v above sanctioned %v", tt.Payable, tt.GrandTotalF)
	}
}

func TestComputeTotals_BalanceOutstanding(t *testing.T) {
	cfg := DefaultConfig()
	rec := &ProjectRecord{
		WorkOrderItems: []LineItem{{Serial: "1", Quantity: 100, Rate: 50}},
		BillItems:      []LineItem{{Serial: "1", Quantity: 60, Rate: 50}},
	}

	tt := ComputeTotals(rec, cfg)
	if !tt.BalanceOutstanding {
		t.Fatal("BalanceOutstanding = false for under-executed work")
	}
	want := round2(tt.GrandTotalF - tt.Payable)
	if tt.Balance != want {
		t.Errorf("Balance = %v, want %v", tt.Balance, want)
	}
}

func TestComputeTotals_ZeroWorkOrder(t *testing.T) {
	cfg := DefaultConfig()
	rec := &ProjectRecord{
		BillItems: []LineItem{{Serial: "1", Quantity: 10, Rate: 100}},
	}

	tt := ComputeTotals(rec, cfg)
	if tt.WorkOrderTotal != 0 {
		t.Errorf("WorkOrderTotal = %v, want 0", tt.WorkOrderTotal)
	}
	if tt.OverallExcess != 1000 {
		t.Errorf("OverallExcess = %v, want 1000 (all execution is excess)", tt.OverallExcess)
	}
	if tt.BalanceOutstanding {
		t.Error("no balance can be outstanding against an empty work order")
	}
}

func TestComputeTotals_Pure(t *testing.T) {
	cfg := DefaultConfig()
	rec := &ProjectRecord{
		WorkOrderItems: []LineItem{{Serial: "1", Quantity: 100, Rate: 50}},
		BillItems:      []LineItem{{Serial: "1", Quantity: 120, Rate: 50}},
	}

	first := ComputeTotals(rec, cfg)
	second := ComputeTotals(rec, cfg)
	if first.Payable != second.Payable || first.NetPayable != second.NetPayable {
		t.Errorf("repeat call differs: %v then %v", first.NetPayable, second.NetPayable)
	}
	if rec.WorkOrderItems[0].Quantity != 100 || rec.BillItems[0].Quantity != 120 {
		t.Error("ComputeTotals mutated the record")
	}
}
