package services

// BuildDeviations pairs work-order items with their billed counterparts and
// derives per-item excess/saving. Inputs are never mutated. With the
// "positional" strategy items pair by index; with "serial" they pair by
// normalized serial number. A missing counterpart on either side is treated
// as zero quantity on that side.
func BuildDeviations(workOrder, bill []LineItem, strategy string) []DeviationRecord {
	if strategy == "serial" {
		return deviationsBySerial(workOrder, bill)
	}
	return deviationsByPosition(workOrder, bill)
}

func deviationsByPosition(workOrder, bill []LineItem) []DeviationRecord {
	n := len(workOrder)
	if len(bill) > n {
		n = len(bill)
	}

	records := make([]DeviationRecord, 0, n)
	for i := 0; i < n; i++ {
		var wo, bq LineItem
		if i < len(workOrder) {
			wo = workOrder[i]
		}
		if i < len(bill) {
			bq = bill[i]
		}
		records = append(records, pairDeviation(wo, bq))
	}
	return records
}

func deviationsBySerial(workOrder, bill []LineItem) []DeviationRecord {
	queues := make(map[string][]LineItem, len(bill))
	for _, item := range bill {
		key := normalizeSerial(item.Serial)
		queues[key] = append(queues[key], item)
	}

	// Serials pair as multisets by occurrence order: the n-th work-order
	// row carrying a serial takes the n-th billed row carrying it, so
	// duplicated serials neither drop billed rows nor double-count them.
	consumed := make(map[string]int, len(queues))
	records := make([]DeviationRecord, 0, len(workOrder))
	for _, wo := range workOrder {
		key := normalizeSerial(wo.Serial)
		var bq LineItem
		if q := queues[key]; consumed[key] < len(q) {
			bq = q[consumed[key]]
			consumed[key]++
		}
		records = append(records, pairDeviation(wo, bq))
	}

	// Billed items left unpaired, including surplus occurrences of a
	// duplicated serial, are pure excess; original row order is kept.
	skipped := make(map[string]int, len(queues))
	for _, item := range bill {
		key := normalizeSerial(item.Serial)
		if skipped[key] < consumed[key] {
			skipped[key]++
			continue
		}
		records = append(records, pairDeviation(LineItem{
			Serial:      item.Serial,
			Description: item.Description,
			Unit:        item.Unit,
			Rate:        item.Rate,
		}, item))
	}
	return records
}

func normalizeSerial(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}
	return string(out)
}

// pairDeviation derives one record from a matched pair. The work-order rate
// governs both sides; identity fields prefer the work-order item.
func pairDeviation(wo, bq LineItem) DeviationRecord {
	rate := wo.Rate
	if rate == 0 {
		rate = bq.Rate
	}

	rec := DeviationRecord{
		Serial:      wo.Serial,
		Description: wo.Description,
		Unit:        wo.Unit,
		Rate:        rate,
		WOQty:       wo.Quantity,
		BillQty:     bq.Quantity,
		Remark:      wo.Remark,
	}
	if rec.Serial == "" {
		rec.Serial = bq.Serial
	}
	if rec.Description == "" {
		rec.Description = bq.Description
	}
	if rec.Unit == "" {
		rec.Unit = bq.Unit
	}
	if rec.Remark == "" {
		rec.Remark = bq.Remark
	}
	if wo.Unit != "" && bq.Unit != "" && wo.Unit != bq.Unit {
		rec.UnitMismatch = true
	}

	rec.WOAmount = round2(rec.WOQty * rate)
	rec.BillAmount = round2(rec.BillQty * rate)

	if rec.BillQty > rec.WOQty {
		rec.ExcessQty = round2(rec.BillQty - rec.WOQty)
		rec.ExcessAmount = round2(rec.ExcessQty * rate)
	} else if rec.WOQty > rec.BillQty {
		rec.SavingQty = round2(rec.WOQty - rec.BillQty)
		rec.SavingAmount = round2(rec.SavingQty * rate)
	}

	return rec
}

// ComputeTotals derives every aggregate of the bill from the normalized item
// lists. It is pure: the record is read, never written. The premium percent
// applies uniformly to the work-order, executed, excess and saving columns;
// extra items carry their own premium and join the payable separately since
// they have no work-order counterpart.
func ComputeTotals(rec *ProjectRecord, cfg Config) Totals {
	devs := BuildDeviations(rec.WorkOrderItems, rec.BillItems, cfg.MatchStrategy)

	var t Totals
	t.PremiumPercent = cfg.PremiumPercent

	for _, d := range devs {
		t.WorkOrderTotal += d.WOAmount
		t.ExecutedTotal += d.BillAmount
		t.OverallExcess += d.ExcessAmount
		t.OverallSaving += d.SavingAmount
	}
	t.WorkOrderTotal = round2(t.WorkOrderTotal)
	t.ExecutedTotal = round2(t.ExecutedTotal)
	t.OverallExcess = round2(t.OverallExcess)
	t.OverallSaving = round2(t.OverallSaving)

	t.PremiumF = round2(t.WorkOrderTotal * t.PremiumPercent)
	t.PremiumH = round2(t.ExecutedTotal * t.PremiumPercent)
	t.PremiumJ = round2(t.OverallExcess * t.PremiumPercent)
	t.PremiumL = round2(t.OverallSaving * t.PremiumPercent)

	t.GrandTotalF = round2(t.WorkOrderTotal + t.PremiumF)
	t.GrandTotalH = round2(t.ExecutedTotal + t.PremiumH)
	t.GrandTotalJ = round2(t.OverallExcess + t.PremiumJ)
	t.GrandTotalL = round2(t.OverallSaving + t.PremiumL)

	t.NetDeviation = round2(t.OverallExcess - t.OverallSaving)

	for _, item := range rec.ExtraItems {
		t.ExtraItemsTotal += round2(item.Quantity * item.Rate)
	}
	t.ExtraItemsTotal = round2(t.ExtraItemsTotal)
	t.ExtraItemsPremium = round2(t.ExtraItemsTotal * t.PremiumPercent)
	t.ExtraItemsPayable = round2(t.ExtraItemsTotal + t.ExtraItemsPremium)

	t.Payable = round2(t.GrandTotalH + t.ExtraItemsPayable)

	t.Deductions = make([]Deduction, 0, len(cfg.DeductionSchedule))
	for _, dr := range cfg.DeductionSchedule {
		amt := round2(t.Payable * dr.Percent)
		t.Deductions = append(t.Deductions, Deduction{Label: dr.Label, Percent: dr.Percent, Amount: amt})
		t.TotalDeductions += amt
	}
	t.TotalDeductions = round2(t.TotalDeductions)
	t.NetPayable = round2(t.Payable - t.TotalDeductions)

	balance := round2(t.GrandTotalF - t.Payable)
	if balance > 0 {
		t.Balance = balance
		t.BalanceOutstanding = true
	}

	return t
}
