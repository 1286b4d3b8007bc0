package services

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// currencyTokens are stripped before numeric parsing, longest first so "Rs."
// goes before "Rs".
var currencyTokens = []string{"₹", "Rs.", "Rs", "INR", "$", "€", "£"}

// zeroWords are cell values treated as an intentionally empty number.
var zeroWords = map[string]bool{
	"": true, "-": true, "n/a": true, "na": true, "nil": true,
	"null": true, "none": true, "tbc": true, "tbd": true, "above": true,
}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// cleanText trims whitespace and strips control characters from a cell value.
func cleanText(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// parseNumber converts a cell to float64, tolerating currency symbols,
// thousands separators and a trailing percent sign. ok is false when the
// value is non-empty but unparsable; the caller records a warning and keeps
// the zero default.
func parseNumber(raw string) (val float64, ok bool) {
	s := cleanText(raw)
	if zeroWords[strings.ToLower(s)] {
		return 0, true
	}

	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")

	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, false
	}
	if percent {
		f /= 100
	}
	return f, true
}

// blankRate reports whether the rate cell triggers the blank-rate policy:
// empty, all-whitespace, or numerically zero.
func blankRate(raw string) bool {
	s := cleanText(raw)
	if s == "" {
		return true
	}
	v, ok := parseNumber(s)
	return ok && v == 0
}

// normalizeRows builds one LineItem per data row of a resolved item sheet,
// preserving row order. sheet names the logical sheet for warnings; headerRow
// is the zero-based index of the resolved header.
func normalizeRows(sheet string, rows [][]string, headerRow int, cols columnMap, summary *ValidationSummary) []LineItem {
	cell := func(row []string, field string) (string, bool) {
		idx, ok := cols[field]
		if !ok || idx >= len(row) {
			return "", false
		}
		return row[idx], true
	}

	var items []LineItem
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		rowNum := i + 1 // 1-indexed, as spreadsheets display

		rawDesc, _ := cell(row, ColDescription)
		desc := cleanText(rawDesc)
		if desc == "" {
			continue
		}

		rawSerial, _ := cell(row, ColSerial)
		serial := cleanText(rawSerial)
		if serial == "" {
			serial = formatQty(float64(len(items) + 1))
		}

		item := LineItem{Serial: serial, Description: desc}

		rawRate, _ := cell(row, ColRate)
		if blankRate(rawRate) {
			// Unpriced item: description only, everything else withheld.
			summary.BlankRateRows++
			items = append(items, item)
			continue
		}

		number := func(field string) float64 {
			raw, present := cell(row, field)
			if !present {
				return 0
			}
			v, ok := parseNumber(raw)
			if !ok {
				summary.Warnings = append(summary.Warnings, DataTypeWarning{
					Sheet: sheet, Row: rowNum, Column: field, Value: cleanText(raw),
				})
				return 0
			}
			return v
		}

		item.Quantity = round2(number(ColQuantity))
		item.Rate = round2(number(ColRate))
		item.Amount = round2(item.Quantity * item.Rate)

		rawUnit, _ := cell(row, ColUnit)
		item.Unit = cleanText(rawUnit)
		rawRemark, _ := cell(row, ColRemark)
		item.Remark = cleanText(rawRemark)
		if sheet == SheetExtraItems {
			rawRef, _ := cell(row, ColApprovalRef)
			item.ApprovalRef = cleanText(rawRef)
		}

		// An amount column that disagrees with qty×rate beyond a paisa is
		// recorded, but the computed value stands.
		if raw, present := cell(row, ColAmount); present {
			if v, ok := parseNumber(raw); ok && v != 0 && round2(v-item.Amount) != 0 {
				summary.Warnings = append(summary.Warnings, DataTypeWarning{
					Sheet: sheet, Row: rowNum, Column: ColAmount, Value: cleanText(raw),
				})
			}
		}

		items = append(items, item)
	}

	return items
}

// titleFieldAliases drive the keyword scan over the title sheet.
var titleFieldAliases = []struct {
	field    string
	keywords []string
}{
	{"project_name", []string{"name of work", "project name", "work name", "project", "scheme"}},
	{"contractor_name", []string{"contractor", "agency", "firm", "company"}},
	{"agreement_no", []string{"agreement"}},
	{"work_order_no", []string{"work order no", "wo no", "order no", "work order"}},
	{"bill_number", []string{"bill no", "bill number"}},
	{"location", []string{"location", "site", "place", "district"}},
	{"estimated_cost", []string{"estimated cost", "estimate", "cost"}},
	{"start_date", []string{"start date", "commencement", "begin date"}},
	{"completion_date", []string{"completion date", "end date", "target date"}},
	{"period", []string{"period"}},
	{"mb_no", []string{"measurement book", "mb no"}},
	{"measurement_date", []string{"measurement date", "date of measurement"}},
}

// normalizeTitle scans the title sheet rows for labelled meta fields. Labels
// live in the first cell, values in the second; the first hit per field wins.
func normalizeTitle(rows [][]string, summary *ValidationSummary) ProjectMeta {
	var meta ProjectMeta
	seen := make(map[string]bool, len(titleFieldAliases))

	limit := len(rows)
	if limit > 30 {
		limit = 30
	}

	for i := 0; i < limit; i++ {
		row := rows[i]
		if len(row) < 2 {
			continue
		}
		label := strings.ToLower(cleanText(row[0]))
		value := cleanText(row[1])
		if label == "" || value == "" {
			continue
		}

		for _, fa := range titleFieldAliases {
			if seen[fa.field] {
				continue
			}
			matched := false
			for _, kw := range fa.keywords {
				if strings.Contains(label, kw) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			seen[fa.field] = true

			switch fa.field {
			case "project_name":
				meta.ProjectName = value
			case "contractor_name":
				meta.ContractorName = value
			case "agreement_no":
				meta.AgreementNo = value
			case "work_order_no":
				meta.WorkOrderNo = value
			case "bill_number":
				meta.BillNumber = value
			case "location":
				meta.Location = value
			case "period":
				meta.Period = value
			case "start_date":
				meta.StartDate = value
			case "completion_date":
				meta.CompletionDate = value
			case "mb_no":
				meta.MeasurementBookNo = value
			case "measurement_date":
				meta.MeasurementDate = value
			case "estimated_cost":
				v, ok := parseNumber(value)
				if !ok {
					summary.Warnings = append(summary.Warnings, DataTypeWarning{
						Sheet: SheetTitle, Row: i + 1, Column: "estimated_cost", Value: value,
					})
				}
				meta.EstimatedCost = v
			}
			break
		}
	}

	return meta
}
