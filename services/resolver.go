package services

import (
	"fmt"
	"strings"
)

// SchemaError reports a mandatory sheet or column that could not be resolved
// above the confidence threshold. It aborts the ingestion pass.
type SchemaError struct {
	Sheet     string   // logical sheet (or "<sheet>.<column>" for columns)
	Aliases   []string // alias set that was tried
	Available []string // candidate names that were on offer
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("cannot resolve %q: no candidate in %v matched aliases %v",
		e.Sheet, e.Available, e.Aliases)
}

// Match is one scored candidate produced by the alias matcher.
type Match struct {
	Name  string // candidate as it appears in the workbook
	Index int    // candidate position, used for tie-breaking
	Alias string // winning alias
	Score int
}

// scoreAlias rates a candidate name against a single alias. Case-insensitive:
// exact match 100, alias contained in name 60 plus a length-ratio bonus up to
// 20, name contained in alias 40. Zero means no match.
func scoreAlias(name, alias string) int {
	n := strings.ToLower(strings.TrimSpace(name))
	a := strings.ToLower(strings.TrimSpace(alias))
	if n == "" || a == "" {
		return 0
	}
	if n == a {
		return 100
	}
	if strings.Contains(n, a) {
		return 60 + (20*len(a))/len(n)
	}
	if strings.Contains(a, n) {
		return 40
	}
	return 0
}

// BestMatch scores every candidate against the alias list and returns the
// winner. Ties are broken by candidate order. ok is false when no candidate
// reaches minScore.
func BestMatch(candidates []string, aliases []string, minScore int) (Match, bool) {
	best := Match{Index: -1}
	for i, name := range candidates {
		for _, alias := range aliases {
			s := scoreAlias(name, alias)
			if s > best.Score {
				best = Match{Name: name, Index: i, Alias: alias, Score: s}
			}
		}
	}
	if best.Score < minScore || best.Index < 0 {
		return Match{}, false
	}
	return best, true
}

// ResolveSheets maps the workbook's worksheet names onto the logical
// four-sheet schema. Each worksheet is consumed by at most one logical sheet;
// resolution order is title, work order, bill quantity, extra items. The
// extra-items sheet is optional and silently omitted when unresolved.
func ResolveSheets(sheetNames []string, cfg Config) (map[string]string, error) {
	order := []string{SheetTitle, SheetWorkOrder, SheetBillQuantity, SheetExtraItems}
	used := make(map[int]bool, len(sheetNames))
	resolved := make(map[string]string, len(order))

	for _, logical := range order {
		aliases := cfg.SheetAliases[logical]

		// Hide already-consumed worksheets from the matcher while keeping
		// original indices for tie-breaking.
		candidates := make([]string, len(sheetNames))
		for i, name := range sheetNames {
			if !used[i] {
				candidates[i] = name
			}
		}

		m, ok := BestMatch(candidates, aliases, cfg.MinConfidence)
		if !ok {
			if logical == SheetExtraItems {
				continue
			}
			return nil, &SchemaError{Sheet: logical, Aliases: aliases, Available: remaining(sheetNames, used)}
		}
		used[m.Index] = true
		resolved[logical] = m.Name
	}

	return resolved, nil
}

func remaining(names []string, used map[int]bool) []string {
	var out []string
	for i, n := range names {
		if !used[i] {
			out = append(out, n)
		}
	}
	return out
}

// columnMap maps logical field names to zero-based column indices.
type columnMap map[string]int

// ResolveColumns matches each logical field against the header row
// independently. description and quantity are mandatory; every other field
// is optional and simply absent from the map when unresolved.
func ResolveColumns(sheet string, header []string, cfg Config) (columnMap, error) {
	fields := []string{ColSerial, ColDescription, ColUnit, ColQuantity, ColRate, ColAmount, ColRemark, ColApprovalRef}
	mandatory := map[string]bool{ColDescription: true, ColQuantity: true}

	cols := make(columnMap, len(fields))
	for _, field := range fields {
		aliases := cfg.ColumnAliases[field]
		m, ok := BestMatch(header, aliases, cfg.MinConfidence)
		if !ok {
			if mandatory[field] {
				return nil, &SchemaError{
					Sheet:     sheet + "." + field,
					Aliases:   aliases,
					Available: header,
				}
			}
			continue
		}
		cols[field] = m.Index
	}
	return cols, nil
}

// findHeaderRow scans the first rows of an item sheet for the row that looks
// most like a header: the one matching the largest number of logical fields.
// Returns -1 when no row matches at least two fields.
func findHeaderRow(rows [][]string, cfg Config) int {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}

	bestRow, bestHits := -1, 1
	for i := 0; i < limit; i++ {
		hits := 0
		for _, aliases := range cfg.ColumnAliases {
			if _, ok := BestMatch(rows[i], aliases, cfg.MinConfidence); ok {
				hits++
			}
		}
		if hits > bestHits {
			bestRow, bestHits = i, hits
		}
	}
	return bestRow
}
