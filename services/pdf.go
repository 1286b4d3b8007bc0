package services

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// RenderPDF converts a Document to PDF in-process using maroto/v2. This is
// the always-available fixed-layout path.
func RenderPDF(doc *Document) ([]byte, error) {
	orient := orientation.Vertical
	if doc.Landscape {
		orient = orientation.Horizontal
	}

	cfg := config.NewBuilder().
		WithOrientation(orient).
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).
		WithTopMargin(10).
		WithRightMargin(10).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		}).
		Build()

	m := maroto.New(cfg)

	addDocHeader(m, doc)

	grid := scaleWidths(doc.Widths, doc.Columns)
	for _, r := range doc.Rows {
		addDocRow(m, r, grid)
	}

	if doc.Footer != "" {
		m.AddRows(row.New(4))
		m.AddRows(
			row.New(7).Add(
				col.New(12).Add(
					text.New(doc.Footer, props.Text{
						Size:  9,
						Style: fontstyle.Bold,
						Align: align.Left,
					}),
				),
			),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf for %q: %w", doc.Type, err)
	}
	return out.GetBytes(), nil
}

// addDocHeader adds the title and the named header slots.
func addDocHeader(m core.Maroto, doc *Document) {
	m.AddRows(
		row.New(12).Add(
			col.New(12).Add(
				text.New(doc.Title, props.Text{
					Size:  16,
					Style: fontstyle.Bold,
					Align: align.Center,
				}),
			),
		),
	)

	slotText := props.Text{
		Size:  9,
		Align: align.Left,
		Color: &props.Color{Red: 60, Green: 60, Blue: 60},
	}
	for _, slot := range doc.Header {
		if slot.Value == "" {
			continue
		}
		m.AddRows(
			row.New(5).Add(
				col.New(3).Add(text.New(slot.Label+":", props.Text{
					Size:  9,
					Style: fontstyle.Bold,
					Align: align.Left,
				})),
				col.New(9).Add(text.New(slot.Value, slotText)),
			),
		)
	}

	m.AddRows(row.New(4))
}

// addDocRow renders one logical row onto maroto's 12-column grid. A cell
// spanning n logical columns consumes the grid width of all n.
func addDocRow(m core.Maroto, r DocRow, grid []int) {
	if r.Kind == "spacer" {
		m.AddRows(row.New(4))
		return
	}

	headerBg := &props.Color{Red: 33, Green: 37, Blue: 41}
	summaryBg := &props.Color{Red: 240, Green: 240, Blue: 240}

	height := 7.0
	if r.Kind == "header" {
		height = 8
	}

	cols := make([]core.Col, 0, len(r.Cells))
	logical := 0
	for _, c := range r.Cells {
		span := c.Span
		if span < 1 {
			span = 1
		}
		size := 0
		for i := 0; i < span && logical < len(grid); i++ {
			size += grid[logical]
			logical++
		}
		if size < 1 {
			size = 1
		}

		txt := props.Text{Size: 7, Align: cellAlign(c.Align)}
		if c.Bold || r.Kind == "header" {
			txt.Style = fontstyle.Bold
		}
		if r.Kind == "header" {
			txt.Color = &props.Color{Red: 255, Green: 255, Blue: 255}
			txt.Size = 7.5
		}

		mc := col.New(size).Add(text.New(c.Text, txt))
		switch r.Kind {
		case "header":
			mc = mc.WithStyle(&props.Cell{BackgroundColor: headerBg})
		case "summary":
			mc = mc.WithStyle(&props.Cell{BackgroundColor: summaryBg})
		}
		cols = append(cols, mc)
	}

	m.AddRows(row.New(height).Add(cols...))
}

func cellAlign(a string) align.Type {
	switch a {
	case "right":
		return align.Right
	case "center":
		return align.Center
	default:
		return align.Left
	}
}

// scaleWidths maps the document's relative widths onto maroto's 12-column
// grid, guaranteeing each logical column at least one grid unit.
func scaleWidths(widths []int, columns int) []int {
	if columns <= 0 {
		return nil
	}
	if len(widths) != columns {
		widths = make([]int, columns)
		for i := range widths {
			widths[i] = 1
		}
	}

	total := 0
	for _, w := range widths {
		total += w
	}

	grid := make([]int, columns)
	assigned := 0
	for i, w := range widths {
		g := w * 12 / total
		if g < 1 {
			g = 1
		}
		grid[i] = g
		assigned += g
	}

	// Trim or pad to exactly 12, widest columns first.
	for assigned != 12 {
		idx := widest(grid)
		if assigned > 12 {
			if grid[idx] > 1 {
				grid[idx]--
				assigned--
			} else {
				break
			}
		} else {
			grid[idx]++
			assigned++
		}
	}
	return grid
}

func widest(grid []int) int {
	best := 0
	for i, g := range grid {
		if g > grid[best] {
			best = i
		}
	}
	return best
}
