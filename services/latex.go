package services

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// latexEscape neutralizes the characters LaTeX treats specially.
func latexEscape(s string) string {
	r := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		`&`, `\&`,
		`%`, `\%`,
		`$`, `\$`,
		`#`, `\#`,
		`_`, `\_`,
		`{`, `\{`,
		`}`, `\}`,
		`~`, `\textasciitilde{}`,
		`^`, `\textasciicircum{}`,
		`₹`, `Rs.~`,
	)
	return r.Replace(s)
}

var latexTmpl = template.Must(template.New("latex").
	Funcs(template.FuncMap{
		"escape":  latexEscape,
		"colspec": latexColspec,
		"texRow":  latexRow,
	}).
	Parse(`\documentclass[10pt,a4paper{{if .Landscape}},landscape{{end}}]{article}
\usepackage[margin=1.5cm]{geometry}
\usepackage{longtable}
\usepackage{array}
\begin{document}
\begin{center}\textbf{\large {{escape .Title}}}\end{center}
\begin{tabular}{ll}
{{- range .Header}}{{if .Value}}
\textbf{ {{- escape .Label -}} :} & {{escape .Value}} \\{{end}}{{- end}}
\end{tabular}
\vspace{2ex}
\begin{longtable}{{"{"}}{{colspec .}}{{"}"}}
\hline
{{- range .Rows}}
{{texRow . $.Columns}}
{{- end}}
\hline
\end{longtable}
{{- if .Footer}}
\noindent\textbf{ {{- escape .Footer -}} }
{{- end}}
\end{document}
`))

// latexColspec derives the longtable column spec from the document's widths.
func latexColspec(doc *Document) string {
	var b strings.Builder
	b.WriteString("|")
	for i := 0; i < doc.Columns; i++ {
		// The description-style wide columns wrap; the rest stay tight.
		if i < len(doc.Widths) && doc.Widths[i] >= 4 {
			b.WriteString("p{5cm}|")
		} else {
			b.WriteString("l|")
		}
	}
	return b.String()
}

// latexRow emits one table row, honoring spans via \multicolumn and bold
// cells via \textbf. Spacer rows become vertical space.
func latexRow(row DocRow, columns int) string {
	if row.Kind == "spacer" {
		return `\noalign{\vspace{2ex}}`
	}

	parts := make([]string, 0, len(row.Cells))
	for _, c := range row.Cells {
		text := latexEscape(c.Text)
		if c.Bold || row.Kind == "header" || row.Kind == "summary" {
			text = `\textbf{` + text + `}`
		}
		if c.Span > 1 {
			text = fmt.Sprintf(`\multicolumn{%d}{|r|}{%s}`, c.Span, text)
		}
		parts = append(parts, text)
	}

	line := strings.Join(parts, " & ") + ` \\`
	if row.Kind == "header" || row.Kind == "summary" {
		line += ` \hline`
	}
	return line
}

// RenderLaTeX converts a Document to LaTeX source for the typesetting
// engine path.
func RenderLaTeX(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := latexTmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render latex for %q: %w", doc.Type, err)
	}
	return buf.Bytes(), nil
}
