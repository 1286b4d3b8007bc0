package services

import (
	"bytes"
	"fmt"
	"html/template"
)

// cellAttrs builds the colspan/class attributes for one cell.
func cellAttrs(c DocCell) template.HTMLAttr {
	attrs := ""
	if c.Span > 1 {
		attrs += fmt.Sprintf(` colspan="%d"`, c.Span)
	}
	switch c.Align {
	case "right":
		attrs += ` class="right"`
	case "center":
		attrs += ` class="center"`
	}
	return template.HTMLAttr(attrs)
}

// markupTmpl renders a Document as a self-contained HTML page. The output
// contains no timestamps or random values: identical documents produce
// byte-identical markup.
var markupTmpl = template.Must(template.New("document").
	Funcs(template.FuncMap{"cellAttrs": cellAttrs}).
	Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: "Times New Roman", serif; margin: 24px; }
h1 { font-size: 16pt; text-align: center; }
table.slots { margin-bottom: 12px; font-size: 10pt; }
table.slots td.label { font-weight: bold; padding-right: 8px; }
table.doc { border-collapse: collapse; width: 100%; font-size: 9pt; }
table.doc td { border: 1px solid #000; padding: 3px 5px; }
tr.header td { background: #e8e8e8; font-weight: bold; text-align: center; }
tr.summary td { font-weight: bold; }
tr.spacer td { border: none; height: 8px; }
td.right { text-align: right; }
td.center { text-align: center; }
p.footer { margin-top: 12px; font-size: 10pt; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table class="slots">
{{- range .Header}}{{if .Value}}
<tr><td class="label">{{.Label}}:</td><td>{{.Value}}</td></tr>{{end}}{{- end}}
</table>
<table class="doc">
{{- range .Rows}}
<tr class="{{.Kind}}">{{range .Cells}}<td{{cellAttrs .}}>{{if .Bold}}<b>{{.Text}}</b>{{else}}{{.Text}}{{end}}</td>{{end}}</tr>
{{- end}}
</table>
{{- if .Footer}}
<p class="footer">{{.Footer}}</p>
{{- end}}
</body>
</html>
`))

// RenderMarkup converts a Document to HTML bytes. This path has no external
// dependencies and never fails for a well-formed document.
func RenderMarkup(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := markupTmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render markup for %q: %w", doc.Type, err)
	}
	return buf.Bytes(), nil
}
