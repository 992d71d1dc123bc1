package coverage

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"github.com/drew/cirun/internal/fsutil"
	"github.com/drew/cirun/internal/publish"
)

// IndexFileName is the coverage report entry page
const IndexFileName = "index.html"

// PageName returns the report page name for a source file. Pages are named
// after the flattened absolute path, which publish.SanitizePaths later trims.
func PageName(path string) string {
	return publish.FlattenPath(path) + ".html"
}

type indexRow struct {
	Path       string
	Page       string
	Statements int
	Missed     int
	Percent    float64
}

type indexData struct {
	Rows       []indexRow
	Statements int
	Missed     int
	Percent    float64
}

type sourceLine struct {
	Number int
	Text   string
	Class  string
}

type pageData struct {
	Path    string
	Percent float64
	Lines   []sourceLine
	Missing bool
}

var funcs = template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
}

var (
	indexTmpl = template.Must(template.New("index").Funcs(funcs).Parse(indexTemplate))
	pageTmpl  = template.Must(template.New("page").Funcs(funcs).Parse(pageTemplate))
)

func writeHTML(dir string, files []FileCoverage) (float64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create report directory: %w", err)
	}

	sorted := append([]FileCoverage(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	covered, total := Totals(sorted)
	data := indexData{Statements: total, Missed: total - covered, Percent: percent(covered, total)}

	for _, f := range sorted {
		page := PageName(f.Path)
		data.Rows = append(data.Rows, indexRow{
			Path:       f.Path,
			Page:       page,
			Statements: f.Statements,
			Missed:     f.Missed(),
			Percent:    f.Percent(),
		})
		if err := writePage(filepath.Join(dir, page), f); err != nil {
			return 0, fmt.Errorf("failed to render %s: %w", f.Path, err)
		}
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		return 0, err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, IndexFileName), buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return data.Percent, nil
}

func writePage(path string, f FileCoverage) error {
	data := pageData{Path: f.Path, Percent: f.Percent()}

	src, err := os.Open(f.Path)
	if err != nil {
		data.Missing = true
	} else {
		defer src.Close()
		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		n := 0
		for scanner.Scan() {
			n++
			line := sourceLine{Number: n, Text: scanner.Text()}
			if hits, ok := f.Lines[n]; ok {
				if hits > 0 {
					line.Class = "run"
				} else {
					line.Class = "mis"
				}
			}
			data.Lines = append(data.Lines, line)
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Coverage report</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 12px; border-bottom: 1px solid #ddd; text-align: left; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>Coverage report: {{pct .Percent}}</h1>
<table>
<thead><tr><th>Module</th><th>statements</th><th>missing</th><th>coverage</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td><a href="{{.Page}}">{{.Path}}</a></td><td class="num">{{.Statements}}</td><td class="num">{{.Missed}}</td><td class="num">{{pct .Percent}}</td></tr>
{{- end}}
</tbody>
<tfoot><tr><td>Total</td><td class="num">{{.Statements}}</td><td class="num">{{.Missed}}</td><td class="num">{{pct .Percent}}</td></tr></tfoot>
</table>
</body>
</html>
`

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Coverage for {{.Path}}: {{pct .Percent}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2em; }
pre { margin: 0; }
.run { background: #dfd; }
.mis { background: #fdd; }
.n { color: #999; display: inline-block; width: 4em; text-align: right; margin-right: 1em; }
</style>
</head>
<body>
<p><a href="index.html">&laquo; index</a></p>
<h1>Coverage for <b>{{.Path}}</b>: {{pct .Percent}}</h1>
{{- if .Missing}}
<p>Source file not available.</p>
{{- else}}
{{- range .Lines}}
<pre class="{{.Class}}"><span class="n">{{.Number}}</span>{{.Text}}</pre>
{{- end}}
{{- end}}
</body>
</html>
`
