package coverage

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/drew/cirun/internal/fsutil"
)

// XMLFileName is the Cobertura report name inside a report directory
const XMLFileName = "CoverageResults.xml"

type coberturaReport struct {
	XMLName         xml.Name           `xml:"coverage"`
	LineRate        string             `xml:"line-rate,attr"`
	BranchRate      string             `xml:"branch-rate,attr"`
	LinesCovered    int                `xml:"lines-covered,attr"`
	LinesValid      int                `xml:"lines-valid,attr"`
	BranchesCovered int                `xml:"branches-covered,attr"`
	BranchesValid   int                `xml:"branches-valid,attr"`
	Complexity      int                `xml:"complexity,attr"`
	Version         string             `xml:"version,attr"`
	Timestamp       int64              `xml:"timestamp,attr"`
	Sources         []string           `xml:"sources>source"`
	Packages        []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Name       string           `xml:"name,attr"`
	LineRate   string           `xml:"line-rate,attr"`
	BranchRate string           `xml:"branch-rate,attr"`
	Complexity int              `xml:"complexity,attr"`
	Classes    []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Name       string          `xml:"name,attr"`
	Filename   string          `xml:"filename,attr"`
	LineRate   string          `xml:"line-rate,attr"`
	BranchRate string          `xml:"branch-rate,attr"`
	Complexity int             `xml:"complexity,attr"`
	Methods    struct{}        `xml:"methods"`
	Lines      []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number int `xml:"number,attr"`
	Hits   int `xml:"hits,attr"`
}

func rate(covered, valid int) string {
	if valid == 0 {
		return "1"
	}
	return fmt.Sprintf("%.4g", float64(covered)/float64(valid))
}

// relativeTo returns path relative to the first source containing it
func relativeTo(path string, sources []string) string {
	for _, src := range sources {
		rel, err := filepath.Rel(src, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

func writeCobertura(path string, files []FileCoverage, sources []string) error {
	report := coberturaReport{
		BranchRate: "0",
		Version:    "cirun",
		Timestamp:  time.Now().UnixMilli(),
		Sources:    sources,
	}

	packages := make(map[string]*coberturaPackage)
	pkgCovered := make(map[string][2]int)
	for _, f := range files {
		rel := relativeTo(f.Path, sources)
		pkgName := strings.ReplaceAll(filepath.ToSlash(filepath.Dir(rel)), "/", ".")

		class := coberturaClass{Name: filepath.Base(rel), Filename: rel, BranchRate: "0"}
		lines := make([]int, 0, len(f.Lines))
		for n := range f.Lines {
			lines = append(lines, n)
		}
		sort.Ints(lines)
		covered := 0
		for _, n := range lines {
			hits := f.Lines[n]
			if hits > 0 {
				covered++
			}
			class.Lines = append(class.Lines, coberturaLine{Number: n, Hits: hits})
		}
		class.LineRate = rate(covered, len(lines))

		pkg, ok := packages[pkgName]
		if !ok {
			pkg = &coberturaPackage{Name: pkgName, BranchRate: "0"}
			packages[pkgName] = pkg
		}
		pkg.Classes = append(pkg.Classes, class)
		c := pkgCovered[pkgName]
		pkgCovered[pkgName] = [2]int{c[0] + covered, c[1] + len(lines)}

		report.LinesCovered += covered
		report.LinesValid += len(lines)
	}

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pkg := packages[name]
		c := pkgCovered[name]
		pkg.LineRate = rate(c[0], c[1])
		report.Packages = append(report.Packages, *pkg)
	}
	report.LineRate = rate(report.LinesCovered, report.LinesValid)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode coverage xml: %w", err)
	}
	buf.WriteString("\n")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
