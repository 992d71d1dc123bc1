package coverage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/tools/cover"
)

type blockKey struct {
	startLine, startCol, endLine, endCol int
}

// mergeProfiles combines profiles that may describe the same files, e.g. when
// several test binaries instrument a shared package. Counts are summed, or
// or-ed in "set" mode.
func mergeProfiles(profiles []*cover.Profile) []*cover.Profile {
	byFile := make(map[string]*cover.Profile)
	blocks := make(map[string]map[blockKey]int)

	for _, p := range profiles {
		merged, ok := byFile[p.FileName]
		if !ok {
			merged = &cover.Profile{FileName: p.FileName, Mode: p.Mode}
			byFile[p.FileName] = merged
			blocks[p.FileName] = make(map[blockKey]int)
		}
		for _, b := range p.Blocks {
			key := blockKey{b.StartLine, b.StartCol, b.EndLine, b.EndCol}
			if i, seen := blocks[p.FileName][key]; seen {
				if merged.Mode == "set" {
					if b.Count > 0 {
						merged.Blocks[i].Count = 1
					}
				} else {
					merged.Blocks[i].Count += b.Count
				}
				continue
			}
			blocks[p.FileName][key] = len(merged.Blocks)
			merged.Blocks = append(merged.Blocks, b)
		}
	}

	out := make([]*cover.Profile, 0, len(byFile))
	for _, p := range byFile {
		sort.Slice(p.Blocks, func(i, j int) bool {
			bi, bj := p.Blocks[i], p.Blocks[j]
			return bi.StartLine < bj.StartLine || (bi.StartLine == bj.StartLine && bi.StartCol < bj.StartCol)
		})
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

// omitted reports whether path matches any of the omit globs. Patterns are
// tried against the base name and the slash-separated path.
func omitted(path string, omit []string) bool {
	slashed := filepath.ToSlash(path)
	candidates := []string{filepath.Base(path), slashed, strings.TrimPrefix(slashed, "/")}
	for _, pattern := range omit {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pattern, c); ok {
				return true
			}
		}
	}
	return false
}

// formatProfile renders profiles in the text format produced by go test
func formatProfile(profiles []*cover.Profile) []byte {
	var b strings.Builder
	mode := "set"
	if len(profiles) > 0 && profiles[0].Mode != "" {
		mode = profiles[0].Mode
	}
	fmt.Fprintf(&b, "mode: %s\n", mode)
	for _, p := range profiles {
		for _, bl := range p.Blocks {
			fmt.Fprintf(&b, "%s:%d.%d,%d.%d %d %d\n", p.FileName,
				bl.StartLine, bl.StartCol, bl.EndLine, bl.EndCol, bl.NumStmt, bl.Count)
		}
	}
	return []byte(b.String())
}

// FileCoverage is the coverage of one source file
type FileCoverage struct {
	Name       string      // file name as recorded in the profile
	Path       string      // absolute path when resolvable, else Name
	Statements int         // instrumented statements
	Covered    int         // statements executed at least once
	Lines      map[int]int // line number -> highest hit count of blocks on it
}

// Percent returns the statement coverage of the file
func (f FileCoverage) Percent() float64 {
	return percent(f.Covered, f.Statements)
}

// Missed returns the number of statements never executed
func (f FileCoverage) Missed() int {
	return f.Statements - f.Covered
}

func percent(covered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total) * 100
}

func fileCoverage(p *cover.Profile, path string) FileCoverage {
	fc := FileCoverage{Name: p.FileName, Path: path, Lines: make(map[int]int)}
	for _, b := range p.Blocks {
		fc.Statements += b.NumStmt
		if b.Count > 0 {
			fc.Covered += b.NumStmt
		}
		for line := b.StartLine; line <= b.EndLine; line++ {
			if hits, ok := fc.Lines[line]; !ok || b.Count > hits {
				fc.Lines[line] = b.Count
			}
		}
	}
	return fc
}

// Totals sums statement counts across files
func Totals(files []FileCoverage) (covered, total int) {
	for _, f := range files {
		covered += f.Covered
		total += f.Statements
	}
	return covered, total
}
