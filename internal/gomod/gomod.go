// Package gomod locates Go modules on disk and maps import paths to files.
package gomod

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// Module is a Go module rooted at Dir
type Module struct {
	Path string // module path from go.mod
	Dir  string // absolute directory containing go.mod
}

// FindModule walks up from dir to the nearest go.mod and returns its module
func FindModule(dir string) (Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Module{}, err
	}
	for d := abs; ; d = filepath.Dir(d) {
		goModPath := filepath.Join(d, "go.mod")
		content, err := os.ReadFile(goModPath)
		if err == nil {
			path := modfile.ModulePath(content)
			if path == "" {
				return Module{}, fmt.Errorf("could not find module name in %s", goModPath)
			}
			return Module{Path: path, Dir: d}, nil
		}
		if !os.IsNotExist(err) {
			return Module{}, fmt.Errorf("failed to read %s: %w", goModPath, err)
		}
		if filepath.Dir(d) == d {
			return Module{}, fmt.Errorf("no go.mod found above %s", abs)
		}
	}
}

// ImportPath returns the import path of the package in dir
func (m Module) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(m.Dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not inside module %s", dir, m.Path)
	}
	if rel == "." {
		return m.Path, nil
	}
	return m.Path + "/" + filepath.ToSlash(rel), nil
}

// Index resolves import-path file names against a set of modules
type Index struct {
	modules []Module
}

// NewIndex builds an index of the modules enclosing each of dirs. Directories
// outside any module are skipped.
func NewIndex(dirs []string) *Index {
	seen := make(map[string]bool)
	idx := &Index{}
	for _, d := range dirs {
		m, err := FindModule(d)
		if err != nil || seen[m.Dir] {
			continue
		}
		seen[m.Dir] = true
		idx.modules = append(idx.modules, m)
	}
	// longest module path first so nested modules win
	sort.SliceStable(idx.modules, func(i, j int) bool {
		return len(idx.modules[i].Path) > len(idx.modules[j].Path)
	})
	return idx
}

// Modules returns the indexed modules
func (i *Index) Modules() []Module {
	return i.modules
}

// Resolve maps a file name such as "example.com/m/pkg/f.go" to an absolute
// path. Names that are already absolute are returned unchanged.
func (i *Index) Resolve(name string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, true
	}
	for _, m := range i.modules {
		if name == m.Path {
			return m.Dir, true
		}
		if strings.HasPrefix(name, m.Path+"/") {
			rel := strings.TrimPrefix(name, m.Path+"/")
			return filepath.Join(m.Dir, filepath.FromSlash(rel)), true
		}
	}
	return "", false
}
