// Package gotest discovers Go test functions and runs them with go test -json.
package gotest

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/drew/cirun/internal/gomod"
	"github.com/drew/cirun/internal/suite"
)

// DefaultPattern matches Go test files
const DefaultPattern = "*_test.go"

// Loader reads a _test.go file and returns a module group whose cases are its
// top-level test functions. The group is named after the package import path,
// which is also what go test reports in its JSON events.
type Loader struct{}

// Load parses path without compiling it. Syntax errors and files outside a Go
// module are load failures.
func (Loader) Load(path string) (*suite.Node, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	mod, err := gomod.FindModule(dir)
	if err != nil {
		return nil, err
	}
	importPath, err := mod.ImportPath(dir)
	if err != nil {
		return nil, err
	}

	group := suite.NewModule(importPath, path)
	for _, name := range testFunctions(f) {
		group.Add(suite.NewCase(importPath, name))
	}
	return group, nil
}

// testFunctions returns the names of top-level TestXxx functions in
// declaration order, excluding TestMain
func testFunctions(f *ast.File) []string {
	var names []string
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		name := fn.Name.Name
		if name == "TestMain" || !isTestName(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// isTestName follows the go tool's rule: "Test" followed by nothing or by a
// character that is not a lower-case letter
func isTestName(name string) bool {
	if !strings.HasPrefix(name, "Test") {
		return false
	}
	if len(name) == len("Test") {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[len("Test"):])
	return !unicode.IsLower(r)
}
