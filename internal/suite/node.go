// Package suite models discovered test suites as a tree and turns that tree into
// flat, ordered test identifiers.
package suite

import "fmt"

// Kind discriminates the variants of a Node
type Kind int

const (
	// KindGroup is a container of child nodes (a module, class or root)
	KindGroup Kind = iota
	// KindCase is a single runnable test
	KindCase
	// KindFailedImport stands in for a module that could not be loaded
	KindFailedImport
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindCase:
		return "case"
	case KindFailedImport:
		return "failed-import"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FailedImportPrefix marks flattened identifiers that come from modules which
// failed to load
const FailedImportPrefix = "_FailedImport/"

// Node is one entry of a suite tree. Which fields are meaningful depends on Kind:
//
//   - KindGroup: Name, Module (set when the group is a loadable module), Children
//   - KindCase: Group, Name
//   - KindFailedImport: Module, Err
//
// A group exclusively owns its children; nodes hold no parent references.
type Node struct {
	Kind     Kind
	Name     string
	Group    string
	Module   string
	Err      string
	Children []*Node
}

// NewGroup creates a group node owning the given children
func NewGroup(name string, children ...*Node) *Node {
	return &Node{Kind: KindGroup, Name: name, Children: children}
}

// NewModule creates a group node for a loaded module at path
func NewModule(name, path string, children ...*Node) *Node {
	return &Node{Kind: KindGroup, Name: name, Module: path, Children: children}
}

// NewCase creates a leaf for test name owned by group
func NewCase(group, name string) *Node {
	return &Node{Kind: KindCase, Group: group, Name: name}
}

// NewFailedImport creates a leaf recording that module could not be loaded
func NewFailedImport(module string, err error) *Node {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Node{Kind: KindFailedImport, Module: module, Err: msg}
}

// Add appends children to a group
func (n *Node) Add(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// IsLeaf reports whether the node yields a test identifier of its own
func (n *Node) IsLeaf() bool {
	return n.Kind == KindCase || n.Kind == KindFailedImport
}

// ID returns the test identifier of a leaf, or "" for groups
func (n *Node) ID() string {
	switch n.Kind {
	case KindCase:
		return n.Group + "/" + n.Name
	case KindFailedImport:
		return FailedImportPrefix + n.Module
	default:
		return ""
	}
}

// Count returns the number of leaves under n
func Count(n *Node) int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindCase, KindFailedImport:
		return 1
	case KindGroup:
		total := 0
		for _, c := range n.Children {
			total += Count(c)
		}
		return total
	default:
		return 0
	}
}

// Walk visits n and its descendants depth-first in child order. Returning false
// from fn skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) || n.Kind != KindGroup {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
