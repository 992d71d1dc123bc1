package suite

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Flatten returns the identifiers of every leaf under nodes, depth-first, in the
// order the children were discovered. It does not modify the tree.
func Flatten(nodes ...*Node) []string {
	out := []string{}
	for _, n := range nodes {
		out = flattenInto(out, n)
	}
	return out
}

func flattenInto(out []string, n *Node) []string {
	if n == nil {
		return out
	}
	switch n.Kind {
	case KindCase, KindFailedImport:
		return append(out, n.ID())
	case KindGroup:
		for _, c := range n.Children {
			out = flattenInto(out, c)
		}
	}
	return out
}

// FailedImports returns the entries of ids that come from failed imports
func FailedImports(ids []string) []string {
	var failed []string
	for _, id := range ids {
		if strings.HasPrefix(id, FailedImportPrefix) {
			failed = append(failed, id)
		}
	}
	return failed
}

// ImportError reports test modules that could not be loaded during discovery
type ImportError struct {
	Modules []string
}

func (e *ImportError) Error() string {
	if len(e.Modules) == 1 {
		return fmt.Sprintf("failed to import test module %s", e.Modules[0])
	}
	return fmt.Sprintf("failed to import %d test modules: %s", len(e.Modules), strings.Join(e.Modules, ", "))
}

// IsImportError checks if the error is or wraps an ImportError
func IsImportError(err error) bool {
	var ie *ImportError
	return err != nil && errors.As(err, &ie)
}

// Validate checks flattened identifiers for failed imports. In strict mode any
// failed import is returned as an *ImportError; otherwise each one is logged as
// a warning and nil is returned.
func Validate(ids []string, strict bool, logger *slog.Logger) error {
	failed := FailedImports(ids)
	if len(failed) == 0 {
		return nil
	}

	modules := make([]string, 0, len(failed))
	for _, id := range failed {
		modules = append(modules, strings.TrimPrefix(id, FailedImportPrefix))
	}
	if strict {
		return &ImportError{Modules: modules}
	}
	if logger != nil {
		for _, m := range modules {
			logger.Warn("test module failed to import; continuing without it", "module", m)
		}
	}
	return nil
}
