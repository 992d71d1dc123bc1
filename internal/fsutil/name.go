package fsutil

import "strings"

var separators = strings.NewReplacer("/", "_", "\\", "_")

// PathElement flattens name into a single directory entry: separators become
// underscores and "." or ".." are replaced outright.
func PathElement(name string) string {
	name = separators.Replace(name)
	if name == "." || name == ".." {
		return strings.ReplaceAll(name, ".", "_")
	}
	return name
}
