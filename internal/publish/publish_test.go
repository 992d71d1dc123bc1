package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/ci/repo", "_home_ci_repo"},
		{`C:\Users\ci\repo`, `_Users_ci_repo`},
		{"C:/Users/ci", "_Users_ci"},
		{"relative/dir", "relative_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FlattenPath(tt.in))
		})
	}
}

func TestSanitizePaths(t *testing.T) {
	reportDir := t.TempDir()
	parent := filepath.Join(string(filepath.Separator), "srv", "build")
	repo := filepath.Join(parent, "repo")
	flat := FlattenPath(parent) + "_"

	pageName := flat + "repo_pkg_file.go.html"
	page := `<a href="` + pageName + `">` + parent + string(filepath.Separator) + `repo/pkg/file.go</a>
<p>` + parent + string(filepath.Separator) + `repo/pkg/file.go</p>`
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, pageName), []byte(page), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "index.html"), []byte(`<a href="`+pageName+`">x</a>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "plain.html"), []byte("nothing to see"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "CoverageResults.xml"), []byte(parent), 0o644))

	report, err := SanitizePaths(reportDir, repo, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Empty(t, report.Failed)
	assert.Len(t, report.Rewritten, 2)
	require.Len(t, report.Renamed, 1)

	renamed := filepath.Join(reportDir, "repo_pkg_file.go.html")
	assert.Equal(t, renamed, report.Renamed[filepath.Join(reportDir, pageName)])
	_, err = os.Stat(filepath.Join(reportDir, pageName))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(renamed)
	require.NoError(t, err)
	assert.Equal(t, 0, strings.Count(string(data), parent))
	assert.NotContains(t, string(data), flat)
	assert.Contains(t, string(data), `href="repo_pkg_file.go.html"`)
	assert.Contains(t, string(data), "<p>repo/pkg/file.go</p>")

	index, err := os.ReadFile(filepath.Join(reportDir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, `<a href="repo_pkg_file.go.html">x</a>`, string(index))

	xml, err := os.ReadFile(filepath.Join(reportDir, "CoverageResults.xml"))
	require.NoError(t, err)
	assert.Equal(t, parent, string(xml), "only HTML artifacts are rewritten")
}

func TestSanitizePathsNoFiles(t *testing.T) {
	report, err := SanitizePaths(t.TempDir(), "/srv/build/repo", nil)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Empty(t, report.Rewritten)
}

func TestSanitizePathsContinuesPastFailures(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	reportDir := t.TempDir()
	parent := filepath.Join(string(filepath.Separator), "srv", "build")
	text := parent + string(filepath.Separator) + "repo/a.go"

	locked := filepath.Join(reportDir, "a.html")
	require.NoError(t, os.WriteFile(locked, []byte(text), 0o644))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "b.html"), []byte(text), 0o644))

	report, err := SanitizePaths(reportDir, filepath.Join(parent, "repo"), nil)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, locked, report.Failed[0].Path)

	data, err := os.ReadFile(filepath.Join(reportDir, "b.html"))
	require.NoError(t, err)
	assert.Equal(t, "repo/a.go", string(data))
}

func TestSanitizePathsRelativeRoot(t *testing.T) {
	work := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(work))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	parent, err := os.Getwd()
	require.NoError(t, err)
	flat := FlattenPath(parent) + "_"

	reportDir := t.TempDir()
	pageName := flat + "repo_main.go.html"
	page := `<a href="../up.html">up</a>
<p>` + parent + string(filepath.Separator) + `repo/main.go</p>`
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, pageName), []byte(page), 0o644))

	report, err := SanitizePaths(reportDir, "repo", nil)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	require.Len(t, report.Renamed, 1)

	data, err := os.ReadFile(filepath.Join(reportDir, "repo_main.go.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), parent)
	assert.Contains(t, string(data), `href="../up.html"`)
	assert.Contains(t, string(data), "<p>repo/main.go</p>")
}

func TestSanitizePathsKeepsExistingTarget(t *testing.T) {
	reportDir := t.TempDir()
	parent := filepath.Join(string(filepath.Separator), "srv", "build")
	flat := FlattenPath(parent) + "_"

	source := filepath.Join(reportDir, flat+"repo_a.go.html")
	target := filepath.Join(reportDir, "repo_a.go.html")
	require.NoError(t, os.WriteFile(source, []byte("generated"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("existing"), 0o644))

	report, err := SanitizePaths(reportDir, filepath.Join(parent, "repo"), nil)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, source, report.Failed[0].Path)
	assert.Contains(t, report.Failed[0].Err.Error(), "already exists")
	assert.Empty(t, report.Renamed)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
	_, err = os.Stat(source)
	assert.NoError(t, err)
}
