// Package git reads the repository metadata used to label runs.
package git

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
)

// ShortHashLen is the length of an abbreviated commit hash
const ShortHashLen = 8

// GitInfo holds git metadata for a run
type GitInfo struct {
	InGitRepo bool   `json:"inGitRepo"`
	RepoRoot  string `json:"repoRoot"`
	Head      string `json:"head"`  // full HEAD hash, empty when unknown
	Dirty     bool   `json:"dirty"` // uncommitted changes in the worktree
}

// ShortHead returns the abbreviated HEAD hash
func (g GitInfo) ShortHead() string {
	if len(g.Head) > ShortHashLen {
		return g.Head[:ShortHashLen]
	}
	return g.Head
}

// DetectRepoRoot detects the git repository root of dir.
// Returns the root path and whether dir is inside a git repo.
func DetectRepoRoot(dir string) (string, bool) {
	root, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil || root == "" {
		// Not a git repo, use dir
		if dir != "" {
			return dir, false
		}
		cwd, err := os.Getwd()
		if err != nil {
			return ".", false
		}
		return cwd, false
	}
	return root, true
}

// Detect collects the repository root, HEAD hash and worktree state of dir.
// Outside a repository only RepoRoot is set.
func Detect(dir string) GitInfo {
	root, inRepo := DetectRepoRoot(dir)
	info := GitInfo{InGitRepo: inRepo, RepoRoot: root}
	if !inRepo {
		return info
	}

	// A fresh repository has no HEAD yet
	if head, err := gitOutput(root, "rev-parse", "HEAD"); err == nil {
		info.Head = head
	}
	if status, err := gitOutput(root, "status", "--porcelain"); err == nil {
		info.Dirty = status != ""
	}
	return info
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &bytes.Buffer{}
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}
