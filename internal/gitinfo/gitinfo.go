// Package gitinfo shells out to git for the branch name and dirty-file
// count. Both calls are deadline-bounded and degrade to absence on any
// failure, including dir not being a repository.
package gitinfo

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

const commandTimeout = time.Second

// Runner satisfies the statusline Git collaborator with real subprocesses.
type Runner struct{}

// Branch returns the current branch name, or "" when it cannot be
// determined (detached HEAD, not a repo, git missing, timeout).
func (Runner) Branch(dir string) string {
	out, err := run(dir, "branch", "--show-current")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// DirtyCount returns the number of uncommitted paths reported by
// git status --porcelain, or 0 on any failure.
func (Runner) DirtyCount(dir string) int {
	out, err := run(dir, "status", "--porcelain")
	if err != nil {
		return 0
	}
	count := 0
	for _, line := range bytes.Split(out, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			count++
		}
	}
	return count
}

func run(dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	return cmd.Output()
}
