// Package gitinfo derives project metadata from a working directory:
// the project name, current branch, and origin remote URL.
//
// Lookups are best-effort. A directory outside a git repo yields the
// directory basename as the project name and empty branch/remote, never
// an error, so hook commands stay fast and quiet.
package gitinfo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// commandTimeout bounds each git invocation so a hung git (e.g. a
// network-mounted repo) cannot stall a hook command.
const commandTimeout = 2 * time.Second

// remoteNameRegex extracts the repository name from a remote URL,
// handling both SSH (git@host:owner/repo.git) and HTTPS forms.
var remoteNameRegex = regexp.MustCompile(`[/:]([^/:]+?)(?:\.git)?/?$`)

// sshRemoteRegex matches SSH-style remotes for conversion to HTTPS.
var sshRemoteRegex = regexp.MustCompile(`^(?:ssh://)?git@([^:/]+)[:/](.+?)(?:\.git)?$`)

// ///////////////////////////////////////////////
// Lookups
// ///////////////////////////////////////////////

// ProjectName returns a display name for the project at dir: the
// repository name from the origin remote when available, otherwise the
// directory basename.
func ProjectName(dir string) string {
	if url := rawRemoteURL(dir); url != "" {
		if m := remoteNameRegex.FindStringSubmatch(strings.TrimSuffix(url, "/")); m != nil {
			return m[1]
		}
	}
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// Branch returns the current git branch for dir, or "" outside a repo
// or in detached HEAD state. It reads .git/HEAD directly rather than
// shelling out, since hooks run on every tool use.
func Branch(dir string) string {
	gitDir := findGitDir(dir)
	if gitDir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	const prefix = "ref: refs/heads/"
	if !strings.HasPrefix(head, prefix) {
		return "" // detached HEAD
	}
	return strings.TrimPrefix(head, prefix)
}

// RemoteURL returns the origin remote as an HTTPS URL suitable for a
// clickable repo link, or "" when no remote is configured.
func RemoteURL(dir string) string {
	return ToHTTPS(rawRemoteURL(dir))
}

// ToHTTPS normalizes a git remote URL to HTTPS form. SSH remotes
// (git@host:owner/repo.git) become https://host/owner/repo; HTTPS
// remotes lose their .git suffix; anything else passes through.
func ToHTTPS(url string) string {
	if url == "" {
		return ""
	}
	if m := sshRemoteRegex.FindStringSubmatch(url); m != nil {
		return "https://" + m[1] + "/" + m[2]
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return strings.TrimSuffix(url, ".git")
	}
	return url
}

// ///////////////////////////////////////////////
// Internals
// ///////////////////////////////////////////////

// rawRemoteURL runs `git remote get-url origin` in dir.
func rawRemoteURL(dir string) string {
	if dir == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// findGitDir walks up from dir looking for a .git directory. Worktrees
// and submodules use a .git file instead; those fall back to empty
// rather than following the gitdir pointer.
func findGitDir(dir string) string {
	dir = filepath.Clean(dir)
	for {
		candidate := filepath.Join(dir, ".git")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
