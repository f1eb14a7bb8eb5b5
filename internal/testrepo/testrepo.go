// Package testrepo builds throwaway git repositories on disk for tests.
package testrepo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type Repo struct {
	Dir string

	t    testing.TB
	repo *gitlib.Repository
}

// New initializes an empty repository in a temporary directory.
func New(t testing.TB) *Repo {
	t.Helper()
	dir := t.TempDir()
	// Resolve symlinks (e.g. /tmp on macOS) so paths compare equal to what
	// the locator returns.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	repo, err := gitlib.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	return &Repo{Dir: dir, t: t, repo: repo}
}

// Change describes one commit: files to write and paths to delete.
type Change struct {
	Write  map[string]string
	Remove []string
	// Parents overrides the default parent (HEAD); use it to build merges.
	Parents []string
}

// Commit applies change and commits it with author and committer time set to
// unix seconds. It returns the new commit hash.
func (r *Repo) Commit(unix int64, message string, change Change) string {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	for path, content := range change.Write {
		full := filepath.Join(r.Dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			r.t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			r.t.Fatalf("write %s: %v", path, err)
		}
		if _, err := wt.Add(path); err != nil {
			r.t.Fatalf("add %s: %v", path, err)
		}
	}
	for _, path := range change.Remove {
		if _, err := wt.Remove(path); err != nil {
			r.t.Fatalf("remove %s: %v", path, err)
		}
	}
	sig := &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(unix, 0).UTC()}
	opts := &gitlib.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true}
	for _, p := range change.Parents {
		opts.Parents = append(opts.Parents, plumbing.NewHash(p))
	}
	hash, err := wt.Commit(message, opts)
	if err != nil {
		r.t.Fatalf("commit %q: %v", message, err)
	}
	return hash.String()
}

// Detach points HEAD directly at hash.
func (r *Repo) Detach(hash string) {
	r.t.Helper()
	ref := plumbing.NewHashReference(plumbing.HEAD, plumbing.NewHash(hash))
	if err := r.repo.Storer.SetReference(ref); err != nil {
		r.t.Fatalf("detach HEAD: %v", err)
	}
}

// SetBranch creates or moves refs/heads/name to hash.
func (r *Repo) SetBranch(name, hash string) {
	r.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), plumbing.NewHash(hash))
	if err := r.repo.Storer.SetReference(ref); err != nil {
		r.t.Fatalf("set branch %s: %v", name, err)
	}
}

// Mkdir creates a directory below the working tree and returns its path.
func (r *Repo) Mkdir(rel string) string {
	r.t.Helper()
	full := filepath.Join(r.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(full, 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", rel, err)
	}
	return full
}

// RequireGit skips the test when no git executable is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not found")
	}
}

// RunGit runs the git CLI in dir and returns trimmed stdout.
func RunGit(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}
