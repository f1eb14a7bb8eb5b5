package stamp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/thiagokokada/gitstamp/internal/git"
	"github.com/thiagokokada/gitstamp/internal/git/backend"
	"github.com/thiagokokada/gitstamp/internal/testrepo"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newStamper(jobs int) *Stamper {
	return &Stamper{
		Locate: git.Locator{}.Locate,
		Open: func(root string) (backend.Handle, error) {
			return backend.Open(backend.KindNative, root)
		},
		Now:  func() time.Time { return fixedNow },
		Jobs: jobs,
	}
}

func threeCommitRepo(t *testing.T) *testrepo.Repo {
	t.Helper()
	repo := testrepo.New(t)
	repo.Commit(1000, "C1", testrepo.Change{Write: map[string]string{"a.txt": "x"}})
	repo.Commit(2000, "C2", testrepo.Change{Write: map[string]string{"b.txt": "y"}})
	repo.Commit(3000, "C3", testrepo.Change{Write: map[string]string{"a.txt": "z"}})
	return repo
}

func report(t *testing.T, results []Result) string {
	t.Helper()
	var b strings.Builder
	if err := Report(&b, results); err != nil {
		t.Fatalf("Report: %v", err)
	}
	return b.String()
}

func assertReport(t *testing.T, got, want string) {
	t.Helper()
	if got == want {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	t.Fatalf("report mismatch:\n%s", diff)
}

func TestStamp_Repository(t *testing.T) {
	t.Parallel()

	want := "" +
		"[GIT] Commit a.txt at: 1970-01-01 08:50:00\n" +
		"[GIT] Commit b.txt at: 1970-01-01 08:33:20\n" +
		"[NOW] Commit missing.txt at: 2024-01-02 11:04:05\n"

	for _, jobs := range []int{1, 4} {
		t.Run(map[int]string{1: "sequential", 4: "parallel"}[jobs], func(t *testing.T) {
			t.Parallel()

			repo := threeCommitRepo(t)
			results := newStamper(jobs).Stamp(context.Background(), repo.Mkdir("docs/guide"),
				[]string{"a.txt", "b.txt", "missing.txt"})
			assertReport(t, report(t, results), want)

			if results[0].Provenance != ProvenanceGit || results[0].Err != nil {
				t.Fatalf("unexpected result for a.txt: %+v", results[0])
			}
			if !errors.Is(results[2].Err, git.ErrNotFound) {
				t.Fatalf("missing.txt error = %v, want ErrNotFound", results[2].Err)
			}
		})
	}
}

func TestStamp_NotARepository(t *testing.T) {
	t.Parallel()

	s := newStamper(1)
	s.Locate = git.Locator{MetadataDir: ".gitstamp-test-none"}.Locate
	results := s.Stamp(context.Background(), t.TempDir(), []string{"a.txt", "b.txt"})

	want := "" +
		"[NOW] Commit a.txt at: 2024-01-02 11:04:05\n" +
		"[NOW] Commit b.txt at: 2024-01-02 11:04:05\n"
	assertReport(t, report(t, results), want)
	for _, r := range results {
		if !errors.Is(r.Err, git.ErrNotARepository) {
			t.Fatalf("error = %v, want ErrNotARepository", r.Err)
		}
	}
}

func TestStamp_EmptyRepository(t *testing.T) {
	t.Parallel()

	repo := testrepo.New(t)
	results := newStamper(1).Stamp(context.Background(), repo.Dir, []string{"README.md"})
	if results[0].Provenance != ProvenanceNow || !errors.Is(results[0].Err, backend.ErrNoHead) {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestStamp_OpenFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	for _, jobs := range []int{1, 3} {
		s := newStamper(jobs)
		s.Locate = func(string) (string, error) { return "/repo", nil }
		s.Open = func(string) (backend.Handle, error) { return nil, boom }
		results := s.Stamp(context.Background(), "/repo", []string{"a", "b", "c"})
		for _, r := range results {
			if r.Provenance != ProvenanceNow || !errors.Is(r.Err, boom) {
				t.Fatalf("jobs=%d: unexpected result %+v", jobs, r)
			}
		}
	}
}

func TestStamp_Cancelled(t *testing.T) {
	t.Parallel()

	repo := threeCommitRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, jobs := range []int{1, 2} {
		results := newStamper(jobs).Stamp(ctx, repo.Dir, []string{"a.txt", "b.txt"})
		for _, r := range results {
			if r.Provenance != ProvenanceNow || !errors.Is(r.Err, context.Canceled) {
				t.Fatalf("jobs=%d: unexpected result %+v", jobs, r)
			}
		}
	}
}

func TestStamp_PreservesOrderWithManyFiles(t *testing.T) {
	t.Parallel()

	repo := testrepo.New(t)
	files := make([]string, 0, 20)
	writes := map[string]string{}
	for i := range 20 {
		name := string(rune('a'+i)) + ".md"
		files = append(files, name)
		writes[name] = name
	}
	repo.Commit(1000, "all", testrepo.Change{Write: writes})

	results := newStamper(8).Stamp(context.Background(), repo.Dir, files)
	for i, r := range results {
		if r.File != files[i] {
			t.Fatalf("results[%d].File = %q, want %q", i, r.File, files[i])
		}
		if r.Provenance != ProvenanceGit || r.Time.Unix() != 1000 {
			t.Fatalf("unexpected result %+v", r)
		}
	}
}

type recordingExplainer struct {
	mu    sync.Mutex
	paths []string
}

func (e *recordingExplainer) Render(_ backend.Handle, res *git.Resolution) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths = append(e.paths, res.Path+":"+res.Stop.String())
	return errors.New("ignored")
}

func TestStamp_Explain(t *testing.T) {
	t.Parallel()

	repo := threeCommitRepo(t)
	explainer := &recordingExplainer{}
	s := newStamper(1)
	s.Explain = explainer
	results := s.Stamp(context.Background(), repo.Dir, []string{"a.txt", "missing.txt"})

	if results[0].Provenance != ProvenanceGit {
		t.Fatalf("explain errors must not change the result: %+v", results[0])
	}
	if len(explainer.paths) != 1 || explainer.paths[0] != "a.txt:content-changed" {
		t.Fatalf("explained = %v", explainer.paths)
	}
}

func TestResultLine(t *testing.T) {
	t.Parallel()

	r := Result{File: "docs/SUMMARY.md", Time: time.Unix(1700000000, 0), Provenance: ProvenanceGit}
	if got, want := r.Line(), "[GIT] Commit docs/SUMMARY.md at: 2023-11-15 06:13:20"; got != want {
		t.Fatalf("Line() = %q, want %q", got, want)
	}
	if ProvenanceNow.String() != "NOW" {
		t.Fatalf("ProvenanceNow = %q", ProvenanceNow)
	}
}
