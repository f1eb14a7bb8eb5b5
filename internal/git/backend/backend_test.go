package backend

import (
	"errors"
	"io"
	"testing"

	"github.com/thiagokokada/gitstamp/internal/testrepo"
)

type opener struct {
	name string
	open func(t *testing.T, root string) Handle
}

func openers() []opener {
	return []opener{
		{name: "native", open: func(t *testing.T, root string) Handle {
			t.Helper()
			h, err := OpenNative(root)
			if err != nil {
				t.Fatalf("OpenNative: %v", err)
			}
			t.Cleanup(func() { _ = h.Close() })
			return h
		}},
		{name: "gitcli", open: func(t *testing.T, root string) Handle {
			t.Helper()
			testrepo.RequireGit(t)
			h, err := OpenCLI(root)
			if err != nil {
				t.Fatalf("OpenCLI: %v", err)
			}
			t.Cleanup(func() { _ = h.Close() })
			return h
		}},
	}
}

func TestHeadCommit_EmptyRepository(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			repo := testrepo.New(t)
			h := o.open(t, repo.Dir)
			if _, err := h.HeadCommit(); !errors.Is(err, ErrNoHead) {
				t.Fatalf("HeadCommit() error = %v, want ErrNoHead", err)
			}
		})
	}
}

func TestHeadCommit_BranchAndDetached(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			repo := testrepo.New(t)
			c1 := repo.Commit(1000, "first", testrepo.Change{Write: map[string]string{"a.txt": "x"}})
			c2 := repo.Commit(2000, "second", testrepo.Change{Write: map[string]string{"a.txt": "y"}})
			h := o.open(t, repo.Dir)

			head, err := h.HeadCommit()
			if err != nil {
				t.Fatalf("HeadCommit: %v", err)
			}
			if head.Hash != c2 {
				t.Fatalf("head = %s, want %s", head.Hash, c2)
			}
			if got := head.Time().Unix(); got != 2000 {
				t.Fatalf("head time = %d, want 2000", got)
			}
			if len(head.ParentHashes) != 1 || head.ParentHashes[0] != c1 {
				t.Fatalf("parents = %v, want [%s]", head.ParentHashes, c1)
			}

			repo.Detach(c1)
			head, err = h.HeadCommit()
			if err != nil {
				t.Fatalf("HeadCommit (detached): %v", err)
			}
			if head.Hash != c1 {
				t.Fatalf("detached head = %s, want %s", head.Hash, c1)
			}
		})
	}
}

func TestTreeEntry(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			repo := testrepo.New(t)
			repo.Commit(1000, "files", testrepo.Change{Write: map[string]string{
				"a.txt":               "x",
				"b.txt":               "x",
				"docs/guide/intro.md": "hello",
			}})
			h := o.open(t, repo.Dir)
			head, err := h.HeadCommit()
			if err != nil {
				t.Fatalf("HeadCommit: %v", err)
			}

			a, err := h.TreeEntry(head, "a.txt")
			if err != nil {
				t.Fatalf("TreeEntry(a.txt): %v", err)
			}
			b, err := h.TreeEntry(head, "./b.txt")
			if err != nil {
				t.Fatalf("TreeEntry(./b.txt): %v", err)
			}
			if a.Kind != EntryFile || a.IsZero() {
				t.Fatalf("unexpected entry for a.txt: %+v", a)
			}
			if a.Hash != b.Hash {
				t.Fatalf("identical content must share identity: %s != %s", a.Hash, b.Hash)
			}

			nested, err := h.TreeEntry(head, "docs/guide/intro.md")
			if err != nil {
				t.Fatalf("TreeEntry(nested): %v", err)
			}
			if nested.Path != "docs/guide/intro.md" || nested.Kind != EntryFile {
				t.Fatalf("unexpected nested entry: %+v", nested)
			}
			dir, err := h.TreeEntry(head, "docs/guide")
			if err != nil {
				t.Fatalf("TreeEntry(dir): %v", err)
			}
			if dir.Kind != EntryTree {
				t.Fatalf("expected tree kind, got %v", dir.Kind)
			}

			for _, missing := range []string{"missing.txt", "docs/missing.md", "a.txt/child", "nope/intro.md", ""} {
				if _, err := h.TreeEntry(head, missing); !errors.Is(err, ErrPathNotFound) {
					t.Fatalf("TreeEntry(%q) error = %v, want ErrPathNotFound", missing, err)
				}
			}

			data, err := h.ReadBlob(nested)
			if err != nil {
				t.Fatalf("ReadBlob: %v", err)
			}
			if string(data) != "hello" {
				t.Fatalf("ReadBlob = %q, want %q", data, "hello")
			}
			if _, err := h.ReadBlob(dir); err == nil {
				t.Fatal("expected error reading a tree as blob")
			}
		})
	}
}

func TestAncestorsByTime(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			repo := testrepo.New(t)
			root := repo.Commit(1000, "root", testrepo.Change{Write: map[string]string{"a.txt": "x"}})
			side := repo.Commit(3000, "side", testrepo.Change{Write: map[string]string{"side.txt": "s"}})
			main := repo.Commit(2000, "main", testrepo.Change{
				Write:   map[string]string{"main.txt": "m"},
				Parents: []string{root},
			})
			merge := repo.Commit(4000, "merge", testrepo.Change{Parents: []string{main, side}})
			h := o.open(t, repo.Dir)

			head, err := h.HeadCommit()
			if err != nil {
				t.Fatalf("HeadCommit: %v", err)
			}
			if head.Hash != merge {
				t.Fatalf("head = %s, want merge %s", head.Hash, merge)
			}

			got := drain(t, h, head)
			want := []string{merge, side, main, root}
			if len(got) != len(want) {
				t.Fatalf("walk length = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].Hash != want[i] {
					t.Fatalf("walk[%d] = %s, want %s", i, got[i].Hash, want[i])
				}
				if i > 0 && got[i].Time().After(got[i-1].Time()) {
					t.Fatalf("walk not ordered by time at %d", i)
				}
			}

			// A fresh call yields an independent sequence.
			again := drain(t, h, head)
			if len(again) != len(got) {
				t.Fatalf("second walk length = %d, want %d", len(again), len(got))
			}
		})
	}
}

func TestAncestorsByTime_EarlyClose(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			repo := testrepo.New(t)
			for i := int64(1); i <= 5; i++ {
				repo.Commit(i*100, "commit", testrepo.Change{Write: map[string]string{"a.txt": string(rune('a' + i))}})
			}
			h := o.open(t, repo.Dir)
			head, err := h.HeadCommit()
			if err != nil {
				t.Fatalf("HeadCommit: %v", err)
			}
			iter, err := h.AncestorsByTime(head)
			if err != nil {
				t.Fatalf("AncestorsByTime: %v", err)
			}
			first, err := iter.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if first.Hash != head.Hash {
				t.Fatalf("walk must start at the tip: got %s", first.Hash)
			}
			if err := iter.Close(); err != nil {
				t.Fatalf("Close after partial walk: %v", err)
			}
		})
	}
}

func drain(t *testing.T, h Handle, start *Commit) []*Commit {
	t.Helper()
	iter, err := h.AncestorsByTime(start)
	if err != nil {
		t.Fatalf("AncestorsByTime: %v", err)
	}
	defer iter.Close()
	var out []*Commit
	for {
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, c)
	}
	if _, err := iter.Next(); err != io.EOF {
		t.Fatalf("Next after exhaustion = %v, want io.EOF", err)
	}
	return out
}

func TestOpen_NotARepository(t *testing.T) {
	t.Parallel()

	if _, err := OpenNative(t.TempDir()); !errors.Is(err, ErrCannotOpen) {
		t.Fatalf("OpenNative error = %v, want ErrCannotOpen", err)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "", want: KindNative},
		{in: "native", want: KindNative},
		{in: " GitCLI ", want: KindGitCLI},
		{in: "git", want: KindGitCLI},
		{in: "libgit2", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTreeEntryIsZero(t *testing.T) {
	t.Parallel()

	if !(TreeEntry{}).IsZero() {
		t.Fatal("empty hash must be zero")
	}
	if !(TreeEntry{Hash: "0000000000000000000000000000000000000000"}).IsZero() {
		t.Fatal("all-zero hash must be zero")
	}
	if (TreeEntry{Hash: "0a00000000000000000000000000000000000000"}).IsZero() {
		t.Fatal("non-zero hash reported as zero")
	}
}
