package backend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCannotOpen   = errors.New("cannot open repository")
	ErrNoHead       = errors.New("repository has no HEAD commit")
	ErrPathNotFound = errors.New("path not found in tree")
	ErrObjectRead   = errors.New("cannot read object")
)

// Handle abstracts read access to repository history.
//
// The default implementation uses go-git, but the interface allows the git
// executable to be used instead without changing callers.
type Handle interface {
	Root() string
	HeadCommit() (*Commit, error)
	TreeEntry(commit *Commit, path string) (TreeEntry, error)
	// AncestorsByTime returns a fresh iterator over every commit reachable
	// from start (inclusive), newest committer time first.
	AncestorsByTime(start *Commit) (CommitIter, error)
	ReadBlob(entry TreeEntry) ([]byte, error)
	Close() error
}

// CommitIter is a single-pass commit sequence. Next returns io.EOF once the
// sequence is exhausted.
type CommitIter interface {
	Next() (*Commit, error)
	Close() error
}

type Kind uint8

const (
	KindNative Kind = iota
	KindGitCLI
)

func (k Kind) String() string {
	if k == KindGitCLI {
		return "gitcli"
	}
	return "native"
}

func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "native", "go-git":
		return KindNative, nil
	case "gitcli", "git":
		return KindGitCLI, nil
	default:
		return KindNative, fmt.Errorf("unknown backend %q (want native or gitcli)", raw)
	}
}

// Open returns a Handle for the repository rooted at root.
func Open(kind Kind, root string) (Handle, error) {
	switch kind {
	case KindGitCLI:
		return OpenCLI(root)
	default:
		return OpenNative(root)
	}
}

// cleanPath normalizes a repository-relative path to the slash separated form
// stored in trees.
func cleanPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "./")
	return strings.Trim(path, "/")
}
