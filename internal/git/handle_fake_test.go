package git

import (
	"errors"
	"io"

	"github.com/thiagokokada/gitstamp/internal/git/backend"
)

type fakeHandle struct {
	root string

	headCommitFunc      func() (*backend.Commit, error)
	treeEntryFunc       func(commit *backend.Commit, path string) (backend.TreeEntry, error)
	ancestorsByTimeFunc func(start *backend.Commit) (backend.CommitIter, error)

	treeEntryCalls int
}

func (f *fakeHandle) Root() string { return f.root }

func (f *fakeHandle) HeadCommit() (*backend.Commit, error) {
	if f.headCommitFunc != nil {
		return f.headCommitFunc()
	}
	return nil, errors.New("unexpected HeadCommit call")
}

func (f *fakeHandle) TreeEntry(commit *backend.Commit, path string) (backend.TreeEntry, error) {
	f.treeEntryCalls++
	if f.treeEntryFunc != nil {
		return f.treeEntryFunc(commit, path)
	}
	return backend.TreeEntry{}, errors.New("unexpected TreeEntry call")
}

func (f *fakeHandle) AncestorsByTime(start *backend.Commit) (backend.CommitIter, error) {
	if f.ancestorsByTimeFunc != nil {
		return f.ancestorsByTimeFunc(start)
	}
	return nil, errors.New("unexpected AncestorsByTime call")
}

func (f *fakeHandle) ReadBlob(entry backend.TreeEntry) ([]byte, error) {
	return nil, errors.New("unexpected ReadBlob call")
}

func (f *fakeHandle) Close() error { return nil }

// sliceIter yields commits in order, then err (io.EOF when nil).
type sliceIter struct {
	commits []*backend.Commit
	err     error
	closed  bool
}

func (s *sliceIter) Next() (*backend.Commit, error) {
	if len(s.commits) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.commits[0]
	s.commits = s.commits[1:]
	return c, nil
}

func (s *sliceIter) Close() error {
	s.closed = true
	return nil
}
