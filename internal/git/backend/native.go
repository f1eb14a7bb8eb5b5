package backend

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type native struct {
	root string
	repo *gitlib.Repository
}

// OpenNative opens the repository at root with go-git. The root must be the
// working tree top level; no upward search is done here.
func OpenNative(root string) (Handle, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	repo, err := gitlib.PlainOpen(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCannotOpen, abs, err)
	}
	return &native{root: abs, repo: repo}, nil
}

func (n *native) Root() string {
	return n.root
}

func (n *native) HeadCommit() (*Commit, error) {
	ref, err := n.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, ErrNoHead
		}
		return nil, fmt.Errorf("%w: resolve HEAD: %w", ErrNoHead, err)
	}
	c, err := n.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: HEAD commit %s: %w", ErrObjectRead, ref.Hash(), err)
	}
	return commitFromObject(c), nil
}

func (n *native) TreeEntry(commit *Commit, path string) (TreeEntry, error) {
	if commit == nil {
		return TreeEntry{}, fmt.Errorf("commit not specified")
	}
	path = cleanPath(path)
	if path == "" {
		return TreeEntry{}, ErrPathNotFound
	}
	c, err := n.repo.CommitObject(plumbing.NewHash(commit.Hash))
	if err != nil {
		return TreeEntry{}, fmt.Errorf("%w: commit %s: %w", ErrObjectRead, commit.ShortHash(), err)
	}
	tree, err := c.Tree()
	if err != nil {
		return TreeEntry{}, fmt.Errorf("%w: tree of %s: %w", ErrObjectRead, commit.ShortHash(), err)
	}
	entry, err := n.findEntry(tree, path)
	if err != nil {
		return TreeEntry{}, err
	}
	return TreeEntry{Path: path, Hash: entry.Hash.String(), Kind: kindFromMode(entry.Mode)}, nil
}

// findEntry descends one segment at a time so a missing segment, or a
// segment that is not a directory, is reported as ErrPathNotFound while
// unreadable subtrees are reported as ErrObjectRead.
func (n *native) findEntry(tree *object.Tree, path string) (*object.TreeEntry, error) {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		entry, err := tree.FindEntry(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		if i == len(parts)-1 {
			return entry, nil
		}
		if entry.Mode != filemode.Dir {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		tree, err = object.GetTree(n.repo.Storer, entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: tree %s: %w", ErrObjectRead, entry.Hash, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
}

func (n *native) AncestorsByTime(start *Commit) (CommitIter, error) {
	if start == nil {
		return nil, fmt.Errorf("starting commit not specified")
	}
	iter, err := n.repo.Log(&gitlib.LogOptions{
		From:  plumbing.NewHash(start.Hash),
		Order: gitlib.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read commits: %w", ErrObjectRead, err)
	}
	return &nativeIter{iter: iter}, nil
}

func (n *native) ReadBlob(entry TreeEntry) ([]byte, error) {
	if entry.Kind != EntryFile {
		return nil, fmt.Errorf("%s is a %s, not a file", entry.Path, entry.Kind)
	}
	blob, err := n.repo.BlobObject(plumbing.NewHash(entry.Hash))
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s: %w", ErrObjectRead, entry.Hash, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s: %w", ErrObjectRead, entry.Hash, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s: %w", ErrObjectRead, entry.Hash, err)
	}
	return data, nil
}

func (n *native) Close() error {
	if closer, ok := n.repo.Storer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type nativeIter struct {
	iter object.CommitIter
	done bool
}

func (it *nativeIter) Next() (*Commit, error) {
	if it.done {
		return nil, io.EOF
	}
	c, err := it.iter.Next()
	if err != nil {
		if err == io.EOF {
			it.done = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: iterate commits: %w", ErrObjectRead, err)
	}
	return commitFromObject(c), nil
}

func (it *nativeIter) Close() error {
	it.done = true
	it.iter.Close()
	return nil
}

func commitFromObject(c *object.Commit) *Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return &Commit{
		Hash:         c.Hash.String(),
		ParentHashes: parents,
		Author:       Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer:    Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
	}
}

func kindFromMode(mode filemode.FileMode) EntryKind {
	switch mode {
	case filemode.Dir:
		return EntryTree
	case filemode.Submodule:
		return EntrySubmodule
	default:
		return EntryFile
	}
}
