package git

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/thiagokokada/gitstamp/internal/git/backend"
)

var ErrNotFound = errors.New("no history found")

type StopReason uint8

const (
	// StopHistoryExhausted means every reachable commit had the tip content.
	StopHistoryExhausted StopReason = iota
	StopPathAbsent
	StopContentChanged
)

func (r StopReason) String() string {
	switch r {
	case StopPathAbsent:
		return "path-absent"
	case StopContentChanged:
		return "content-changed"
	default:
		return "history-exhausted"
	}
}

// Resolution is the outcome of one ancestor walk for a path.
type Resolution struct {
	Path      string
	Head      *backend.Commit
	HeadEntry backend.TreeEntry

	// Commit is the oldest commit of the unbroken run of tip content.
	Commit *backend.Commit

	// Divergence and DivergenceEntry are only set when Stop is
	// StopContentChanged.
	Divergence      *backend.Commit
	DivergenceEntry backend.TreeEntry

	Stop    StopReason
	Visited int
}

func (r *Resolution) Time() time.Time {
	return r.Commit.Time()
}

// Resolver finds the commit that introduced the current content of a path.
type Resolver struct{}

// ResolveLastChanged returns the last-changed timestamp of path in seconds
// since the epoch. Failures wrap ErrNotFound.
func (r Resolver) ResolveLastChanged(h backend.Handle, path string) (int64, error) {
	res, err := r.Resolve(h, path)
	if err != nil {
		return 0, err
	}
	return res.Time().Unix(), nil
}

// Resolve walks the history of HEAD, newest first, and keeps the last commit
// whose entry for path has the same content identity as the tip. The walk
// stops at the first ancestor where the path is absent or differs.
func (Resolver) Resolve(h backend.Handle, path string) (*Resolution, error) {
	head, err := h.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	headEntry, err := h.TreeEntry(head, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	if headEntry.IsZero() {
		slog.Debug("zero content identity on head commit", slog.String("path", path))
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, backend.ErrPathNotFound)
	}

	iter, err := h.AncestorsByTime(head)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	defer iter.Close()

	res := &Resolution{Path: path, Head: head, HeadEntry: headEntry, Commit: head}
	for {
		commit, err := iter.Next()
		if err == io.EOF {
			res.Stop = StopHistoryExhausted
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		res.Visited++
		entry, err := h.TreeEntry(commit, path)
		if errors.Is(err, backend.ErrPathNotFound) {
			res.Stop = StopPathAbsent
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		if entry.Hash != headEntry.Hash {
			res.Stop = StopContentChanged
			res.Divergence = commit
			res.DivergenceEntry = entry
			break
		}
		res.Commit = commit
	}
	slog.Debug("history resolved",
		slog.String("path", path),
		slog.String("commit", res.Commit.ShortHash()),
		slog.String("stop", res.Stop.String()),
		slog.Int("visited", res.Visited),
	)
	return res, nil
}
