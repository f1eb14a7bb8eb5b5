// Package stamp turns a list of files into "last changed" report lines,
// falling back to the current time whenever history is unavailable.
package stamp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thiagokokada/gitstamp/internal/git"
	"github.com/thiagokokada/gitstamp/internal/git/backend"
	"github.com/thiagokokada/gitstamp/internal/timefmt"
)

type Provenance uint8

const (
	ProvenanceGit Provenance = iota
	ProvenanceNow
)

func (p Provenance) String() string {
	if p == ProvenanceGit {
		return "GIT"
	}
	return "NOW"
}

// Result is the stamp of one file. Err is the reason for a ProvenanceNow
// fallback and is nil otherwise.
type Result struct {
	File       string
	Time       time.Time
	Provenance Provenance
	Err        error
}

func (r Result) Line() string {
	return fmt.Sprintf("[%s] Commit %s at: %s", r.Provenance, r.File, timefmt.Format(r.Time))
}

// Explainer receives every successful resolution together with the handle it
// was read from.
type Explainer interface {
	Render(h backend.Handle, res *git.Resolution) error
}

type Stamper struct {
	Locate   func(startDir string) (string, error)
	Open     func(root string) (backend.Handle, error)
	Resolver git.Resolver
	Now      func() time.Time

	// Jobs bounds concurrent resolutions. Values below 2 resolve in order
	// through a single handle.
	Jobs int

	Explain Explainer

	explainMu sync.Mutex
}

// Stamp resolves files relative to the repository enclosing workDir. It
// never fails: every problem becomes a ProvenanceNow result.
func (s *Stamper) Stamp(ctx context.Context, workDir string, files []string) []Result {
	results := make([]Result, len(files))
	root, err := s.Locate(workDir)
	if err != nil {
		slog.Debug("no repository, using current time", slog.String("dir", workDir), slog.Any("error", err))
		for i, f := range files {
			results[i] = s.fallback(f, err)
		}
		return results
	}
	if s.Jobs < 2 {
		s.stampSequential(ctx, root, files, results)
	} else {
		s.stampParallel(ctx, root, files, results)
	}
	return results
}

func (s *Stamper) stampSequential(ctx context.Context, root string, files []string, results []Result) {
	h, err := s.Open(root)
	if err != nil {
		slog.Warn("open repository", slog.String("root", root), slog.Any("error", err))
		for i, f := range files {
			results[i] = s.fallback(f, err)
		}
		return
	}
	defer closeHandle(h)
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			results[i] = s.fallback(f, err)
			continue
		}
		results[i] = s.resolve(h, f)
	}
}

func (s *Stamper) stampParallel(ctx context.Context, root string, files []string, results []Result) {
	var g errgroup.Group
	g.SetLimit(s.Jobs)
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			results[i] = s.fallback(f, err)
			continue
		}
		g.Go(func() error {
			h, err := s.Open(root)
			if err != nil {
				results[i] = s.fallback(f, err)
				return nil
			}
			defer closeHandle(h)
			results[i] = s.resolve(h, f)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Stamper) resolve(h backend.Handle, file string) Result {
	res, err := s.Resolver.Resolve(h, file)
	if err != nil {
		return s.fallback(file, err)
	}
	if s.Explain != nil {
		s.explainMu.Lock()
		if err := s.Explain.Render(h, res); err != nil {
			slog.Warn("explain", slog.String("file", file), slog.Any("error", err))
		}
		s.explainMu.Unlock()
	}
	return Result{File: file, Time: res.Time(), Provenance: ProvenanceGit}
}

func (s *Stamper) fallback(file string, err error) Result {
	if errors.Is(err, git.ErrNotFound) {
		slog.Debug("no history, using current time", slog.String("file", file), slog.Any("error", err))
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Result{File: file, Time: now(), Provenance: ProvenanceNow, Err: err}
}

func closeHandle(h backend.Handle) {
	if err := h.Close(); err != nil {
		slog.Debug("close repository", slog.Any("error", err))
	}
}

// Report writes one line per result.
func Report(w io.Writer, results []Result) error {
	for _, r := range results {
		if _, err := fmt.Fprintln(w, r.Line()); err != nil {
			return err
		}
	}
	return nil
}
