package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NUL-delimited records with one field per line.
const commitFormat = "%H%n%P%n%an%n%ae%n%at%n%cn%n%ce%n%ct%x00"

func (g *gitCLI) HeadCommit() (*Commit, error) {
	out, err := g.runGitCommand([]string{"rev-parse", "-q", "--verify", "HEAD^{commit}"}, true, "git rev-parse")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoHead, err)
	}
	hash := strings.TrimSpace(out)
	if hash == "" {
		return nil, ErrNoHead
	}
	out, err = g.runGitCommand(
		[]string{"show", "-s", "--no-color", "--pretty=tformat:" + commitFormat, hash},
		false,
		"git show",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	rec := bytes.TrimRight([]byte(out), "\x00\n")
	commit, err := parseGitLogRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	return commit, nil
}

func (g *gitCLI) TreeEntry(commit *Commit, path string) (TreeEntry, error) {
	if commit == nil || commit.Hash == "" {
		return TreeEntry{}, fmt.Errorf("commit not specified")
	}
	path = cleanPath(path)
	if path == "" {
		return TreeEntry{}, ErrPathNotFound
	}
	out, err := g.runGitCommand(
		[]string{"ls-tree", "-z", "--full-tree", commit.Hash, "--", path},
		false,
		"git ls-tree",
	)
	if err != nil {
		return TreeEntry{}, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	entry, ok, err := parseLsTree(out, path)
	if err != nil {
		return TreeEntry{}, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	if !ok {
		return TreeEntry{}, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return entry, nil
}

func (g *gitCLI) AncestorsByTime(start *Commit) (CommitIter, error) {
	if start == nil {
		return nil, fmt.Errorf("starting commit not specified")
	}
	stream, err := startGitLogStream(g.path, start.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	return stream, nil
}

func (g *gitCLI) ReadBlob(entry TreeEntry) ([]byte, error) {
	if entry.Kind != EntryFile {
		return nil, fmt.Errorf("%s is a %s, not a file", entry.Path, entry.Kind)
	}
	out, err := g.runGitCommand([]string{"cat-file", "blob", entry.Hash}, false, "git cat-file")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	return []byte(out), nil
}

// parseLsTree picks the entry named exactly path out of `git ls-tree -z`
// output ("<mode> SP <type> SP <hash> TAB <path> NUL" per record).
func parseLsTree(out string, path string) (TreeEntry, bool, error) {
	for rec := range strings.SplitSeq(out, "\x00") {
		if rec == "" {
			continue
		}
		meta, name, found := strings.Cut(rec, "\t")
		if !found {
			return TreeEntry{}, false, fmt.Errorf("unexpected ls-tree record: %q", rec)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return TreeEntry{}, false, fmt.Errorf("unexpected ls-tree record: %q", rec)
		}
		if name != path {
			continue
		}
		kind := EntryFile
		switch fields[1] {
		case "tree":
			kind = EntryTree
		case "commit":
			kind = EntrySubmodule
		}
		return TreeEntry{Path: path, Hash: fields[2], Kind: kind}, true, nil
	}
	return TreeEntry{}, false, nil
}

type gitLogStream struct {
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	r      *bufio.Reader
	done   bool

	waitOnce sync.Once
	waitErr  error
}

func startGitLogStream(repoPath string, fromHash string) (*gitLogStream, error) {
	if repoPath == "" {
		return nil, fmt.Errorf("repository root not set")
	}
	fromHash = strings.TrimSpace(fromHash)
	if fromHash == "" {
		return nil, fmt.Errorf("starting commit not specified")
	}
	ctx, cancel := context.WithCancel(context.Background())
	// Default rev-list order: newest committer date first.
	cmd := exec.CommandContext(
		ctx,
		"git",
		"--no-pager",
		"-C",
		repoPath,
		"log",
		"--no-color",
		"--no-decorate",
		"--no-patch",
		"--pretty=tformat:"+commitFormat,
		fromHash,
	)
	var stream gitLogStream
	stream.cancel = cancel
	stream.cmd = cmd
	cmd.Stderr = &stream.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("git log stdout: %w", err)
	}
	stream.stdout = stdout
	stream.r = bufio.NewReader(stdout)
	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdout.Close()
		return nil, fmt.Errorf("git log start: %w", err)
	}
	return &stream, nil
}

func (s *gitLogStream) Next() (*Commit, error) {
	if s.done {
		return nil, io.EOF
	}
	rec, err := s.r.ReadBytes(0)
	if err != nil {
		if err == io.EOF {
			s.done = true
			if waitErr := s.wait(); waitErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrObjectRead, waitErr)
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	rec = rec[:len(rec)-1]
	// tformat terminates every record with a newline, so records after the
	// first start with one.
	rec = bytes.TrimLeft(rec, "\r\n")
	if len(rec) == 0 {
		return nil, fmt.Errorf("%w: unexpected empty git log record", ErrObjectRead)
	}
	commit, err := parseGitLogRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrObjectRead, err)
	}
	return commit, nil
}

func (s *gitLogStream) Close() error {
	s.done = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.stdout != nil {
		_ = s.stdout.Close()
	}
	// Killing git on an early stop is expected; only report wait errors for
	// streams that ran to completion through Next.
	_ = s.wait()
	return nil
}

func (s *gitLogStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	if s.waitErr == nil {
		return nil
	}
	if s.stderr.Len() > 0 {
		return fmt.Errorf("git log: %v: %s", s.waitErr, strings.TrimSpace(s.stderr.String()))
	}
	return fmt.Errorf("git log: %w", s.waitErr)
}

func parseGitLogRecord(rec []byte) (*Commit, error) {
	parts := strings.Split(strings.TrimRight(string(rec), "\n"), "\n")
	if len(parts) < 8 {
		return nil, fmt.Errorf("unexpected git log record: got %d lines", len(parts))
	}
	hash := strings.TrimSpace(parts[0])
	if hash == "" {
		return nil, fmt.Errorf("missing commit hash")
	}
	authorWhen, err := parseUnixSeconds(parts[4])
	if err != nil {
		return nil, fmt.Errorf("author time of %s: %w", hash, err)
	}
	committerWhen, err := parseUnixSeconds(parts[7])
	if err != nil {
		return nil, fmt.Errorf("committer time of %s: %w", hash, err)
	}
	return &Commit{
		Hash:         hash,
		ParentHashes: strings.Fields(parts[1]),
		Author:       Signature{Name: parts[2], Email: parts[3], When: authorWhen},
		Committer:    Signature{Name: parts[5], Email: parts[6], When: committerWhen},
	}, nil
}

func parseUnixSeconds(raw string) (time.Time, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}
