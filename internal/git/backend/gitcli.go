package backend

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

type gitCLI struct {
	path string
}

// OpenCLI returns a Handle backed by the git executable found in PATH.
func OpenCLI(root string) (Handle, error) {
	if err := ensureMinGitVersion(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	tmp := &gitCLI{path: abs}
	top, err := tmp.runGitCommand([]string{"rev-parse", "--show-toplevel"}, false, "git rev-parse")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	top = strings.TrimSpace(top)
	if top == "" {
		return nil, fmt.Errorf("%w: git rev-parse returned empty root", ErrCannotOpen)
	}
	return &gitCLI{path: filepath.FromSlash(top)}, nil
}

func (g *gitCLI) Root() string {
	if g == nil {
		return ""
	}
	return g.path
}

func (g *gitCLI) Close() error {
	return nil
}

func (g *gitCLI) runGitCommand(args []string, allowExit1 bool, context string) (string, error) {
	if g == nil || g.path == "" {
		return "", fmt.Errorf("repository root not set")
	}
	cmdArgs := append([]string{"--no-pager", "--literal-pathspecs", "-C", g.path}, args...)
	slog.Debug("run git", slog.String("context", context), slog.Any("args", args))
	cmd := exec.Command("git", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if allowExit1 && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
			// exit 1 without stderr means "nothing matched" for rev-parse -q
			return stdout.String(), nil
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s: %v: %s", context, err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s: %w", context, err)
	}
	return stdout.String(), nil
}
