package git

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// MetadataDir is the repository metadata entry looked up in each directory.
const MetadataDir = ".git"

var ErrNotARepository = errors.New("not a git repository")

// Locator finds the working tree root enclosing a directory.
type Locator struct {
	// MetadataDir overrides the entry name searched for; empty means ".git".
	MetadataDir string
}

// Locate walks from startDir towards the filesystem root and returns the
// first directory that contains the metadata entry. The entry may be a
// directory or a gitfile (worktrees and submodules).
func (l Locator) Locate(startDir string) (string, error) {
	name := l.MetadataDir
	if name == "" {
		name = MetadataDir
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("locate repository: %w", err)
	}
	for {
		_, err := os.Stat(filepath.Join(dir, name))
		if err == nil {
			slog.Debug("repository located", slog.String("start", startDir), slog.String("root", dir))
			return dir, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("skipping unreadable directory", slog.String("dir", dir), slog.Any("error", err))
		}
		parent := filepath.Dir(dir)
		// filepath.Dir of the root is the root itself.
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNotARepository, startDir)
		}
		dir = parent
	}
}
