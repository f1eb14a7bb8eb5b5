package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/thiagokokada/gitstamp/internal/git/backend"
)

// FileName is the config file looked up in the working directory.
const FileName = ".gitstamp.toml"

var colorModes = []string{"auto", "light", "dark", "never"}

// Config is the on-disk configuration. Command line flags take precedence
// over every field.
type Config struct {
	// Files are repository-relative paths to stamp, in output order.
	Files []string `toml:"files"`

	// Backend selects the repository reader: "native" or "gitcli".
	Backend string `toml:"backend"`

	// Jobs bounds how many files are resolved concurrently.
	Jobs int `toml:"jobs"`

	Watch   bool   `toml:"watch"`
	Explain bool   `toml:"explain"`
	Color   string `toml:"color"`
}

// DefaultFiles are the paths stamped for the documentation book when neither
// arguments nor a config file name any.
func DefaultFiles() []string {
	return []string{
		"crates/basis/src/main.rs",
		"crates/basis/Cargo.toml",
		".github/workflows/ci.yml",
		"book.toml",
		"Cargo.toml",
		"Cargo.lock",
		"docs/README.md",
		"docs/SUMMARY.md",
		"README.md",
		"SUMMARY.md",
		"NOT_FOUND.md",
	}
}

func Default() *Config {
	return &Config{
		Files:   DefaultFiles(),
		Backend: backend.KindNative.String(),
		Jobs:    1,
		Color:   "auto",
	}
}

// Load reads path and overlays it on Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var file Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg := Default().merge(&file)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads FileName from dir. A missing file yields Default and
// found=false.
func LoadDir(dir string) (cfg *Config, found bool, err error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	cfg, err = Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// merge copies the fields set in other over c.
func (c *Config) merge(other *Config) *Config {
	if other.Files != nil {
		c.Files = other.Files
	}
	if other.Backend != "" {
		c.Backend = other.Backend
	}
	if other.Jobs != 0 {
		c.Jobs = other.Jobs
	}
	if other.Color != "" {
		c.Color = other.Color
	}
	c.Watch = c.Watch || other.Watch
	c.Explain = c.Explain || other.Explain
	return c
}

func (c *Config) Validate() error {
	if _, err := backend.ParseKind(c.Backend); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	c.Color = strings.ToLower(strings.TrimSpace(c.Color))
	if c.Color == "" {
		c.Color = "auto"
	}
	if !slices.Contains(colorModes, c.Color) {
		return fmt.Errorf("unknown color mode %q (want one of %s)", c.Color, strings.Join(colorModes, ", "))
	}
	files := c.Files[:0]
	for _, f := range c.Files {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	c.Files = files
	return nil
}
