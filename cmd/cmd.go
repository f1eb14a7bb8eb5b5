package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/thiagokokada/gitstamp/internal/buildinfo"
	"github.com/thiagokokada/gitstamp/internal/config"
	"github.com/thiagokokada/gitstamp/internal/explain"
	"github.com/thiagokokada/gitstamp/internal/git"
	"github.com/thiagokokada/gitstamp/internal/git/backend"
	"github.com/thiagokokada/gitstamp/internal/stamp"
	"github.com/thiagokokada/gitstamp/internal/watch"
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gitstamp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("C", "", "run as if started in `dir`")
	configPath := fs.String("config", "", "read configuration from `file` instead of "+config.FileName)
	backendName := fs.String("backend", backend.KindNative.String(), "repository reader: native or gitcli")
	jobs := fs.Int("jobs", 1, "number of files resolved concurrently")
	watchMode := fs.Bool("watch", false, "re-stamp whenever the repository changes")
	explainMode := fs.Bool("explain", false, "print the diff that produced each timestamp to stderr")
	color := fs.String("color", "auto", "explain colors: auto, light, dark, or never")
	verbose := fs.Bool("verbose", false, "enable verbose logging")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	workDir := *dir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		workDir = wd
	}

	cfg, err := loadConfig(*configPath, workDir)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendName
		case "jobs":
			cfg.Jobs = *jobs
		case "watch":
			cfg.Watch = *watchMode
		case "explain":
			cfg.Explain = *explainMode
		case "color":
			cfg.Color = *color
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	kind, err := backend.ParseKind(cfg.Backend)
	if err != nil {
		return err
	}
	files := cfg.Files
	if fs.NArg() > 0 {
		files = fs.Args()
	}

	locator := git.Locator{}
	s := &stamp.Stamper{
		Locate: locator.Locate,
		Open: func(root string) (backend.Handle, error) {
			return backend.Open(kind, root)
		},
		Now:  time.Now,
		Jobs: cfg.Jobs,
	}
	if cfg.Explain {
		s.Explain = explain.New(stderr, explain.ColorModeFromString(cfg.Color))
	}

	var outMu sync.Mutex
	stampAndReport := func() error {
		results := s.Stamp(ctx, workDir, files)
		outMu.Lock()
		defer outMu.Unlock()
		return stamp.Report(stdout, results)
	}
	if err := stampAndReport(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if !cfg.Watch {
		return nil
	}

	root, err := locator.Locate(workDir)
	if err != nil {
		slog.Warn("watch disabled", slog.Any("error", err))
		return nil
	}
	w := &watch.Watcher{
		Root: root,
		OnChange: func() {
			slog.Debug("repository changed, stamping again")
			if err := stampAndReport(); err != nil {
				slog.Error("write report", slog.Any("error", err))
			}
		},
	}
	return w.Run(ctx)
}

// loadConfig reads an explicit config file, which must exist, or the
// optional one in workDir. A broken implicit file is reported and ignored.
func loadConfig(explicit, workDir string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	cfg, found, err := config.LoadDir(workDir)
	if err != nil {
		slog.Warn("ignoring config file", slog.Any("error", err))
		return config.Default(), nil
	}
	if found {
		slog.Debug("config loaded", slog.String("dir", workDir))
	}
	return cfg, nil
}
