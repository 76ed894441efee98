// Package commands provides CLI command implementations.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/quantdb/internal/cli/config"
	"github.com/leapstack-labs/quantdb/internal/console"
	"github.com/leapstack-labs/quantdb/internal/engine"
	"github.com/leapstack-labs/quantdb/internal/render"
	"github.com/leapstack-labs/quantdb/internal/server/mysql"
	"github.com/leapstack-labs/quantdb/internal/server/web"
	"github.com/leapstack-labs/quantdb/internal/watch"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

const banner = `
  ___                  _   ____  ____
 / _ \ _   _  __ _ _ __ | |_|  _ \| __ )
| | | | | | |/ _' | '_ \| __| | | |  _ \
| |_| | |_| | (_| | | | | |_| |_| | |_) |
 \__\_\\__,_|\__,_|_| |_|\__|____/|____/
`

var bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

// Streams are the standard streams the session reads and writes.
type Streams struct {
	In  io.ReadCloser
	Out io.Writer
	Err io.Writer
}

// Start runs a QuantDB session: it opens the processor, preloads files and
// runs the startup command. With a command and no terminal on stdin it
// exits there; otherwise it serves the console alongside the MySQL and
// HTTP servers until the console ends or ctx is cancelled.
func Start(ctx context.Context, version string, cfg *config.Config, s Streams) error {
	logger := config.GetLogger(ctx)

	format, err := render.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	proc, err := engine.New(ctx, engine.Config{
		Database: cfg.Database,
		DuckDB:   cfg.DuckDB,
		Lang:     cfg.Language,
		Output:   s.Out,
		Logger:   logger,
		Quit:     cancel,
	})
	if err != nil {
		return fmt.Errorf("failed to start processor: %w", err)
	}
	defer func() { _ = proc.Close() }()

	batch := cfg.Command != "" && !isTerminal(s.In)
	if !cfg.Quiet && !batch {
		printBanner(s.Out, version, cfg)
	}

	if err := proc.LoadFiles(ctx, cfg.Files); err != nil {
		return err
	}

	if cfg.Command != "" {
		f, err := proc.Query(ctx, cfg.Command)
		switch {
		case errors.Is(err, engine.ErrQuit):
			return nil
		case err != nil && batch:
			return err
		case err != nil:
			_, _ = fmt.Fprintf(s.Err, "Error: %v\n", err)
		default:
			if err := render.Render(s.Out, f, format); err != nil {
				return err
			}
		}
	}
	if batch {
		return nil
	}

	notifier := watch.NewNotifier()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Port != 0 {
		sqlServer := mysql.NewServer(mysql.Config{
			Processor: proc,
			Port:      cfg.Port,
			User:      cfg.MySQL.User,
			Password:  cfg.MySQL.Password,
			Logger:    logger.With("component", "mysql"),
		})
		g.Go(func() error { return sqlServer.Serve(gctx) })
	}

	if cfg.WebPort != 0 {
		webServer := web.NewServer(web.Config{
			Processor: proc,
			Port:      cfg.WebPort,
			HTMLDir:   cfg.HTMLDir,
			Notifier:  notifier,
			Logger:    logger.With("component", "web"),
		})
		g.Go(func() error { return webServer.Serve(gctx) })
	}

	if cfg.Watch && len(cfg.Files) > 0 {
		watcher, err := watch.New(watch.Config{
			Files:    cfg.Files,
			Loader:   proc,
			Notifier: notifier,
			Logger:   logger.With("component", "watch"),
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	repl := console.New(console.Config{
		Processor:   proc,
		Format:      format,
		HistoryFile: cfg.HistoryFile,
		QuitErr:     engine.ErrQuit,
		Stdin:       s.In,
		Stdout:      s.Out,
		Stderr:      s.Err,
		Logger:      logger,
	})
	g.Go(func() error {
		// Leaving the console ends the session.
		defer cancel()
		return repl.Run(gctx)
	})

	return g.Wait()
}

func printBanner(w io.Writer, version string, cfg *config.Config) {
	_, _ = fmt.Fprintln(w, bannerStyle.Render(banner))
	_, _ = fmt.Fprintf(w, "QuantDB %s\n", version)
	if cfg.WebPort != 0 {
		_, _ = fmt.Fprintf(w, "web: http://localhost:%d    ", cfg.WebPort)
	}
	if cfg.Port != 0 {
		_, _ = fmt.Fprintf(w, "MySQL port: %d", cfg.Port)
	}
	_, _ = fmt.Fprintln(w)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
