// Package console provides the interactive read-eval-print loop.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/quantdb/internal/render"
	"github.com/leapstack-labs/quantdb/pkg/frame"
)

// ErrQuit is the sentinel a Processor returns when the session should end.
// The console stops on any error matching it with errors.Is.
var ErrQuit = errors.New("quit")

const continuationPrompt = "... "

// Processor is the query processor as seen by the console.
type Processor interface {
	Query(ctx context.Context, command string) (*frame.Frame, error)
	SetLang(name string) error
	Prompt() string
	Tables(ctx context.Context) ([]string, error)
	Bindings() []string
}

// Config holds console configuration.
type Config struct {
	Processor   Processor
	Format      render.Format
	HistoryFile string
	// QuitErr is matched against query errors to end the loop.
	QuitErr error
	Stdin   io.ReadCloser
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// Console reads commands, runs them and prints their results.
type Console struct {
	proc        Processor
	format      render.Format
	historyFile string
	quitErr     error
	stdin       io.ReadCloser
	out         io.Writer
	errOut      io.Writer
	logger      *slog.Logger

	// block accumulates a ':'-terminated compound statement.
	block strings.Builder
}

// New creates a console.
func New(cfg Config) *Console {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	quitErr := cfg.QuitErr
	if quitErr == nil {
		quitErr = ErrQuit
	}
	out, errOut := cfg.Stdout, cfg.Stderr
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = out
	}
	return &Console{
		proc:        cfg.Processor,
		format:      cfg.Format,
		historyFile: cfg.HistoryFile,
		quitErr:     quitErr,
		stdin:       cfg.Stdin,
		out:         out,
		errOut:      errOut,
		logger:      logger,
	}
}

// Prompt returns the prompt for the next line.
func (c *Console) Prompt() string {
	if c.block.Len() > 0 {
		return continuationPrompt
	}
	return c.proc.Prompt()
}

// Run loops until EOF, a quit command or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.Prompt(),
		HistoryFile:     c.historyFile,
		AutoComplete:    c.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           c.stdin,
		Stdout:          c.out,
		Stderr:          c.errOut,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize console: %w", err)
	}
	defer func() { _ = rl.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			c.block.Reset()
			rl.SetPrompt(c.Prompt())
			continue
		}
		if err != nil {
			// EOF or closed
			return nil
		}
		if c.Feed(ctx, line) {
			return nil
		}
		rl.SetPrompt(c.Prompt())
	}
}

// Feed handles one input line and reports whether the session should end.
// Blank lines are ignored, except that one ends a pending block.
func (c *Console) Feed(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)

	if c.block.Len() > 0 {
		if trimmed != "" {
			c.block.WriteString("\n")
			c.block.WriteString(strings.TrimRight(line, " \t\r"))
			return false
		}
		cmd := c.block.String()
		c.block.Reset()
		return c.execute(ctx, cmd)
	}

	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, ":") {
		c.block.WriteString(strings.TrimRight(line, " \t\r"))
		return false
	}
	if strings.HasPrefix(trimmed, ".") {
		if quit, handled := c.dotCommand(ctx, trimmed); handled {
			return quit
		}
	}
	return c.execute(ctx, trimmed)
}

func (c *Console) execute(ctx context.Context, cmd string) bool {
	f, err := c.proc.Query(ctx, cmd)
	if err != nil {
		if errors.Is(err, c.quitErr) {
			return true
		}
		c.logger.Debug("command failed", "command", cmd, "error", err)
		_, _ = fmt.Fprintf(c.errOut, "Error: %v\n", err)
		return false
	}
	if err := render.Render(c.out, f, c.format); err != nil {
		_, _ = fmt.Fprintf(c.errOut, "Error: %v\n", err)
	}
	return false
}

// dotCommand runs console commands. Dot input it does not know, such as
// the demo language's .z.K, is left for the processor.
func (c *Console) dotCommand(ctx context.Context, line string) (quit bool, handled bool) {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true, true

	case ".help":
		printHelp(c.out)
		return false, true

	case ".lang":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(c.errOut, "Usage: .lang <py|dk|pl|q>")
			return false, true
		}
		if err := c.proc.SetLang(parts[1]); err != nil {
			_, _ = fmt.Fprintf(c.errOut, "Error: %v\n", err)
		}
		return false, true

	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(c.out, "%s\n", c.format)
			return false, true
		}
		format, err := render.ParseFormat(parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(c.errOut, "Error: %v\n", err)
			return false, true
		}
		c.format = format
		return false, true

	case ".tables":
		tables, err := c.proc.Tables(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(c.errOut, "Error: %v\n", err)
			return false, true
		}
		for _, t := range tables {
			_, _ = fmt.Fprintln(c.out, t)
		}
		return false, true

	case ".bindings":
		for _, name := range c.proc.Bindings() {
			_, _ = fmt.Fprintln(c.out, name)
		}
		return false, true
	}
	return false, false
}

func printHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .lang <name>      Switch language: py, dk, pl or q
  .format [name]    Show or set the output format
  .tables           List database tables
  .bindings         List script bindings
  .quit / .exit     Exit

Prefixes:
  py> or >>>        Script
  dk>               DuckDB SQL
  pl>               SQL over script frames
  q)                Demo language

Lines ending in ':' start a block; an empty line runs it.
`
	_, _ = fmt.Fprintln(w, help)
}

// completer offers dot-commands, prefixes and table names.
func (c *Console) completer(ctx context.Context) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".lang", readline.PcItem("py"), readline.PcItem("dk"), readline.PcItem("pl"), readline.PcItem("q")),
		readline.PcItem(".format"),
		readline.PcItem(".tables"),
		readline.PcItem(".bindings"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}
	tables, err := c.proc.Tables(ctx)
	if err != nil {
		return readline.NewPrefixCompleter(items...)
	}
	tableItems := make([]readline.PrefixCompleterInterface, len(tables))
	for i, t := range tables {
		tableItems[i] = readline.PcItem("SELECT * FROM " + t)
	}
	items = append(items, readline.PcItem("dk>", tableItems...), readline.PcItem("pl>"))
	return readline.NewPrefixCompleter(items...)
}
