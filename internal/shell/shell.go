// Package shell runs Archicad API commands interactively, one per line.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/archiconnect/internal/acapi"
	"github.com/rbright/archiconnect/internal/logging"
	"github.com/rbright/archiconnect/internal/output"
)

var builtins = []string{"help", "commands", "exit", "quit"}

// Options wires a shell to its endpoint and terminal.
type Options struct {
	Runner   acapi.CommandRunner
	Conn     acapi.Connection
	Timeout  time.Duration
	Format   output.Format
	Commands []string
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
}

// Shell is a read-eval loop over a single connection. Commands run strictly
// one after another.
type Shell struct {
	opts   Options
	prompt string
}

func New(opts Options) *Shell {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	return &Shell{opts: opts, prompt: opts.Conn.Address() + "> "}
}

// Words returns every name the shell completes: built-ins then known commands.
func (s *Shell) Words() []string {
	words := make([]string, 0, len(builtins)+len(s.opts.Commands))
	words = append(words, builtins...)
	return append(words, s.opts.Commands...)
}

// Run reads lines until exit, end of input, or ctx ends. It reports the
// number of commands that failed.
func (s *Shell) Run(ctx context.Context, in LineReader) (int, error) {
	failed := 0
	for {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		line, err := in.Prompt(s.prompt)
		if errors.Is(err, io.EOF) {
			return failed, nil
		}
		if err != nil {
			return failed, fmt.Errorf("read command: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			return failed, nil
		case "help", "?":
			s.printHelp()
			continue
		case "commands":
			for _, name := range s.opts.Commands {
				fmt.Fprintln(s.opts.Stdout, name)
			}
			continue
		}

		if len(fields) > 1 {
			fmt.Fprintf(s.opts.Stderr, "error: %s takes no parameters\n", fields[0])
			failed++
			continue
		}

		if !s.execute(ctx, fields[0]) {
			failed++
		}
	}
}

func (s *Shell) execute(ctx context.Context, name string) bool {
	outcome, err := s.opts.Runner.Execute(ctx, s.opts.Conn, name, s.opts.Timeout)
	ok := output.RenderOutcome(s.opts.Stdout, s.opts.Stderr, outcome, err, s.opts.Format)

	attrs := []any{"command", name, "address", s.opts.Conn.Address(), "ok", ok}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	} else {
		attrs = append(attrs, "outcome", outcome.Kind.String())
	}
	s.opts.Logger.Info("shell command", attrs...)
	return ok
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.opts.Stdout, `Enter one Archicad API command per line, without the "API." prefix.

Built-ins:
  help       Show this help
  commands   List known commands that take no parameters
  exit       Leave the shell (also: quit, Ctrl-D)
`)
}
