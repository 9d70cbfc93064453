package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/archiconnect/internal/acapi"
	"github.com/rbright/archiconnect/internal/cli"
	"github.com/rbright/archiconnect/internal/config"
	"github.com/rbright/archiconnect/internal/doctor"
	"github.com/rbright/archiconnect/internal/fsm"
	"github.com/rbright/archiconnect/internal/logging"
	"github.com/rbright/archiconnect/internal/output"
	"github.com/rbright/archiconnect/internal/scan"
	"github.com/rbright/archiconnect/internal/shell"
	"github.com/rbright/archiconnect/internal/version"
)

const binaryName = "archiconnect"

// Exit codes.
const (
	exitOK            = 0
	exitSetup         = 1
	exitUsage         = 2
	exitUnreachable   = 2
	exitCommandFailed = 3
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Stdin feeds the interactive shell. Nil selects os.Stdin.
	Stdin  *os.File
	Logger *slog.Logger
}

// session is the per-invocation view of flags layered over config.
type session struct {
	loaded   config.Loaded
	defaults acapi.Defaults
	timeout  time.Duration
	format   output.Format
	debug    bool
	executor *acapi.Executor
	logger   *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		r.usageError(err, defaultsFrom(config.Default()), config.Default().Commands)
		return exitUsage
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName, defaultsFrom(config.Default()), config.Default().Commands))
		return exitOK
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	level := new(slog.LevelVar)
	logRuntime, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return exitSetup
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return exitSetup
	}
	for _, w := range cfgLoaded.Warnings {
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
		if !cfgLoaded.Exists {
			continue
		}
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
	}

	s, err := r.newSession(parsed, cfgLoaded, logger)
	if err != nil {
		r.usageError(err, defaultsFrom(cfgLoaded.Config), cfgLoaded.Config.Commands)
		return exitUsage
	}
	if s.debug {
		level.Set(slog.LevelDebug)
	}

	target, err := parsed.Target(cfgLoaded.Config.Commands)
	if err != nil {
		r.usageError(err, s.defaults, cfgLoaded.Config.Commands)
		return exitUsage
	}

	logger.Info("command start",
		"command", parsed.Command,
		"address", target.Address,
		"port", target.Port,
		"api_command", target.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	if parsed.ShowBanner {
		fmt.Fprintln(r.Stdout, cli.BannerText())
		fmt.Fprintln(r.Stdout, cli.HelpText(binaryName, s.defaults, cfgLoaded.Config.Commands))
	}

	switch parsed.Command {
	case cli.CommandScan:
		return r.commandScan(ctx, s, target.Address)
	case cli.CommandShell:
		return r.commandShell(ctx, s, target)
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, s, target)
	case cli.CommandConnect:
		if target.Command != "" {
			return r.commandRun(ctx, s, target)
		}
		return r.commandConnect(ctx, s, target)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return exitUsage
	}
}

func (r Runner) newSession(parsed cli.Parsed, loaded config.Loaded, logger *slog.Logger) (session, error) {
	cfg := loaded.Config

	formatName := cfg.Output
	if parsed.Output != "" {
		formatName = parsed.Output
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return session{}, err
	}

	timeout := cfg.Timeout()
	if parsed.Timeout > 0 {
		timeout = parsed.Timeout
	}

	s := session{
		loaded:   loaded,
		defaults: defaultsFrom(cfg),
		timeout:  timeout,
		format:   format,
		debug:    parsed.Debug || cfg.Debug,
		logger:   logger,
	}

	opts := acapi.ExecutorOptions{Logger: logger}
	if s.debug {
		opts.Debug = r.Stderr
	}
	s.executor = acapi.NewExecutor(opts)
	return s, nil
}

func defaultsFrom(cfg config.Config) acapi.Defaults {
	return acapi.Defaults{
		Host:  cfg.Host,
		Port:  cfg.Port,
		Range: acapi.PortRange{Start: cfg.PortRange.Start, End: cfg.PortRange.End},
	}
}

func (r Runner) usageError(err error, d acapi.Defaults, known []string) {
	fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
	fmt.Fprint(r.Stderr, cli.HelpText(binaryName, d, known))
}

// connection resolves a target endpoint and reports its port advisory.
func (r Runner) connection(s session, target cli.Target) (acapi.Connection, string, bool) {
	conn, advisory, err := acapi.Build(target.Address, target.Port, s.defaults)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		s.logger.Error("invalid endpoint", "address", target.Address, "port", target.Port, "error", err.Error())
		return acapi.Connection{}, "", false
	}
	if advisory != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", advisory)
		s.logger.Warn("port advisory", "address", conn.Address(), "message", advisory)
	}
	return conn, advisory, true
}

func (r Runner) commandConnect(ctx context.Context, s session, target cli.Target) int {
	conn, _, ok := r.connection(s, target)
	if !ok {
		return exitUsage
	}
	if !r.connect(ctx, s, conn) {
		return exitUnreachable
	}
	return exitOK
}

// connect prints the connect sequence and reports whether the host is alive.
func (r Runner) connect(ctx context.Context, s session, conn acapi.Connection) bool {
	fmt.Fprintf(r.Stdout, "Connecting to %s …\n\n", conn.Address())

	prober := acapi.Prober{Runner: s.executor, Timeout: s.timeout}
	report, err := prober.Connect(ctx, conn)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		s.logger.Error("connect failed", "address", conn.Address(), "error", err.Error())
		return false
	}

	alive := report.State != fsm.StateDead
	fmt.Fprintf(r.Stdout, "Is alive: %t\n", alive)
	s.logger.Info("connect finished", "address", conn.Address(), "state", report.State, "version", report.Version)

	switch report.State {
	case fsm.StateDead:
		fmt.Fprintln(r.Stderr, "Connection failed.")
		return false
	case fsm.StateInfoUnavailable:
		fmt.Fprintln(r.Stderr, "warning: host product info unavailable")
	case fsm.StateVerified:
		if report.VersionErr != nil {
			fmt.Fprintf(r.Stderr, "warning: host version: %v\n", report.VersionErr)
			break
		}
		fmt.Fprintf(r.Stdout, "Host version: %s\n", report.Version)
	}
	return true
}

func (r Runner) commandRun(ctx context.Context, s session, target cli.Target) int {
	conn, _, ok := r.connection(s, target)
	if !ok {
		return exitUsage
	}

	outcome, err := s.executor.Execute(ctx, conn, target.Command, s.timeout)
	logOutcome(s.logger, conn, target.Command, outcome, err)
	if !output.RenderOutcome(r.Stdout, r.Stderr, outcome, err, s.format) {
		return exitCommandFailed
	}
	return exitOK
}

func logOutcome(logger *slog.Logger, conn acapi.Connection, name string, outcome acapi.Outcome, err error) {
	fields := []any{"command", name, "address", conn.Address()}

	var protoErr *acapi.ProtocolError
	var transportErr *acapi.TransportError
	switch {
	case errors.As(err, &protoErr):
		logger.Error("protocol error", append(fields, "error", err.Error())...)
	case errors.As(err, &transportErr):
		logger.Error("transport failure", append(fields, "reason", transportErr.Reason)...)
	case err != nil:
		logger.Error("command failed", append(fields, "error", err.Error())...)
	case outcome.Kind == acapi.OutcomeAPIFailure:
		logger.Warn("api failure", append(fields, "code", outcome.Error.Code, "message", outcome.Error.Message)...)
	case outcome.Kind == acapi.OutcomeUnknownFailure:
		logger.Warn("unknown failure", fields...)
	default:
		logger.Info("command succeeded", append(fields, "has_result", outcome.HasResult())...)
	}
}

func (r Runner) commandScan(ctx context.Context, s session, address string) int {
	cfg := s.loaded.Config
	host := address
	if host == "" {
		host = s.defaults.Host
	}

	scanner := scan.New(s.executor, scan.Options{
		RatePerSecond: cfg.Scan.RatePerSecond,
		Burst:         cfg.Scan.Burst,
		Timeout:       cfg.ScanTimeout(),
		Logger:        s.logger,
	})

	fmt.Fprintf(r.Stderr, "Scanning %s ports %s …\n", host, s.defaults.Range)
	found, err := scanner.Scan(ctx, host, s.defaults.Range)
	for _, inst := range found {
		if inst.VersionErr != nil {
			fmt.Fprintf(r.Stdout, "%d  (%v)\n", inst.Port, inst.VersionErr)
			continue
		}
		fmt.Fprintf(r.Stdout, "%d  %s\n", inst.Port, inst.Version)
	}
	s.logger.Info("scan finished", "host", host, "range", s.defaults.Range.String(), "found", len(found))

	if err != nil {
		fmt.Fprintf(r.Stderr, "error: scan interrupted: %v\n", err)
		return exitUnreachable
	}
	if len(found) == 0 {
		fmt.Fprintf(r.Stderr, "no Archicad instances found on %s in %s\n", host, s.defaults.Range)
		return exitUnreachable
	}
	return exitOK
}

func (r Runner) commandShell(ctx context.Context, s session, target cli.Target) int {
	conn, _, ok := r.connection(s, target)
	if !ok {
		return exitUsage
	}
	if !r.connect(ctx, s, conn) {
		return exitUnreachable
	}
	fmt.Fprintln(r.Stdout)

	sh := shell.New(shell.Options{
		Runner:   s.executor,
		Conn:     conn,
		Timeout:  s.timeout,
		Format:   s.format,
		Commands: s.loaded.Config.Commands,
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
		Logger:   s.logger,
	})

	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	reader := shell.OpenReader(stdin, sh.Words())
	defer func() { _ = reader.Close() }()

	failed, err := sh.Run(ctx, reader)
	s.logger.Info("shell finished", "address", conn.Address(), "failed", failed)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitSetup
	}
	return exitOK
}

func (r Runner) commandDoctor(ctx context.Context, s session, target cli.Target) int {
	conn, advisory, ok := r.connection(s, target)
	if !ok {
		return exitUsage
	}

	report := doctor.Run(ctx, s.loaded, doctor.Target{Conn: conn, Advisory: advisory, Timeout: s.timeout}, s.executor)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return exitOK
	}
	return exitUnreachable
}
