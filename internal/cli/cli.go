// Package cli parses archiconnect arguments and renders help text.
package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rbright/archiconnect/internal/acapi"
	"github.com/rbright/archiconnect/internal/version"
)

type Command string

const (
	// CommandConnect runs the connect sequence, or a single API command when
	// the target names one.
	CommandConnect Command = "connect"
	CommandScan    Command = "scan"
	CommandShell   Command = "shell"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var subcommands = map[Command]int{
	CommandScan:    1,
	CommandShell:   2,
	CommandDoctor:  2,
	CommandVersion: 0,
	CommandHelp:    0,
}

// Parsed is the flag-level view of argv. Positional operands stay raw in Args
// until Target resolves them against the known command names.
type Parsed struct {
	Command    Command
	Args       []string
	PortFlag   string
	ConfigPath string
	Debug      bool
	Timeout    time.Duration
	Output     string
	ShowHelp   bool
	// ShowBanner is set for a bare invocation with no arguments at all.
	ShowBanner bool
}

// Target is the endpoint and optional API command an invocation addresses.
// Empty fields select configured defaults.
type Target struct {
	Address string
	Port    string
	Command string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandConnect, ShowBanner: len(args) == 0}
	positional := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config", "--timeout", "--output", "--port":
			i++
			if i >= len(args) {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			if err := parsed.setValue(arg, args[i]); err != nil {
				return Parsed{}, err
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			positional = append(positional, arg)
		}
	}

	if parsed.Command == CommandHelp || parsed.Command == CommandVersion {
		return parsed, nil
	}

	if len(positional) > 0 {
		if _, ok := subcommands[Command(positional[0])]; ok {
			parsed.Command = Command(positional[0])
			parsed.ShowHelp = parsed.Command == CommandHelp
			positional = positional[1:]
		}
	}

	if limit, ok := subcommands[parsed.Command]; ok && len(positional) > limit {
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}
	if parsed.PortFlag != "" && parsed.Command == CommandScan {
		return Parsed{}, errors.New("--port cannot be combined with scan")
	}

	parsed.Args = positional
	return parsed, nil
}

func (p *Parsed) setValue(flag, value string) error {
	switch flag {
	case "--config":
		p.ConfigPath = value
	case "--output":
		p.Output = strings.ToLower(strings.TrimSpace(value))
	case "--port":
		p.PortFlag = value
	case "--timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("--timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("--timeout must be positive, got %s", value)
		}
		p.Timeout = d
	}
	return nil
}

// Target resolves positional operands. For the default command a first
// operand found in known is taken as the API command against the default
// host, and --port likewise implies the default host.
func (p Parsed) Target(known []string) (Target, error) {
	args := p.Args
	var t Target

	switch p.Command {
	case CommandScan:
		if len(args) > 0 {
			t.Address = args[0]
		}
		return t, nil
	case CommandShell, CommandDoctor:
		if len(args) > 0 {
			t.Address = args[0]
		}
		if len(args) > 1 {
			t.Port = args[1]
		}
		return t.withPortFlag(p.PortFlag, len(args) > 1)
	case CommandConnect:
	default:
		return t, nil
	}

	switch {
	case p.PortFlag != "":
		if len(args) > 1 {
			return Target{}, fmt.Errorf("unexpected arguments after %q", args[0])
		}
		if len(args) == 1 {
			t.Command = args[0]
		}
		return t.withPortFlag(p.PortFlag, false)
	case len(args) > 0 && slices.Contains(known, args[0]):
		t.Command = args[0]
		if len(args) > 2 {
			return Target{}, fmt.Errorf("unexpected arguments after command %q", args[0])
		}
		if len(args) == 2 {
			t.Port = args[1]
		}
		return t, nil
	}

	if len(args) > 3 {
		return Target{}, fmt.Errorf("unexpected arguments after command %q", args[2])
	}
	for i, field := range []*string{&t.Address, &t.Port, &t.Command} {
		if i < len(args) {
			*field = args[i]
		}
	}
	return t, nil
}

func (t Target) withPortFlag(port string, positionalPort bool) (Target, error) {
	if port == "" {
		return t, nil
	}
	if positionalPort {
		return Target{}, errors.New("port given both positionally and with --port")
	}
	t.Port = port
	return t, nil
}

// BannerText is printed ahead of usage on a bare invocation.
func BannerText() string {
	return fmt.Sprintf(`Archicad JSON API Connection Test [archiconnect]
Version: %s

Description:
Connects to the Archicad JSON API and shows Archicad host info.
`, version.String())
}

// HelpText renders usage against the active defaults and known command names.
func HelpText(binaryName string, d acapi.Defaults, known []string) string {
	var commands strings.Builder
	for _, name := range known {
		fmt.Fprintf(&commands, "                    %s\n", name)
	}
	example := "GetProductInfo"
	if len(known) > 0 {
		example = known[0]
	}

	return fmt.Sprintf(`Usage:
  %[1]s [flags] [ADDRESS [PORT [COMMAND]]]
  %[1]s [flags] COMMAND [PORT]
  %[1]s [flags] --port PORT [COMMAND]
  %[1]s [flags] scan [ADDRESS]
  %[1]s [flags] shell [ADDRESS [PORT]]
  %[1]s [flags] doctor [ADDRESS [PORT]]

Operands:
  ADDRESS   Network name or IP address of the Archicad host (default: %[2]s)
  PORT      Port of the Archicad host (default: %[3]d, documented range: %[4]s)
  COMMAND   Archicad API command to execute. Commands without parameters:
%[5]s
Commands:
  scan      List live Archicad instances across the port range
  shell     Run commands interactively, one per line
  doctor    Run configuration and connectivity checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH        Config file path (default: $XDG_CONFIG_HOME/archiconnect/config.jsonc)
  --debug              Echo requests and raw responses to stderr
  --timeout DURATION   Per-command timeout, e.g. 2s or 500ms
  --output FORMAT      Result format: json or yaml
  -h, --help           Show help
  --version            Show version

Examples:
  %[1]s localhost %[3]d
  %[1]s %[2]s %[3]d %[6]s
`, binaryName, d.Host, d.Port, d.Range, commands.String(), example)
}
