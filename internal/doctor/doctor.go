// Package doctor runs readiness diagnostics for config and the Archicad endpoint.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/archiconnect/internal/acapi"
	"github.com/rbright/archiconnect/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Target is the endpoint under diagnosis along with its port advisory.
type Target struct {
	Conn     acapi.Connection
	Advisory string
	Timeout  time.Duration
}

// Run executes config and endpoint checks. Endpoint checks issue real commands
// through runner, one after another.
func Run(ctx context.Context, cfg config.Loaded, target Target, runner acapi.CommandRunner) Report {
	checks := []Check{checkConfig(cfg), checkPortRange(target)}

	alive := checkAlive(ctx, runner, target)
	checks = append(checks, alive)
	if !alive.Pass {
		checks = append(checks, Check{Name: "api.product_info", Pass: false, Message: "skipped: endpoint is not alive"})
		return Report{Checks: checks}
	}

	checks = append(checks, checkProductInfo(ctx, runner, target))
	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Path)}
}

// checkPortRange never fails: an out-of-range port is only advisory.
func checkPortRange(target Target) Check {
	if target.Advisory != "" {
		return Check{Name: "port.range", Pass: true, Message: target.Advisory + " (advisory only)"}
	}
	return Check{Name: "port.range", Pass: true, Message: fmt.Sprintf("port %d is in the default range", target.Conn.Port())}
}

func checkAlive(ctx context.Context, runner acapi.CommandRunner, target Target) Check {
	const name = "api.alive"

	outcome, err := runner.Execute(ctx, target.Conn, acapi.CommandIsAlive, target.Timeout)
	if msg := failureMessage(outcome, err); msg != "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s at %s", msg, target.Conn.BaseURL())}
	}

	var result struct {
		IsAlive bool `json:"isAlive"`
	}
	if !outcome.HasResult() || json.Unmarshal(outcome.Result, &result) != nil {
		return Check{Name: name, Pass: false, Message: "IsAlive returned no isAlive flag"}
	}
	if !result.IsAlive {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s reports isAlive=false", target.Conn.BaseURL())}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("alive at %s", target.Conn.BaseURL())}
}

func checkProductInfo(ctx context.Context, runner acapi.CommandRunner, target Target) Check {
	const name = "api.product_info"

	outcome, err := runner.Execute(ctx, target.Conn, acapi.CommandGetProductInfo, target.Timeout)
	if msg := failureMessage(outcome, err); msg != "" {
		return Check{Name: name, Pass: false, Message: msg}
	}
	if !outcome.HasResult() {
		return Check{Name: name, Pass: false, Message: "GetProductInfo returned no result"}
	}

	info, err := acapi.DecodeProductInfo(outcome.Result)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}

	version, err := acapi.FormatVersion(info)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: version}
}

// failureMessage describes a failed exchange, or returns "" on success.
func failureMessage(outcome acapi.Outcome, err error) string {
	if err != nil {
		return err.Error()
	}
	switch outcome.Kind {
	case acapi.OutcomeSuccess:
		return ""
	case acapi.OutcomeAPIFailure:
		return outcome.Error.Error()
	default:
		return "command failed without an error description"
	}
}
