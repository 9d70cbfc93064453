package acapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/archiconnect/internal/fsm"
)

const (
	CommandIsAlive        = "IsAlive"
	CommandGetProductInfo = "GetProductInfo"
)

// ProductInfo is the result object of GetProductInfo. Numbers are kept as json.Number.
type ProductInfo map[string]any

// Prober runs the fixed readiness commands. It reduces every failure to a
// negative answer; callers needing failure detail use the runner directly.
type Prober struct {
	Runner  CommandRunner
	Timeout time.Duration
}

// CheckAlive reports the isAlive flag of a successful IsAlive call.
func (p Prober) CheckAlive(ctx context.Context, conn Connection) bool {
	outcome, err := p.Runner.Execute(ctx, conn, CommandIsAlive, p.Timeout)
	if err != nil || !outcome.HasResult() {
		return false
	}

	var result struct {
		IsAlive bool `json:"isAlive"`
	}
	if err := json.Unmarshal(outcome.Result, &result); err != nil {
		return false
	}
	return result.IsAlive
}

// HostInfo returns the GetProductInfo result object, or false on any failure.
func (p Prober) HostInfo(ctx context.Context, conn Connection) (ProductInfo, bool) {
	outcome, err := p.Runner.Execute(ctx, conn, CommandGetProductInfo, p.Timeout)
	if err != nil || !outcome.HasResult() {
		return nil, false
	}

	info, err := DecodeProductInfo(outcome.Result)
	if err != nil {
		return nil, false
	}
	return info, true
}

// DecodeProductInfo parses a GetProductInfo result object, keeping numbers
// as json.Number so build numbers print verbatim.
func DecodeProductInfo(raw json.RawMessage) (ProductInfo, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var info ProductInfo
	if err := dec.Decode(&info); err != nil {
		return nil, fmt.Errorf("decode product info: %w", err)
	}
	if info == nil {
		return nil, errors.New("decode product info: result is not an object")
	}
	return info, nil
}

// FormatVersion renders "Archicad <version> <buildNumber> <languageCode>".
func FormatVersion(info ProductInfo) (string, error) {
	parts := []string{"Archicad"}
	for _, field := range []string{"version", "buildNumber", "languageCode"} {
		v, ok := info[field]
		if !ok || v == nil {
			return "", &MalformedResultError{Field: field}
		}
		parts = append(parts, scalarText(v))
	}
	return strings.Join(parts, " "), nil
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

// ConnectReport is the terminal state of a connect sequence.
type ConnectReport struct {
	State      fsm.State
	Info       ProductInfo
	Version    string
	VersionErr error
}

// Connect checks liveness and, when alive, fetches the host version. It
// never retries a step.
func (p Prober) Connect(ctx context.Context, conn Connection) (ConnectReport, error) {
	report := ConnectReport{State: fsm.StateUnverified}

	event := fsm.EventDead
	if p.CheckAlive(ctx, conn) {
		event = fsm.EventAlive
	}
	state, err := fsm.Transition(report.State, event)
	if err != nil {
		return report, err
	}
	report.State = state
	if state == fsm.StateDead {
		return report, nil
	}

	info, ok := p.HostInfo(ctx, conn)
	event = fsm.EventNoInfo
	if ok {
		event = fsm.EventInfo
	}
	state, err = fsm.Transition(report.State, event)
	if err != nil {
		return report, err
	}
	report.State = state
	if ok {
		report.Info = info
		report.Version, report.VersionErr = FormatVersion(info)
	}
	return report, nil
}
