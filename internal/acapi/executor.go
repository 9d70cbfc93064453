package acapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rbright/archiconnect/internal/logging"
)

// DefaultTimeout bounds a command exchange when the caller passes no timeout.
const DefaultTimeout = 2 * time.Second

// CommandRunner executes one named command against a connection.
type CommandRunner interface {
	Execute(ctx context.Context, conn Connection, name string, timeout time.Duration) (Outcome, error)
}

// ExecutorOptions configures diagnostics for an Executor.
type ExecutorOptions struct {
	Logger *slog.Logger
	// Debug, when set, receives the outgoing body and the indented response envelope.
	Debug io.Writer
}

// Executor performs single synchronous command exchanges over HTTP.
type Executor struct {
	logger *slog.Logger
	debug  io.Writer
}

// NewExecutor builds an executor from opts.
func NewExecutor(opts ExecutorOptions) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{logger: logger, debug: opts.Debug}
}

// Execute posts name to conn and decodes the reply. A *TransportError means no
// envelope was obtained; a *ProtocolError means the body was not JSON. Every
// other exchange returns a nil error and exactly one Outcome variant.
func (e *Executor) Execute(ctx context.Context, conn Connection, name string, timeout time.Duration) (Outcome, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	body := EncodeRequest(name)
	if e.debug != nil {
		fmt.Fprintf(e.debug, "%s\n", body)
	}
	e.logger.Debug("command request", "command", name, "url", conn.BaseURL(), "timeout_ms", timeout.Milliseconds())

	started := time.Now()
	raw, err := e.roundTrip(ctx, conn, body, timeout)
	latency := time.Since(started)
	if err != nil {
		e.logger.Debug("command transport failed", "command", name, "latency_ms", latency.Milliseconds(), "error", err.Error())
		return Outcome{}, err
	}

	outcome, err := DecodeResponse(raw)
	if err != nil {
		e.logger.Debug("command protocol error", "command", name, "latency_ms", latency.Milliseconds(), "bytes", len(raw), "error", err.Error())
		return Outcome{}, err
	}

	if e.debug != nil {
		e.writeEnvelope(raw)
	}
	e.logger.Debug("command response",
		"command", name,
		"outcome", outcome.Kind.String(),
		"has_result", outcome.HasResult(),
		"latency_ms", latency.Milliseconds(),
		"bytes", len(raw),
	)
	return outcome, nil
}

// roundTrip owns one transport for the lifetime of a single request.
func (e *Executor) roundTrip(ctx context.Context, conn Connection, body []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, conn.BaseURL()+"/", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Reason: err.Error(), Err: err}
	}
	for k, v := range conn.Headers() {
		req.Header.Set(k, v)
	}

	transport := &http.Transport{DisableKeepAlives: true, Proxy: nil}
	defer transport.CloseIdleConnections()
	client := http.Client{Transport: transport}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportFailure(reqCtx, err, timeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{Reason: fmt.Sprintf("HTTP %s", resp.Status)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportFailure(reqCtx, err, timeout)
	}
	return raw, nil
}

func (e *Executor) writeEnvelope(raw []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "\t"); err != nil {
		return
	}
	out.WriteByte('\n')
	_, _ = e.debug.Write(out.Bytes())
}

func transportFailure(ctx context.Context, err error, timeout time.Duration) *TransportError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Reason: fmt.Sprintf("timed out after %s", timeout), Err: err}
	}

	reason := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		reason = urlErr.Err.Error()
	}
	return &TransportError{Reason: reason, Err: err}
}
