// Package scan discovers live Archicad instances across a port range.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rbright/archiconnect/internal/acapi"
	"github.com/rbright/archiconnect/internal/logging"
	"golang.org/x/time/rate"
)

// ErrInfoUnavailable marks a live instance whose GetProductInfo call failed.
var ErrInfoUnavailable = errors.New("product info unavailable")

// Instance is one responsive endpoint found during a scan.
type Instance struct {
	Port       int
	Connection acapi.Connection
	Version    string
	// VersionErr is set when product info was missing or malformed.
	VersionErr error
}

// Scanner probes ports one at a time, paced by a token bucket.
type Scanner struct {
	prober  acapi.Prober
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Options configures probe pacing and bounds.
type Options struct {
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	Logger        *slog.Logger
}

// New builds a scanner issuing commands through runner.
func New(runner acapi.CommandRunner, opts Options) *Scanner {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Scanner{
		prober:  acapi.Prober{Runner: runner, Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Scan checks every port of r on host and returns the live instances in port
// order. It stops early only when ctx ends.
func (s *Scanner) Scan(ctx context.Context, host string, r acapi.PortRange) ([]Instance, error) {
	found := make([]Instance, 0)
	for _, port := range r.Ports() {
		if err := s.limiter.Wait(ctx); err != nil {
			return found, err
		}

		conn := acapi.New(host, port)
		if !s.prober.CheckAlive(ctx, conn) {
			continue
		}

		inst := Instance{Port: port, Connection: conn}
		if info, ok := s.prober.HostInfo(ctx, conn); ok {
			inst.Version, inst.VersionErr = acapi.FormatVersion(info)
		} else {
			inst.VersionErr = ErrInfoUnavailable
		}
		s.logger.Info("scan found instance", "address", conn.Address(), "version", inst.Version)
		found = append(found, inst)
	}
	return found, nil
}
