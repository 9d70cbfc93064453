// Package acapi speaks the Archicad JSON command API: connection addressing,
// envelope encoding/decoding, command execution, and status probes.
package acapi

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 19723
)

// Defaults carries the endpoint defaults and the documented port range used
// for advisories. Callers normally populate it from configuration.
type Defaults struct {
	Host  string
	Port  int
	Range PortRange
}

// StandardDefaults returns the built-in Archicad endpoint defaults.
func StandardDefaults() Defaults {
	return Defaults{Host: DefaultHost, Port: DefaultPort, Range: DefaultPortRange}
}

// Connection is an addressable Archicad endpoint. It is immutable once built.
type Connection struct {
	host    string
	port    int
	baseURL string
}

// New builds a connection for a numeric port. An empty host selects DefaultHost.
func New(host string, port int) Connection {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	return Connection{
		host:    host,
		port:    port,
		baseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// Build resolves textual host/port arguments against d. The returned string is
// a non-empty advisory when the port falls outside d.Range; it never prevents
// construction.
func Build(host, port string, d Defaults) (Connection, string, error) {
	if strings.TrimSpace(host) == "" {
		host = d.Host
	}

	resolved := d.Port
	if strings.TrimSpace(port) != "" {
		p, err := ParsePort(port)
		if err != nil {
			return Connection{}, "", err
		}
		resolved = p
	}

	conn := New(host, resolved)
	return conn, d.Range.Advise(resolved), nil
}

// ParsePort normalizes textual port input to a TCP port number.
func ParsePort(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	port, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPort, raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %d is outside 1-65535", ErrInvalidPort, port)
	}
	return port, nil
}

func (c Connection) Host() string { return c.host }

func (c Connection) Port() int { return c.port }

// BaseURL is the request target, "http://{host}:{port}".
func (c Connection) BaseURL() string { return c.baseURL }

// Address is the host:port pair used in user-facing messages.
func (c Connection) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Headers returns a fresh copy of the transport headers sent with every command.
func (c Connection) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}
