package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("host must not be empty")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port must be within 1-65535")
	}
	if cfg.PortRange.Start < 1 || cfg.PortRange.End > 65536 {
		return nil, fmt.Errorf("port_range must stay within 1-65535")
	}
	if cfg.PortRange.Start >= cfg.PortRange.End {
		return nil, fmt.Errorf("port_range.start must be < port_range.end")
	}
	if cfg.TimeoutMS <= 0 {
		return nil, fmt.Errorf("timeout_ms must be > 0")
	}
	switch cfg.Output {
	case OutputJSON, OutputYAML:
	default:
		return nil, fmt.Errorf("output must be one of: json, yaml")
	}
	if cfg.Scan.RatePerSecond <= 0 {
		return nil, fmt.Errorf("scan.rate_per_second must be > 0")
	}
	if cfg.Scan.Burst <= 0 {
		return nil, fmt.Errorf("scan.burst must be > 0")
	}
	if cfg.Scan.TimeoutMS <= 0 {
		return nil, fmt.Errorf("scan.timeout_ms must be > 0")
	}
	for i, name := range cfg.Commands {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("commands[%d] must not be empty", i)
		}
		if strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("commands[%d] %q must not contain whitespace", i, name)
		}
	}

	if cfg.Port < cfg.PortRange.Start || cfg.Port >= cfg.PortRange.End {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"port %d is outside port_range %d-%d", cfg.Port, cfg.PortRange.Start, cfg.PortRange.End,
		)})
	}

	return warnings, nil
}
