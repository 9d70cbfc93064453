package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsPass(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateWarnsWhenPortOutsideRange(t *testing.T) {
	cfg := Default()
	cfg.Port = 8080

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "port 8080 is outside port_range 19723-19744")
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty host", mutate: func(c *Config) { c.Host = " " }, wantErr: "host"},
		{name: "zero port", mutate: func(c *Config) { c.Port = 0 }, wantErr: "port must be"},
		{name: "port too large", mutate: func(c *Config) { c.Port = 65536 }, wantErr: "port must be"},
		{name: "inverted range", mutate: func(c *Config) { c.PortRange = PortRangeConfig{Start: 19744, End: 19723} }, wantErr: "port_range.start"},
		{name: "empty range", mutate: func(c *Config) { c.PortRange = PortRangeConfig{Start: 19723, End: 19723} }, wantErr: "port_range.start"},
		{name: "range out of bounds", mutate: func(c *Config) { c.PortRange = PortRangeConfig{Start: 0, End: 10} }, wantErr: "port_range must stay"},
		{name: "zero timeout", mutate: func(c *Config) { c.TimeoutMS = 0 }, wantErr: "timeout_ms"},
		{name: "unknown output", mutate: func(c *Config) { c.Output = "xml" }, wantErr: "output"},
		{name: "zero scan rate", mutate: func(c *Config) { c.Scan.RatePerSecond = 0 }, wantErr: "scan.rate_per_second"},
		{name: "zero scan burst", mutate: func(c *Config) { c.Scan.Burst = 0 }, wantErr: "scan.burst"},
		{name: "zero scan timeout", mutate: func(c *Config) { c.Scan.TimeoutMS = 0 }, wantErr: "scan.timeout_ms"},
		{name: "empty command", mutate: func(c *Config) { c.Commands = []string{"IsAlive", ""} }, wantErr: "commands[1]"},
		{name: "command with space", mutate: func(c *Config) { c.Commands = []string{"Is Alive"} }, wantErr: "whitespace"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
