// Package config resolves, parses, validates, and defaults archiconnect configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Host      string
	Port      int
	PortRange PortRangeConfig
	TimeoutMS int
	Output    string
	Debug     bool
	Scan      ScanConfig
	// Commands lists known command names that take no parameters. They feed
	// help text and shell completion; any other name may still be executed.
	Commands []string
}

// PortRangeConfig is the half-open documented port range [Start, End).
type PortRangeConfig struct {
	Start int
	End   int
}

// ScanConfig controls port discovery pacing.
type ScanConfig struct {
	RatePerSecond float64
	Burst         int
	TimeoutMS     int
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)
