package config

// SampleCommands are Archicad commands that run without parameters.
var SampleCommands = []string{
	"GetActivePenTables",
	"GetAllClassificationSystems",
	"GetAllElements",
	"GetAllPropertyNames",
	"GetClassificationSystemIds",
	"GetProductInfo",
	"GetPublisherSetNames",
	"IsAlive",
}

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	commands := make([]string, len(SampleCommands))
	copy(commands, SampleCommands)

	return Config{
		Host:      "127.0.0.1",
		Port:      19723,
		PortRange: PortRangeConfig{Start: 19723, End: 19744},
		TimeoutMS: 2000,
		Output:    OutputJSON,
		Scan: ScanConfig{
			RatePerSecond: 20,
			Burst:         1,
			TimeoutMS:     300,
		},
		Commands: commands,
	}
}
