package config

import (
	"os"

	"go.uber.org/fx"
)

// Module provides *Config to the fx graph, loading it from the paths given
// in CASTFORGE_ENV_FILE and CASTFORGE_CONFIG_FILE (both optional).
var Module = fx.Options(
	fx.Provide(func() (*Config, error) {
		envFile := os.Getenv("CASTFORGE_ENV_FILE")
		configFile := os.Getenv("CASTFORGE_CONFIG_FILE")
		if configFile == "" {
			configFile = "castforge.yaml"
		}
		return Load(envFile, configFile)
	}),
)
