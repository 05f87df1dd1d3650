package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

const moduleName = "config"

// envPrefix is prepended to every environment variable override, e.g.
// CASTFORGE_GENERATION_CONCURRENCY.
const envPrefix = "CASTFORGE_"

// Load builds the application configuration in three layers:
// defaults from NewConfig, then the optional YAML file, then environment
// variable overrides keyed by the yaml tags.
func Load(envFilePath, configFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if configFilePath != "" {
		raw, err := os.ReadFile(configFilePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, exception.New(moduleName, "failed to read config file "+configFilePath, err, false)
			}
			logger.Debugf("Config file %s not found, using defaults.", configFilePath)
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, exception.New(moduleName, "failed to unmarshal config file "+configFilePath, err, false)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), envPrefix); err != nil {
		return nil, exception.New(moduleName, "failed to load config from environment variables", err, false)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Logging.Level)
	return cfg, nil
}

// Validate rejects non-positive values for the knobs that must be positive
// integers per the configuration contract.
func (c *Config) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"generation.concurrency", c.Generation.Concurrency},
		{"generation.base_retry_delay_ms", c.Generation.BaseRetryDelayMs},
		{"generation.call_spacing_ms", c.Generation.CallSpacingMs},
		{"generation.pause_poll_ms", c.Generation.PausePollMs},
		{"generation.single_max_tokens", c.Generation.SingleMaxTokens},
		{"generation.series_max_tokens", c.Generation.SeriesMaxTokens},
		{"generation.max_artifacts", c.Generation.MaxArtifacts},
	}
	for _, chk := range checks {
		if chk.value <= 0 {
			return exception.Newf(moduleName, "%s must be a positive integer, got %d", chk.name, chk.value)
		}
	}
	if c.Generation.MaxRetries < 0 {
		return exception.Newf(moduleName, "generation.max_retries must not be negative, got %d", c.Generation.MaxRetries)
	}
	return nil
}

// loadStructFromEnv recursively overrides struct fields from environment
// variables named after their yaml tags: the field GenerationConfig.
// Concurrency with tag "concurrency" under the "generation" section maps
// to CASTFORGE_GENERATION_CONCURRENCY.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return exception.Newf(moduleName, "failed to set field '%s' from env var '%s': %v", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField converts and assigns a string value according to the field kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
