package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/config"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "castforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", "")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultConcurrency, cfg.Generation.Concurrency)
	assert.Equal(t, config.DefaultMaxRetries, cfg.Generation.MaxRetries)
	assert.Equal(t, config.DefaultBaseRetryDelay, cfg.Generation.BaseRetryDelayMs)
	assert.Equal(t, config.DefaultCallSpacing, cfg.Generation.CallSpacingMs)
	assert.Equal(t, 100, cfg.Generation.MaxArtifacts)
	assert.Equal(t, "gemini-2.5-flash", cfg.Upstream.Model)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
generation:
  concurrency: 2
  max_retries: 7
upstream:
  model: gemini-2.5-pro
database:
  path: /tmp/jobs.db
`)

	cfg, err := config.Load("", path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Generation.Concurrency)
	assert.Equal(t, 7, cfg.Generation.MaxRetries)
	assert.Equal(t, "gemini-2.5-pro", cfg.Upstream.Model)
	assert.Equal(t, "/tmp/jobs.db", cfg.Database.Path)
	// Untouched sections keep their defaults.
	assert.Equal(t, config.DefaultCallSpacing, cfg.Generation.CallSpacingMs)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, "generation:\n  concurrency: 2\n")
	t.Setenv("CASTFORGE_GENERATION_CONCURRENCY", "9")
	t.Setenv("CASTFORGE_UPSTREAM_MODEL", "gemini-env")
	t.Setenv("CASTFORGE_SERVER_ADDR", ":9090")

	cfg, err := config.Load("", path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Generation.Concurrency)
	assert.Equal(t, "gemini-env", cfg.Upstream.Model)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestInvalidEnvValueFails(t *testing.T) {
	t.Setenv("CASTFORGE_GENERATION_CONCURRENCY", "not-a-number")

	_, err := config.Load("", "")
	require.Error(t, err)
}

func TestMissingConfigFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load("", filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConcurrency, cfg.Generation.Concurrency)
}

func TestValidateRejectsNonPositiveKnobs(t *testing.T) {
	cases := map[string]string{
		"zero concurrency":    "generation:\n  concurrency: 0\n",
		"negative spacing":    "generation:\n  call_spacing_ms: -1\n",
		"zero max artifacts":  "generation:\n  max_artifacts: 0\n",
		"negative maxRetries": "generation:\n  max_retries: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load("", writeConfigFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestBrokenYAMLFails(t *testing.T) {
	_, err := config.Load("", writeConfigFile(t, "generation: [not a mapping"))
	require.Error(t, err)
}
