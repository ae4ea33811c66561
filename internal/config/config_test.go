package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader(nil).Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://vulners.com", cfg.Vulners.BaseURL)
	assert.Equal(t, "/api/v3/burp/software/", cfg.Vulners.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Vulners.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Vulners.RetryBackoff)
	assert.Zero(t, cfg.Vulners.Retries)
	assert.Zero(t, cfg.Vulners.RateLimit)
	assert.Equal(t, 4, cfg.Lookup.Workers)
	assert.True(t, cfg.Lookup.Cache)
	assert.Equal(t, ".report.temp.md", cfg.Report.ScratchFile)
	assert.Equal(t, "text", cfg.Report.SummaryFormat)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Textfile)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NMAP_VULNERS_LOOKUP_WORKERS", "8")
	t.Setenv("NMAP_VULNERS_VULNERS_TIMEOUT", "5s")
	t.Setenv("VULNERS_API_KEY", "from-env")

	cfg, err := NewLoader(nil).Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Lookup.Workers)
	assert.Equal(t, 5*time.Second, cfg.Vulners.Timeout)
	assert.Equal(t, "from-env", cfg.Vulners.APIKey)
}

func TestLoadPrefixedAPIKeyWins(t *testing.T) {
	t.Setenv("NMAP_VULNERS_VULNERS_API_KEY", "prefixed")
	t.Setenv("VULNERS_API_KEY", "plain")

	cfg, err := NewLoader(nil).Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Vulners.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NMAP_VULNERS_LOOKUP_WORKERS=2\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("NMAP_VULNERS_LOOKUP_WORKERS") })

	loader := NewLoader(nil)
	loader.envFile = envFile
	cfg, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Lookup.Workers)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
vulners:
  base_url: http://127.0.0.1:8080
  retries: 2
  rate_limit: 1.5
lookup:
  workers: 1
  cache: false
report:
  scratch_file: /tmp/scratch.md
  summary_format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Vulners.BaseURL)
	assert.Equal(t, 2, cfg.Vulners.Retries)
	assert.Equal(t, 1.5, cfg.Vulners.RateLimit)
	assert.Equal(t, 1, cfg.Lookup.Workers)
	assert.False(t, cfg.Lookup.Cache)
	assert.Equal(t, "/tmp/scratch.md", cfg.Report.ScratchFile)
	assert.Equal(t, "json", cfg.Report.SummaryFormat)
	assert.Equal(t, 30*time.Second, cfg.Vulners.Timeout)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := NewLoader(nil).Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := map[string]func(c *Config){
		"base_url 无协议":  func(c *Config) { c.Vulners.BaseURL = "vulners.com" },
		"base_url ftp":   func(c *Config) { c.Vulners.BaseURL = "ftp://vulners.com" },
		"timeout 为 0":    func(c *Config) { c.Vulners.Timeout = 0 },
		"retries 为负":     func(c *Config) { c.Vulners.Retries = -1 },
		"rate_limit 为负":  func(c *Config) { c.Vulners.RateLimit = -1 },
		"workers 为 0":    func(c *Config) { c.Lookup.Workers = 0 },
		"summary 格式未知":   func(c *Config) { c.Report.SummaryFormat = "xml" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, valid().Validate())
}

func TestMarshalMasksAPIKey(t *testing.T) {
	cfg, err := NewLoader(nil).Load("")
	require.NoError(t, err)
	cfg.Vulners.APIKey = "top-secret"

	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "top-secret")
	assert.Equal(t, "top-secret", cfg.Vulners.APIKey)

	var decoded map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "******", decoded["vulners"]["api_key"])
	assert.Equal(t, "30s", decoded["vulners"]["timeout"])
	assert.Equal(t, 4, decoded["lookup"]["workers"])
}
