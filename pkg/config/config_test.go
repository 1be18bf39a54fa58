package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
downloaders: 12
extractors: 3
per_host: 2
depth: 4
visited_store: badger
shutdown_timeout: 5s
respect_nofollow: true
seeds:
  - https://example.com/
http_client_settings:
  timeout: 20s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Downloaders)
	assert.Equal(t, 3, cfg.Extractors)
	assert.Equal(t, 2, cfg.PerHost)
	assert.Equal(t, 4, cfg.Depth)
	assert.Equal(t, VisitedStoreBadger, cfg.VisitedStore)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.RespectNofollow)
	assert.Equal(t, []string{"https://example.com/"}, cfg.Seeds)
	assert.Equal(t, 20*time.Second, cfg.HTTPClientSettings.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")

	path := writeFile(t, t.TempDir(), "bad.yaml", "downloaders: [not, an, int]\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultSize, cfg.Downloaders)
	assert.Equal(t, DefaultDepth, cfg.Depth)
	assert.Equal(t, VisitedStoreMemory, cfg.VisitedStore)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDownloaders:  "3",
		EnvPerHost:      "1",
		EnvUserAgent:    "test-agent",
		EnvVisitedStore: "badger",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := AppConfig{Downloaders: 10, Extractors: 5}
	applied, err := cfg.applyEnv(lookup)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{EnvDownloaders, EnvPerHost, EnvUserAgent, EnvVisitedStore}, applied)
	assert.Equal(t, 3, cfg.Downloaders)
	assert.Equal(t, 5, cfg.Extractors) // Untouched
	assert.Equal(t, 1, cfg.PerHost)
	assert.Equal(t, "test-agent", cfg.UserAgent)
	assert.Equal(t, VisitedStoreBadger, cfg.VisitedStore)
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == EnvDepth {
			return "deep", true
		}
		return "", false
	}

	cfg := AppConfig{}
	_, err := cfg.applyEnv(lookup)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
	assert.Contains(t, err.Error(), EnvDepth)
}

func TestApplyEnvOverrides_ProcessEnv(t *testing.T) {
	t.Setenv(EnvExtractors, "6")

	cfg := AppConfig{}
	applied, err := cfg.ApplyEnvOverrides()

	require.NoError(t, err)
	assert.Contains(t, applied, EnvExtractors)
	assert.Equal(t, 6, cfg.Extractors)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")), "missing file is not an error")

	const key = "CRAWLER_TEST_DOTENV_VALUE"
	t.Setenv(key, "") // Registers cleanup for the variable
	require.NoError(t, os.Unsetenv(key))

	path := writeFile(t, dir, "test.env", key+"=from-file\n")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv(key))
}
