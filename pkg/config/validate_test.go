package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)

	// Check defaults applied
	assert.Equal(t, 8, cfg.Downloaders)
	assert.Equal(t, 8, cfg.Extractors)
	assert.Equal(t, 8, cfg.PerHost)
	assert.Equal(t, 2, cfg.Depth)
	assert.Equal(t, 4, cfg.LinkFanout)
	assert.Equal(t, 60*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.ForceShutdownTimeout)
	assert.Equal(t, VisitedStoreMemory, cfg.VisitedStore)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)

	// Check HTTP client defaults
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 8, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.HTTPClientSettings.IdleConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.TLSHandshakeTimeout)
	assert.Equal(t, 1*time.Second, cfg.HTTPClientSettings.ExpectContinueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.DialerKeepAlive)
	assert.Equal(t, 10, cfg.HTTPClientSettings.MaxRedirects)

	// Check warnings generated
	assert.True(t, containsWarning(warnings, "downloaders should be > 0"))
	assert.True(t, containsWarning(warnings, "extractors should be > 0"))
	assert.True(t, containsWarning(warnings, "per_host should be > 0"))
	assert.True(t, containsWarning(warnings, "depth should be >= 1"))
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		Downloaders:       16,
		Extractors:        4,
		PerHost:           2,
		Depth:             3,
		LinkFanout:        8,
		VisitedStore:      VisitedStoreBadger,
		StateDir:          "/state",
		MaxRetries:        5,
		InitialRetryDelay: 2 * time.Second,
		MaxRetryDelay:     time.Minute,
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 16, cfg.Downloaders)
	assert.Equal(t, 4, cfg.Extractors)
	assert.Equal(t, 2, cfg.PerHost)
	assert.Equal(t, 3, cfg.Depth)
	assert.Equal(t, 8, cfg.LinkFanout)
	assert.Equal(t, VisitedStoreBadger, cfg.VisitedStore)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*AppConfig)
		wantWarning string
		check       func(*testing.T, *AppConfig)
	}{
		{
			name: "negative max_retries",
			setup: func(c *AppConfig) {
				c.MaxRetries = -1
				c.InitialRetryDelay = 1 * time.Second // Prevent default of 3 retries
			},
			wantWarning: "max_retries cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 0, c.MaxRetries)
			},
		},
		{
			name:        "negative max_page_size_bytes",
			setup:       func(c *AppConfig) { c.MaxPageSizeBytes = -1 },
			wantWarning: "max_page_size_bytes cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, int64(0), c.MaxPageSizeBytes)
			},
		},
		{
			name:        "negative per_host",
			setup:       func(c *AppConfig) { c.PerHost = -3 },
			wantWarning: "per_host should be > 0",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, DefaultSize, c.PerHost)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{}
			tt.setup(&cfg)

			warnings, err := cfg.Validate()

			require.NoError(t, err)
			assert.True(t, containsWarning(warnings, tt.wantWarning),
				"expected warning containing %q, got %v", tt.wantWarning, warnings)
			tt.check(t, &cfg)
		})
	}
}

func TestAppConfig_Validate_RetryDelayInversion(t *testing.T) {
	cfg := AppConfig{
		MaxRetries:        3,
		InitialRetryDelay: 60 * time.Second, // Greater than max
		MaxRetryDelay:     10 * time.Second,
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.True(t, containsWarning(warnings, "initial_retry_delay"))
	assert.Equal(t, 10*time.Second, cfg.InitialRetryDelay) // Should be clamped
}

func TestAppConfig_Validate_UnknownVisitedStore(t *testing.T) {
	cfg := AppConfig{VisitedStore: "redis"}

	_, err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestAppConfig_Validate_StateDirIgnoredForMemory(t *testing.T) {
	cfg := AppConfig{VisitedStore: VisitedStoreMemory, StateDir: "/tmp/x"}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.True(t, containsWarning(warnings, "state_dir is ignored"))
}

func TestAppConfig_Validate_PerHostAboveDownloaders(t *testing.T) {
	cfg := AppConfig{Downloaders: 2, PerHost: 4}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.True(t, containsWarning(warnings, "exceeds downloaders"))
	assert.Equal(t, 4, cfg.PerHost)
}

func TestAppConfig_Validate_Seeds(t *testing.T) {
	cfg := AppConfig{Seeds: []string{
		"https://a.example/",
		"https://b.example/",
		"https://a.example/",
		"not-a-url",
	}}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/", "https://b.example/", "not-a-url"}, cfg.Seeds)
	assert.True(t, containsWarning(warnings, "duplicate seed"))
	assert.True(t, containsWarning(warnings, "will be reported as malformed"))
}

// containsWarning checks if any warning contains the substring.
func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
