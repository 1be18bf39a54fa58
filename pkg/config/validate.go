package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

const (
	DefaultSize                 = 8
	DefaultDepth                = 2
	DefaultLinkFanout           = 4
	DefaultShutdownTimeout      = 60 * time.Second
	DefaultForceShutdownTimeout = 60 * time.Second
	DefaultUserAgent            = "web-crawler/1.0"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Pool sizes
	if c.Downloaders <= 0 {
		warnings = append(warnings, fmt.Sprintf("downloaders should be > 0, defaulting to %d", DefaultSize))
		c.Downloaders = DefaultSize
	}
	if c.Extractors <= 0 {
		warnings = append(warnings, fmt.Sprintf("extractors should be > 0, defaulting to %d", DefaultSize))
		c.Extractors = DefaultSize
	}
	if c.PerHost <= 0 {
		warnings = append(warnings, fmt.Sprintf("per_host should be > 0, defaulting to %d", DefaultSize))
		c.PerHost = DefaultSize
	}
	if c.PerHost > c.Downloaders {
		warnings = append(warnings, fmt.Sprintf(
			"per_host (%d) exceeds downloaders (%d); the global cap still applies", c.PerHost, c.Downloaders))
	}

	// Depth
	if c.Depth <= 0 {
		warnings = append(warnings, fmt.Sprintf("depth should be >= 1, defaulting to %d", DefaultDepth))
		c.Depth = DefaultDepth
	}
	if c.LinkFanout <= 0 {
		c.LinkFanout = DefaultLinkFanout
	}

	// Shutdown timeouts
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ForceShutdownTimeout <= 0 {
		c.ForceShutdownTimeout = DefaultForceShutdownTimeout
	}

	// VisitedStore
	switch c.VisitedStore {
	case "":
		c.VisitedStore = VisitedStoreMemory
	case VisitedStoreMemory, VisitedStoreBadger:
	default:
		return warnings, fmt.Errorf("%w: visited_store must be '%s' or '%s', got '%s'",
			utils.ErrConfigValidation, VisitedStoreMemory, VisitedStoreBadger, c.VisitedStore)
	}
	if c.VisitedStore == VisitedStoreMemory && c.StateDir != "" {
		warnings = append(warnings, "state_dir is ignored when visited_store is 'memory'")
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageSizeBytes = 0
	}

	// Seeds: drop duplicates, flag (but keep) ones that will fail to parse
	if len(c.Seeds) > 0 {
		seen := make(map[string]bool, len(c.Seeds))
		seeds := c.Seeds[:0]
		for _, seed := range c.Seeds {
			if seen[seed] {
				warnings = append(warnings, fmt.Sprintf("duplicate seed '%s' removed", seed))
				continue
			}
			seen[seed] = true
			if u, perr := url.Parse(seed); perr != nil || u.Host == "" {
				warnings = append(warnings, fmt.Sprintf("seed '%s' is not an absolute URL and will be reported as malformed", seed))
			}
			seeds = append(seeds, seed)
		}
		c.Seeds = seeds
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.PerHost
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}
