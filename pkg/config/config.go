package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Visited store backends
const (
	VisitedStoreMemory = "memory"
	VisitedStoreBadger = "badger"
)

// AppConfig holds the global application configuration
type AppConfig struct {
	// Pool and gate sizes
	Downloaders int `yaml:"downloaders"`           // Max simultaneous downloads overall
	Extractors  int `yaml:"extractors"`            // Max simultaneous link extractions
	PerHost     int `yaml:"per_host"`              // Max simultaneous downloads to one host
	Depth       int `yaml:"depth"`                 // Default crawl depth (1 = seed only)
	LinkFanout  int `yaml:"link_fanout,omitempty"` // Concurrent admissions per extracted page

	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout,omitempty"`       // Graceful pool drain wait on Close
	ForceShutdownTimeout time.Duration `yaml:"force_shutdown_timeout,omitempty"` // Wait after forced pool shutdown

	VisitedStore string `yaml:"visited_store,omitempty"` // "memory" or "badger"
	StateDir     string `yaml:"state_dir,omitempty"`     // Scratch dir for badger; empty = badger in-memory

	UserAgent         string        `yaml:"user_agent,omitempty"`
	MaxRetries        int           `yaml:"max_retries,omitempty"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay,omitempty"`
	MaxPageSizeBytes  int64         `yaml:"max_page_size_bytes,omitempty"` // 0 = unlimited
	RespectNofollow   bool          `yaml:"respect_nofollow,omitempty"`
	SameHostOnly      bool          `yaml:"same_host_only,omitempty"`

	Seeds              []string         `yaml:"seeds,omitempty"` // Crawled by `crawl` when no URL argument is given
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// Load reads and parses a YAML config file. The result is not yet validated.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Default returns a validated config with every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	_, _ = cfg.Validate() // Zero-value config never fails validation
	return cfg
}
