package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// Environment variables that override file settings
const (
	EnvDownloaders  = "CRAWLER_DOWNLOADERS"
	EnvExtractors   = "CRAWLER_EXTRACTORS"
	EnvPerHost      = "CRAWLER_PER_HOST"
	EnvDepth        = "CRAWLER_DEPTH"
	EnvUserAgent    = "CRAWLER_USER_AGENT"
	EnvVisitedStore = "CRAWLER_VISITED_STORE"
)

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides overwrites config fields from CRAWLER_* environment variables.
// Returns the names of the variables applied. Call before Validate.
func (c *AppConfig) ApplyEnvOverrides() (applied []string, err error) {
	return c.applyEnv(os.LookupEnv)
}

func (c *AppConfig) applyEnv(lookup func(string) (string, bool)) (applied []string, err error) {
	ints := []struct {
		key string
		dst *int
	}{
		{EnvDownloaders, &c.Downloaders},
		{EnvExtractors, &c.Extractors},
		{EnvPerHost, &c.PerHost},
		{EnvDepth, &c.Depth},
	}
	for _, v := range ints {
		raw, ok := lookup(v.key)
		if !ok || raw == "" {
			continue
		}
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return applied, fmt.Errorf("%w: invalid %s '%s': %w", utils.ErrConfigValidation, v.key, raw, convErr)
		}
		*v.dst = n
		applied = append(applied, v.key)
	}

	if raw, ok := lookup(EnvUserAgent); ok && raw != "" {
		c.UserAgent = raw
		applied = append(applied, EnvUserAgent)
	}
	if raw, ok := lookup(EnvVisitedStore); ok && raw != "" {
		c.VisitedStore = raw
		applied = append(applied, EnvVisitedStore)
	}
	return applied, nil
}
