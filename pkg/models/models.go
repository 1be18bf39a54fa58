package models

import "time"

// CrawlRequest is a URL proposed for scheduling together with its remaining depth.
// Depth 1 means fetch the URL but do not follow its links.
type CrawlRequest struct {
	URL   string
	Depth int
}

// PageDBEntry stores the outcome of one scheduled URL in the visited store
type PageDBEntry struct {
	Status      PageStatus `json:"status"`
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	Error       string     `json:"error,omitempty"`        // Error message (on failure)
	Depth       int        `json:"depth"`                  // Remaining depth the URL was scheduled with
	LastAttempt time.Time  `json:"last_attempt,omitempty"` // When the status was last written
}

// CrawlReport is the YAML document written at the end of a crawl.
type CrawlReport struct {
	CrawlID        string        `yaml:"crawl_id"`
	SeedURL        string        `yaml:"seed_url"`
	Depth          int           `yaml:"depth"`
	CrawlStartTime time.Time     `yaml:"crawl_start_time"`
	CrawlEndTime   time.Time     `yaml:"crawl_end_time"`
	Duration       string        `yaml:"duration"`
	Downloaded     []string      `yaml:"downloaded"`
	Errors         []ReportError `yaml:"errors,omitempty"`
}

// ReportError is one per-URL failure inside a CrawlReport.
type ReportError struct {
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Message  string `yaml:"message"`
}
