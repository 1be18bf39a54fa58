package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix file names
var consecutiveUnderscores = regexp.MustCompile(`_+`)
const maxComponentLength = 100

// SanitizePathComponent cleans a string so it can be used as a single file or directory name.
func SanitizePathComponent(name string) string {
	sanitized := invalidPathChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxComponentLength {
		sanitized = strings.Trim(sanitized[:maxComponentLength], "_ ")
	}
	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}

// CrawlDirName builds the scratch directory name for one crawl of seedURL.
// The seed's host is used when it parses, otherwise the raw string.
func CrawlDirName(seedURL, crawlID string) string {
	label := seedURL
	if u, err := url.Parse(seedURL); err == nil && u.Hostname() != "" {
		label = u.Hostname()
	}
	return SanitizePathComponent(label) + "_" + SanitizePathComponent(crawlID)
}
