package parse

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// HostOf returns the lowercased host (without port) of an absolute URL.
// A URL that cannot be parsed, or has no scheme or host, is reported as utils.ErrURLParse.
func HostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", utils.ErrURLParse, rawURL, err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("%w: %q: missing scheme", utils.ErrURLParse, rawURL)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q: missing host", utils.ErrURLParse, rawURL)
	}
	return host, nil
}

// ResolveLink resolves href against base and returns the absolute link without its fragment.
// Only http and https links are returned; ok is false for anything else (mailto:, javascript:, unparseable hrefs)
func ResolveLink(base *url.URL, href string) (link string, ok bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	linkURL, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(linkURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	linkURL.Fragment = ""
	linkURL.RawFragment = ""
	return linkURL.String(), true
}

// SameHost reports whether two absolute URLs share a host (case-insensitive, ports ignored).
func SameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
