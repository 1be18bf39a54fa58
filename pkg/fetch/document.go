package fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/web-crawler/pkg/parse"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// LinkOptions filter the links an HTMLDocument reports
type LinkOptions struct {
	RespectNofollow bool // Skip <a rel="nofollow">
	SameHostOnly    bool // Only report links on the page's own host
}

// HTMLDocument is a downloaded page. Parsing is deferred to ExtractLinks so that a
// malformed page counts as an extraction failure, not a download failure.
type HTMLDocument struct {
	URL         *url.URL // Final URL after redirects; relative links resolve against it
	ContentType string
	Body        []byte
	opts        LinkOptions
}

// NewHTMLDocument wraps a downloaded body
func NewHTMLDocument(finalURL *url.URL, contentType string, body []byte, opts LinkOptions) *HTMLDocument {
	return &HTMLDocument{URL: finalURL, ContentType: contentType, Body: body, opts: opts}
}

// IsHTML reports whether the body should be parsed for links. An empty content type is
// treated as HTML.
func (d *HTMLDocument) IsHTML() bool {
	ct := strings.ToLower(d.ContentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// ExtractLinks returns the unique absolute http(s) links of the page, in document order,
// without fragments. Non-HTML documents have no links.
func (d *HTMLDocument) ExtractLinks() ([]string, error) {
	if !d.IsHTML() {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(d.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse HTML of '%s': %w", utils.ErrParsing, d.URL, err)
	}

	// <base href> overrides the document URL for relative links
	base := d.URL
	if href, exists := doc.Find("base[href]").First().Attr("href"); exists {
		if baseURL, perr := d.URL.Parse(strings.TrimSpace(href)); perr == nil {
			base = baseURL
		}
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, element *goquery.Selection) {
		if d.opts.RespectNofollow {
			if rel, _ := element.Attr("rel"); strings.Contains(strings.ToLower(rel), "nofollow") {
				return
			}
		}

		href, _ := element.Attr("href")
		link, ok := parse.ResolveLink(base, href)
		if !ok || seen[link] {
			return
		}
		if d.opts.SameHostOnly {
			linkURL, perr := url.Parse(link)
			if perr != nil || !parse.SameHost(linkURL, d.URL) {
				return
			}
		}
		seen[link] = true
		links = append(links, link)
	})
	return links, nil
}
