// Package sitemap turns XML sitemaps into crawl seeds.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/fetch"
	"github.com/Sriram-PR/web-crawler/pkg/parse"
	"github.com/Sriram-PR/web-crawler/pkg/tracker"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

const (
	DefaultMaxSitemaps = 50
	DefaultMaxURLs     = 10000
	maxConcurrentFetch = 4
	maxSitemapBytes    = 50 << 20 // Protocol limit for one uncompressed sitemap
)

// XMLURLSet is a <urlset> document
type XMLURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
}

// XMLSitemapIndex is a <sitemapindex> document
type XMLSitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Options bounds how much a Resolver fetches
type Options struct {
	MaxSitemaps  int  // Sitemap documents fetched, indexes included
	MaxURLs      int  // Page URLs returned
	SameHostOnly bool // Drop page URLs on a different host than the root sitemap
}

// Resolver fetches a sitemap, follows sitemap indexes, and collects page URLs
type Resolver struct {
	fetcher   *fetch.Fetcher
	userAgent string
	opts      Options
	log       *logrus.Entry
}

// NewResolver creates a resolver using the same HTTP client settings and retry policy as the crawler
func NewResolver(cfg *config.AppConfig, client *http.Client, opts Options, baseLogger *logrus.Entry) *Resolver {
	log := baseLogger.WithField("component", "sitemap_resolver")
	if client == nil {
		client = fetch.NewClient(cfg.HTTPClientSettings, log)
	}
	if opts.MaxSitemaps <= 0 {
		opts.MaxSitemaps = DefaultMaxSitemaps
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = DefaultMaxURLs
	}
	return &Resolver{
		fetcher:   fetch.NewFetcher(client, fetch.RetryPolicyFrom(cfg), log),
		userAgent: cfg.UserAgent,
		opts:      opts,
		log:       log,
	}
}

// resolveRun is the state of one Resolve call
type resolveRun struct {
	r        *Resolver
	ctx      context.Context
	rootHost string
	sem      *semaphore.Weighted
	tracker  *tracker.Tracker

	mu        sync.Mutex
	sitemaps  map[string]bool
	urls      map[string]struct{}
	truncated bool
}

// Resolve returns the sorted, deduplicated page URLs listed by sitemapURL and any sitemaps it
// references. Only a failure of the root sitemap is returned as an error; nested failures are logged.
func (r *Resolver) Resolve(ctx context.Context, sitemapURL string) ([]string, error) {
	rootHost, err := parse.HostOf(sitemapURL)
	if err != nil {
		return nil, err
	}

	run := &resolveRun{
		r:        r,
		ctx:      ctx,
		rootHost: rootHost,
		sem:      semaphore.NewWeighted(maxConcurrentFetch),
		tracker:  tracker.New(),
		sitemaps: map[string]bool{sitemapURL: true},
		urls:     make(map[string]struct{}),
	}

	// The root is processed inline so its error can be returned
	if err := run.process(sitemapURL); err != nil {
		run.tracker.Complete()
		run.tracker.Wait()
		return nil, err
	}
	run.tracker.Complete()
	run.tracker.Wait()

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.truncated {
		r.log.Warnf("Sitemap URL limit (%d) reached, remaining entries ignored", r.opts.MaxURLs)
	}
	found := slices.Sorted(maps.Keys(run.urls))
	r.log.WithFields(logrus.Fields{"sitemap_url": sitemapURL, "sitemaps": len(run.sitemaps), "urls": len(found)}).Info("Sitemap resolved")
	return found, nil
}

// spawn processes a nested sitemap in the background unless it was already seen or the cap is hit
func (run *resolveRun) spawn(sitemapURL string) {
	run.mu.Lock()
	if run.sitemaps[sitemapURL] {
		run.mu.Unlock()
		return
	}
	if len(run.sitemaps) >= run.r.opts.MaxSitemaps {
		run.mu.Unlock()
		run.r.log.Warnf("Sitemap limit (%d) reached, skipping %s", run.r.opts.MaxSitemaps, sitemapURL)
		return
	}
	run.sitemaps[sitemapURL] = true
	run.mu.Unlock()

	run.tracker.Register()
	go func() {
		defer run.tracker.Complete()
		defer func() {
			if r := recover(); r != nil {
				run.r.log.WithFields(logrus.Fields{
					"sitemap_url": sitemapURL,
					"panic_info":  r,
					"stack_trace": string(debug.Stack()),
				}).Error("PANIC Recovered in sitemap processing goroutine")
			}
		}()
		if err := run.process(sitemapURL); err != nil {
			run.r.log.WithField("sitemap_url", sitemapURL).Warnf("Nested sitemap skipped: %v", err)
		}
	}()
}

func (run *resolveRun) process(sitemapURL string) error {
	sitemapLog := run.r.log.WithField("sitemap_url", sitemapURL)
	sitemapLog.Debug("Processing sitemap")

	body, err := run.fetch(sitemapURL)
	if err != nil {
		return err
	}

	var index XMLSitemapIndex
	if errIndex := xml.Unmarshal(body, &index); errIndex == nil {
		sitemapLog.Debugf("Parsed as Sitemap Index, found %d references.", len(index.Sitemaps))
		for _, entry := range index.Sitemaps {
			nested, ok := parse.ResolveLink(mustParse(sitemapURL), entry.Loc)
			if !ok {
				sitemapLog.Warnf("Invalid nested sitemap URL: %q", entry.Loc)
				continue
			}
			run.spawn(nested)
		}
		return nil
	}

	var urlSet XMLURLSet
	if errURLSet := xml.Unmarshal(body, &urlSet); errURLSet != nil {
		return fmt.Errorf("%w: %s is neither a sitemap index nor a URL set: %w", utils.ErrParsing, sitemapURL, errURLSet)
	}

	base := mustParse(sitemapURL)
	added := 0
	run.mu.Lock()
	defer run.mu.Unlock()
	for _, entry := range urlSet.URLs {
		pageURL, ok := parse.ResolveLink(base, entry.Loc)
		if !ok {
			continue
		}
		if run.r.opts.SameHostOnly {
			if host, err := parse.HostOf(pageURL); err != nil || host != run.rootHost {
				continue
			}
		}
		if _, seen := run.urls[pageURL]; seen {
			continue
		}
		if len(run.urls) >= run.r.opts.MaxURLs {
			run.truncated = true
			break
		}
		run.urls[pageURL] = struct{}{}
		added++
	}
	sitemapLog.Debugf("Parsed as URL Set, %d of %d URLs new.", added, len(urlSet.URLs))
	return nil
}

// fetch downloads one sitemap, transparently gunzipping .xml.gz files
func (run *resolveRun) fetch(sitemapURL string) ([]byte, error) {
	if err := run.sem.Acquire(run.ctx, 1); err != nil {
		return nil, err
	}
	defer run.sem.Release(1)

	req, err := http.NewRequestWithContext(run.ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if run.r.userAgent != "" {
		req.Header.Set("User-Agent", run.r.userAgent)
	}

	resp, err := run.r.fetcher.FetchWithRetry(run.ctx, req)
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}

	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", utils.ErrParsing, err)
		}
		defer zr.Close()
		body, err = io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", utils.ErrParsing, err)
		}
	}
	return body, nil
}

// mustParse parses a URL that already passed parse.HostOf or parse.ResolveLink
func mustParse(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return u
}
