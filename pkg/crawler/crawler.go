package crawler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/storage"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
	"github.com/Sriram-PR/web-crawler/pkg/workers"
)

// Options sizes the crawler's pools and controls its lifecycle
type Options struct {
	Downloaders int // Max simultaneous downloads across all crawls
	Extractors  int // Max simultaneous link extractions across all crawls
	PerHost     int // Max simultaneous downloads to one host within a crawl
	LinkFanout  int // Links of one page admitted concurrently; <= 0 uses the default

	ShutdownTimeout      time.Duration // Graceful drain wait in Close; <= 0 uses the default
	ForceShutdownTimeout time.Duration // Wait after forced shutdown in Close; <= 0 uses the default

	VisitedStore string // config.VisitedStoreMemory (default) or config.VisitedStoreBadger
	StateDir     string // Badger scratch directory; empty keeps badger in memory
}

// OptionsFromConfig maps a validated AppConfig onto Options
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		Downloaders:          cfg.Downloaders,
		Extractors:           cfg.Extractors,
		PerHost:              cfg.PerHost,
		LinkFanout:           cfg.LinkFanout,
		ShutdownTimeout:      cfg.ShutdownTimeout,
		ForceShutdownTimeout: cfg.ForceShutdownTimeout,
		VisitedStore:         cfg.VisitedStore,
		StateDir:             cfg.StateDir,
	}
}

// WebCrawler downloads a seed URL and its link graph to a fixed depth.
// It owns one download pool and one extraction pool, shared by concurrent Download calls.
type WebCrawler struct {
	downloader models.Downloader
	opts       Options
	log        *logrus.Entry

	downloads   *workers.Pool
	extractions *workers.Pool

	closed    atomic.Bool
	closeOnce sync.Once

	crawlsMu sync.Mutex
	crawls   map[*crawl]struct{} // In-progress Download calls, for Progress
}

// NewWebCrawler validates opts and starts both pools
func NewWebCrawler(downloader models.Downloader, opts Options, baseLogger *logrus.Entry) (*WebCrawler, error) {
	if downloader == nil {
		return nil, fmt.Errorf("%w: downloader is required", utils.ErrConfigValidation)
	}
	if opts.Downloaders < 1 || opts.Extractors < 1 || opts.PerHost < 1 {
		return nil, fmt.Errorf("%w: downloaders (%d), extractors (%d) and per_host (%d) must all be >= 1",
			utils.ErrConfigValidation, opts.Downloaders, opts.Extractors, opts.PerHost)
	}
	if opts.LinkFanout <= 0 {
		opts.LinkFanout = config.DefaultLinkFanout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = config.DefaultShutdownTimeout
	}
	if opts.ForceShutdownTimeout <= 0 {
		opts.ForceShutdownTimeout = config.DefaultForceShutdownTimeout
	}

	logger := baseLogger.WithField("component", "crawler")
	downloads, err := workers.NewPool("download", opts.Downloaders, logger)
	if err != nil {
		return nil, err
	}
	extractions, err := workers.NewPool("extract", opts.Extractors, logger)
	if err != nil {
		downloads.ShutdownNow()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"downloaders": opts.Downloaders,
		"extractors":  opts.Extractors,
		"per_host":    opts.PerHost,
	}).Debug("Web crawler ready")

	return &WebCrawler{
		downloader:  downloader,
		opts:        opts,
		log:         logger,
		downloads:   downloads,
		extractions: extractions,
		crawls:      make(map[*crawl]struct{}),
	}, nil
}

// downloadSettings holds per-call options for Download
type downloadSettings struct {
	crawlID        string
	visitedLogPath string
}

// DownloadOption customizes a single Download call
type DownloadOption func(*downloadSettings)

// WithCrawlID sets the id used in logs, reports and scratch paths. Defaults to a random UUID.
func WithCrawlID(id string) DownloadOption {
	return func(s *downloadSettings) { s.crawlID = id }
}

// WithVisitedLog writes every scheduled URL and its final status to path once the crawl ends.
func WithVisitedLog(path string) DownloadOption {
	return func(s *downloadSettings) { s.visitedLogPath = path }
}

// Download crawls rawURL to the given depth and blocks until every reachable page has been
// downloaded or has failed. Depth 1 downloads the seed only.
//
// Per-URL failures are reported in Result.Errors. The returned error is reserved for
// conditions that prevent the crawl from starting: a closed crawler or a visited store
// that cannot be opened.
func (c *WebCrawler) Download(rawURL string, depth int, opts ...DownloadOption) (*Result, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("%w: cannot download '%s'", utils.ErrCrawlerClosed, rawURL)
	}

	settings := downloadSettings{}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.crawlID == "" {
		settings.crawlID = uuid.NewString()
	}

	crawlLog := c.log.WithFields(logrus.Fields{"crawl_id": settings.crawlID, "seed": rawURL, "depth": depth})
	startTime := time.Now()

	if depth < 1 {
		crawlLog.Warn("Depth < 1, nothing to crawl")
		return newResult(settings.crawlID, rawURL, depth, startTime, nil, nil), nil
	}

	store, err := storage.Open(c.opts.VisitedStore, c.opts.StateDir, utils.CrawlDirName(rawURL, settings.crawlID), crawlLog)
	if err != nil {
		return nil, fmt.Errorf("open visited store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			crawlLog.Warnf("Failed to close visited store: %v", closeErr)
		}
	}()

	cr := newCrawl(c, settings.crawlID, depth, store, crawlLog)
	c.register(cr)
	defer c.unregister(cr)

	crawlLog.Info("Crawl starting")

	// The root unit (tracker bias) keeps the crawl open while the seed is scheduled
	if _, markErr := store.MarkVisited(rawURL); markErr != nil {
		cr.failed(rawURL, depth, models.PageStatusFetchFailed, markErr)
	} else {
		cr.schedule(rawURL, depth)
	}
	cr.tracker.Complete()
	cr.tracker.Wait()

	result := cr.result(rawURL, startTime)

	if settings.visitedLogPath != "" {
		if logErr := store.WriteVisitedLog(settings.visitedLogPath); logErr != nil {
			crawlLog.Errorf("Failed to write visited log: %v", logErr)
		}
	}

	visitedCount, _ := store.GetVisitedCount()
	summaryLog := crawlLog.WithField("duration", result.Duration().String())
	summaryLog.Info("========================================================================")
	summaryLog.Info("CRAWL FINISHED")
	summaryLog.Infof("Scheduled: %d, Downloaded: %d, Errors: %d", visitedCount, len(result.Downloaded), len(result.Errors))
	for category, count := range result.ErrorCategories() {
		summaryLog.Infof("  %-40s %d", category, count)
	}
	summaryLog.Info("========================================================================")

	return result, nil
}

func (c *WebCrawler) register(cr *crawl) {
	c.crawlsMu.Lock()
	c.crawls[cr] = struct{}{}
	c.crawlsMu.Unlock()
}

func (c *WebCrawler) unregister(cr *crawl) {
	c.crawlsMu.Lock()
	delete(c.crawls, cr)
	c.crawlsMu.Unlock()
}

// Progress is a point-in-time view of the crawler's load
type Progress struct {
	ActiveCrawls       int   // Download calls in progress
	PendingTasks       int64 // Outstanding units across active crawls (queued, host-queued or running)
	DownloadsRunning   int64
	DownloadsQueued    int
	ExtractionsRunning int64
	ExtractionsQueued  int
	Hosts              map[string]HostLoad // Per-host gate state, summed over active crawls
	Closed             bool
}

// HostLoad is the gate state of one host
type HostLoad struct {
	InFlight int `json:"in_flight"`
	Waiting  int `json:"waiting"`
}

// Progress returns the current load of the crawler
func (c *WebCrawler) Progress() Progress {
	p := Progress{
		DownloadsRunning:   c.downloads.Running(),
		DownloadsQueued:    c.downloads.Queued(),
		ExtractionsRunning: c.extractions.Running(),
		ExtractionsQueued:  c.extractions.Queued(),
		Closed:             c.closed.Load(),
	}
	c.crawlsMu.Lock()
	p.ActiveCrawls = len(c.crawls)
	for cr := range c.crawls {
		p.PendingTasks += cr.tracker.Pending()
		if cr.gate.Len() == 0 {
			continue
		}
		if p.Hosts == nil {
			p.Hosts = make(map[string]HostLoad)
		}
		for _, host := range cr.gate.Hosts() {
			load := p.Hosts[host]
			load.InFlight += cr.gate.InFlight(host)
			load.Waiting += cr.gate.Queued(host)
			p.Hosts[host] = load
		}
	}
	c.crawlsMu.Unlock()
	return p
}

// Close stops both pools. Queued and running work gets ShutdownTimeout to finish; after
// that, queued work is dropped and running work sees its context cancelled. Close never
// fails and is safe to call more than once.
func (c *WebCrawler) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.log.Debug("Closing web crawler...")

		c.downloads.Shutdown()
		c.extractions.Shutdown()
		if c.awaitPools(c.opts.ShutdownTimeout) {
			c.log.Debug("Web crawler closed")
			return
		}

		c.log.Warnf("Pools did not drain within %v, forcing shutdown", c.opts.ShutdownTimeout)
		dropped := c.downloads.ShutdownNow() + c.extractions.ShutdownNow()
		if !c.awaitPools(c.opts.ForceShutdownTimeout) {
			c.log.WithFields(logrus.Fields{
				"dropped":             dropped,
				"downloads_running":   c.downloads.Running(),
				"extractions_running": c.extractions.Running(),
			}).Errorf("Pools did not terminate within %v after forced shutdown", c.opts.ForceShutdownTimeout)
			return
		}
		c.log.WithField("dropped", dropped).Debug("Web crawler closed after forced shutdown")
	})
}

// awaitPools waits for both pools to terminate within a shared deadline
func (c *WebCrawler) awaitPools(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for _, pool := range []*workers.Pool{c.downloads, c.extractions} {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if !pool.AwaitTermination(remaining) {
			return false
		}
	}
	return true
}

// IsClosed reports whether Close has been called
func (c *WebCrawler) IsClosed() bool { return c.closed.Load() }

// errPanic marks a task that panicked; the pool logs the stack trace
var errPanic = errors.New("task panicked")
