package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/web-crawler/pkg/fetch"
	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/parse"
	"github.com/Sriram-PR/web-crawler/pkg/queue"
	"github.com/Sriram-PR/web-crawler/pkg/storage"
	"github.com/Sriram-PR/web-crawler/pkg/tracker"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// crawl is the state of one Download call. Pools are borrowed from the WebCrawler;
// everything else (visited set, host gate, results) is private to the call.
type crawl struct {
	c        *WebCrawler
	id       string
	maxDepth int
	store    storage.VisitedStore
	gate     *fetch.HostGate
	tracker  *tracker.Tracker
	log      *logrus.Entry

	mu         sync.Mutex
	downloaded map[string]struct{}
	errors     map[string]error
}

func newCrawl(c *WebCrawler, id string, maxDepth int, store storage.VisitedStore, log *logrus.Entry) *crawl {
	return &crawl{
		c:          c,
		id:         id,
		maxDepth:   maxDepth,
		store:      store,
		gate:       fetch.NewHostGate(c.opts.PerHost, c.downloads, log),
		tracker:    tracker.New(),
		log:        log,
		downloaded: make(map[string]struct{}),
		errors:     make(map[string]error),
	}
}

// priority orders shallower pages first inside the shared pools
func (cr *crawl) priority(depth int) int {
	return cr.maxDepth - depth
}

// propose schedules a link found on a page unless this crawl has already seen it
func (cr *crawl) propose(link string, depth int) {
	added, err := cr.store.MarkVisited(link)
	if err != nil {
		cr.failed(link, depth, models.PageStatusDBError, err)
		return
	}
	if !added {
		return
	}
	cr.schedule(link, depth)
}

// schedule admits a download for a URL that has just been marked visited.
// Exactly one tracker unit is registered for it and released on every path.
func (cr *crawl) schedule(rawURL string, depth int) {
	host, err := parse.HostOf(rawURL)
	if err != nil {
		cr.failed(rawURL, depth, models.PageStatusFetchFailed, err)
		return
	}

	cr.tracker.Register()
	task := cr.downloadTask(rawURL, host, depth)
	if err := cr.gate.Admit(host, task); err != nil {
		// Admit rolled the host slot back, only the unit is left to release
		cr.failed(rawURL, depth, models.PageStatusFetchFailed, fmt.Errorf("%w: %w", utils.ErrFetch, err))
		cr.tracker.Complete()
	}
}

func (cr *crawl) downloadTask(rawURL, host string, depth int) *queue.Task {
	task := &queue.Task{Name: rawURL, Priority: cr.priority(depth)}

	task.Run = func(ctx context.Context) {
		defer cr.tracker.Complete()
		defer cr.gate.Release(host)
		defer func() {
			if r := recover(); r != nil {
				cr.failed(rawURL, depth, models.PageStatusFetchFailed, fmt.Errorf("%w: %w: %v", utils.ErrFetch, errPanic, r))
				panic(r)
			}
		}()

		taskLog := cr.log.WithFields(logrus.Fields{"url": rawURL, "depth": depth})
		taskLog.Debug("Downloading")
		start := time.Now()

		doc, err := cr.c.downloader.Download(ctx, rawURL)
		if err != nil {
			cr.failed(rawURL, depth, models.PageStatusFetchFailed, fmt.Errorf("%w: %w", utils.ErrFetch, err))
			return
		}
		cr.succeeded(rawURL, depth)
		taskLog.WithField("duration", time.Since(start)).Debug("Downloaded")

		if depth > 1 && doc != nil {
			cr.scheduleExtraction(rawURL, depth, doc)
		}
	}

	// The host slot was already handed to this task, so a rejection must give it back
	task.Reject = func(err error) {
		defer cr.tracker.Complete()
		defer cr.gate.Release(host)
		cr.failed(rawURL, depth, models.PageStatusFetchFailed, fmt.Errorf("%w: %w", utils.ErrFetch, err))
	}

	return task
}

func (cr *crawl) scheduleExtraction(rawURL string, depth int, doc models.Document) {
	cr.tracker.Register()

	task := &queue.Task{Name: rawURL, Priority: cr.priority(depth)}
	task.Run = func(ctx context.Context) {
		defer cr.tracker.Complete()
		defer func() {
			if r := recover(); r != nil {
				cr.failed(rawURL, depth, models.PageStatusExtractFailed, fmt.Errorf("%w: %w: %v", utils.ErrExtract, errPanic, r))
				panic(r)
			}
		}()
		cr.extract(rawURL, depth, doc)
	}
	task.Reject = func(err error) {
		defer cr.tracker.Complete()
		cr.failed(rawURL, depth, models.PageStatusExtractFailed, fmt.Errorf("%w: %w", utils.ErrExtract, err))
	}

	if err := cr.c.extractions.Submit(task); err != nil {
		cr.failed(rawURL, depth, models.PageStatusExtractFailed, fmt.Errorf("%w: %w", utils.ErrExtract, err))
		cr.tracker.Complete()
	}
}

// extract proposes every link of doc one level deeper, LinkFanout at a time
func (cr *crawl) extract(rawURL string, depth int, doc models.Document) {
	links, err := doc.ExtractLinks()
	if err != nil {
		cr.failed(rawURL, depth, models.PageStatusExtractFailed, fmt.Errorf("%w: %w", utils.ErrExtract, err))
		return
	}

	cr.log.WithFields(logrus.Fields{"url": rawURL, "links": len(links)}).Debug("Extracted links")

	g := new(errgroup.Group)
	g.SetLimit(cr.c.opts.LinkFanout)
	for _, link := range links {
		g.Go(func() error {
			cr.propose(link, depth-1)
			return nil
		})
	}
	_ = g.Wait()
}

func (cr *crawl) succeeded(rawURL string, depth int) {
	cr.mu.Lock()
	cr.downloaded[rawURL] = struct{}{}
	cr.mu.Unlock()

	cr.updateStatus(rawURL, &models.PageDBEntry{
		Status:      models.PageStatusDownloaded,
		Depth:       depth,
		LastAttempt: time.Now(),
	})
}

// failed records the first error seen for a URL
func (cr *crawl) failed(rawURL string, depth int, status models.PageStatus, err error) {
	category := utils.CategorizeError(err)

	cr.mu.Lock()
	if _, exists := cr.errors[rawURL]; !exists {
		cr.errors[rawURL] = err
	}
	cr.mu.Unlock()

	cr.log.WithFields(logrus.Fields{
		"url":        rawURL,
		"depth":      depth,
		"error_type": category,
	}).Warnf("Page failed: %v", err)

	if !status.IsValid() {
		return
	}
	cr.updateStatus(rawURL, &models.PageDBEntry{
		Status:      status,
		ErrorType:   category,
		Error:       err.Error(),
		Depth:       depth,
		LastAttempt: time.Now(),
	})
}

func (cr *crawl) updateStatus(rawURL string, entry *models.PageDBEntry) {
	if err := cr.store.UpdatePageStatus(rawURL, entry); err != nil {
		cr.log.WithField("url", rawURL).Warnf("Failed to record page status: %v", err)
	}
}

func (cr *crawl) result(seedURL string, startTime time.Time) *Result {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return newResult(cr.id, seedURL, cr.maxDepth, startTime, cr.downloaded, cr.errors)
}
