package orchestrate

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/crawler"
	"github.com/Sriram-PR/web-crawler/pkg/parse"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// SeedResult contains the result of crawling a single seed
type SeedResult struct {
	Seed     string
	Success  bool // Download returned without a fatal error; per-URL errors live in Result
	Error    error
	Result   *crawler.Result
	Duration time.Duration
}

// Orchestrator crawls several seeds concurrently on one WebCrawler, so all seeds share
// the download and extraction pools.
type Orchestrator struct {
	crawler   *crawler.WebCrawler
	seeds     []string
	depth     int
	reportDir string // Per-seed YAML reports are written here when set
	log       *logrus.Entry

	results   []SeedResult
	resultsMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for the given seeds
func NewOrchestrator(c *crawler.WebCrawler, seeds []string, depth int, reportDir string, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		crawler:   c,
		seeds:     seeds,
		depth:     depth,
		reportDir: reportDir,
		log:       log.WithField("component", "orchestrator"),
		results:   make([]SeedResult, 0, len(seeds)),
	}
}

// Run crawls all seeds in parallel and waits for completion.
// Results are returned in seed order.
func (o *Orchestrator) Run() []SeedResult {
	startTime := time.Now()
	o.log.Infof("Starting parallel crawl of %d seeds at depth %d", len(o.seeds), o.depth)

	results := make([]SeedResult, len(o.seeds))
	var wg sync.WaitGroup
	for i, seed := range o.seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = o.crawlSeed(seed)
		}()
	}
	wg.Wait()

	o.resultsMu.Lock()
	o.results = results
	o.resultsMu.Unlock()

	o.logSummary(time.Since(startTime))
	return results
}

// Results returns the results of the last Run
func (o *Orchestrator) Results() []SeedResult {
	o.resultsMu.Lock()
	defer o.resultsMu.Unlock()
	return append([]SeedResult(nil), o.results...)
}

func (o *Orchestrator) crawlSeed(seed string) SeedResult {
	startTime := time.Now()
	result := SeedResult{Seed: seed}
	seedLog := o.log.WithField("seed", seed)

	seedLog.Info("Starting crawl for seed")
	res, err := o.crawler.Download(seed, o.depth)
	result.Duration = time.Since(startTime)
	if err != nil {
		result.Error = err
		seedLog.Errorf("Crawl failed for seed: %v", err)
		return result
	}
	result.Success = true
	result.Result = res

	if o.reportDir != "" {
		reportPath := filepath.Join(o.reportDir, utils.CrawlDirName(seed, res.CrawlID)+".yaml")
		if err := crawler.WriteReport(reportPath, res, seedLog); err != nil {
			// The crawl itself still succeeded
			seedLog.Errorf("Failed to write report: %v", err)
		}
	}

	seedLog.WithFields(logrus.Fields{
		"downloaded": len(res.Downloaded),
		"errors":     len(res.Errors),
	}).Info("Crawl completed for seed")
	return result
}

// logSummary logs a summary of all crawl results
func (o *Orchestrator) logSummary(totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Parallel crawl completed in %v", totalDuration)
	o.log.Info("Seed Results:")

	var totalPages, totalErrors int
	successCount := 0
	failCount := 0

	for _, r := range o.results {
		if !r.Success {
			failCount++
			o.log.Infof("  %s: FAILED in %v", r.Seed, r.Duration)
			o.log.Infof("    Error: %v", r.Error)
			continue
		}
		successCount++
		totalPages += len(r.Result.Downloaded)
		totalErrors += len(r.Result.Errors)
		o.log.Infof("  %s: SUCCESS - %d pages, %d errors in %v",
			r.Seed, len(r.Result.Downloaded), len(r.Result.Errors), r.Duration)
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d seeds (%d success, %d failed), %d pages downloaded, %d page errors",
		len(o.results), successCount, failCount, totalPages, totalErrors)
	o.log.Info("============================================")
}

// ValidateSeeds checks that every seed is an absolute URL with a host
func ValidateSeeds(seeds []string) error {
	if len(seeds) == 0 {
		return fmt.Errorf("%w: no seeds given", utils.ErrConfigValidation)
	}
	var errs []error
	for _, seed := range seeds {
		if _, err := parse.HostOf(seed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
