package crawler

import (
	"maps"
	"slices"
	"time"

	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// Result is the outcome of one Download call.
// A URL that failed to download is never in Downloaded. A URL can be in both
// Downloaded and Errors only when its link extraction failed.
type Result struct {
	CrawlID    string
	SeedURL    string
	Depth      int
	Downloaded []string         // Sorted
	Errors     map[string]error // URL -> first error recorded for it
	StartTime  time.Time
	EndTime    time.Time
}

func newResult(crawlID, seedURL string, depth int, start time.Time, downloaded map[string]struct{}, errs map[string]error) *Result {
	r := &Result{
		CrawlID:    crawlID,
		SeedURL:    seedURL,
		Depth:      depth,
		Downloaded: slices.Sorted(maps.Keys(downloaded)),
		Errors:     maps.Clone(errs),
		StartTime:  start,
		EndTime:    time.Now(),
	}
	if r.Downloaded == nil {
		r.Downloaded = []string{}
	}
	if r.Errors == nil {
		r.Errors = map[string]error{}
	}
	return r
}

// Duration is the wall time of the crawl
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// FailedURLs returns the keys of Errors, sorted
func (r *Result) FailedURLs() []string {
	return slices.Sorted(maps.Keys(r.Errors))
}

// ErrorCategories counts errors by utils.CategorizeError
func (r *Result) ErrorCategories() map[string]int {
	counts := make(map[string]int)
	for _, err := range r.Errors {
		counts[utils.CategorizeError(err)]++
	}
	return counts
}

// Report converts the result into its YAML report form
func (r *Result) Report() *models.CrawlReport {
	report := &models.CrawlReport{
		CrawlID:        r.CrawlID,
		SeedURL:        r.SeedURL,
		Depth:          r.Depth,
		CrawlStartTime: r.StartTime,
		CrawlEndTime:   r.EndTime,
		Duration:       r.Duration().String(),
		Downloaded:     r.Downloaded,
	}
	for _, u := range r.FailedURLs() {
		err := r.Errors[u]
		report.Errors = append(report.Errors, models.ReportError{
			URL:      u,
			Category: utils.CategorizeError(err),
			Message:  err.Error(),
		})
	}
	return report
}
