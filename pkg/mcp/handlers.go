package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/web-crawler/pkg/crawler"
	"github.com/Sriram-PR/web-crawler/pkg/parse"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// crawlArgs reads and validates the url and depth arguments shared by crawl and start_crawl
func (s *Server) crawlArgs(request mcp.CallToolRequest) (string, int, *mcp.CallToolResult) {
	seed := request.GetString("url", "")
	if seed == "" {
		return "", 0, mcp.NewToolResultError("url parameter is required")
	}
	if _, err := parse.HostOf(seed); err != nil {
		return "", 0, mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err))
	}

	depth := request.GetInt("depth", s.cfg.AppConfig.Depth)
	if depth < 1 {
		return "", 0, mcp.NewToolResultError(fmt.Sprintf("depth must be >= 1, got %d", depth))
	}
	return seed, depth, nil
}

// handleCrawl handles the crawl tool
func (s *Server) handleCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seed, depth, errResult := s.crawlArgs(request)
	if errResult != nil {
		return errResult, nil
	}

	result, err := s.crawler.Download(seed, depth)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("crawl failed: %v", err)), nil
	}

	response := resultSummary(result)
	response["downloaded"] = result.Downloaded
	response["errors"] = errorDetails(result)
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStartCrawl handles the start_crawl tool
func (s *Server) handleStartCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seed, depth, errResult := s.crawlArgs(request)
	if errResult != nil {
		return errResult, nil
	}
	if s.crawler.IsClosed() {
		return mcp.NewToolResultError("server is shutting down"), nil
	}

	job, created := s.jobManager.CreateJob(seed, depth)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A crawl is already in progress for this URL",
			"job_id":  job.ID,
			"url":     seed,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	s.jobsWG.Add(1)
	go s.runCrawlJob(job.ID, seed, depth)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Crawl started successfully",
		"job_id":  job.ID,
		"url":     seed,
		"depth":   depth,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := jobSummary(job)
	if request.GetBool("include_urls", false) && job.Result() != nil {
		result["downloaded"] = job.Result().Downloaded
		result["error_details"] = errorDetails(job.Result())
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.jobManager.ListJobs()
	summaries := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, jobSummary(job))
	}

	result := map[string]interface{}{
		"jobs":       summaries,
		"total_jobs": len(summaries),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCrawlerStatus handles the crawler_status tool
func (s *Server) handleCrawlerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := s.crawler.Progress()
	result := map[string]interface{}{
		"active_crawls":       p.ActiveCrawls,
		"pending_tasks":       p.PendingTasks,
		"downloads_running":   p.DownloadsRunning,
		"downloads_queued":    p.DownloadsQueued,
		"extractions_running": p.ExtractionsRunning,
		"extractions_queued":  p.ExtractionsQueued,
		"hosts":               p.Hosts,
		"closed":              p.Closed,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runCrawlJob runs a crawl job in the background
func (s *Server) runCrawlJob(jobID, seed string, depth int) {
	defer s.jobsWG.Done()
	s.jobManager.MarkRunning(jobID)

	jobLog := s.log.WithField("job_id", jobID)
	result, err := s.crawler.Download(seed, depth, crawler.WithCrawlID(jobID))
	if err != nil {
		jobLog.Errorf("Crawl job failed: %v", err)
		s.jobManager.Fail(jobID, err.Error())
		return
	}

	if s.cfg.ReportDir != "" {
		reportPath := filepath.Join(s.cfg.ReportDir, utils.CrawlDirName(seed, jobID)+".yaml")
		if err := crawler.WriteReport(reportPath, result, jobLog); err != nil {
			jobLog.Errorf("Failed to write report: %v", err)
		}
	}
	s.jobManager.Complete(jobID, result)
}

func resultSummary(result *crawler.Result) map[string]interface{} {
	return map[string]interface{}{
		"crawl_id":         result.CrawlID,
		"url":              result.SeedURL,
		"depth":            result.Depth,
		"downloaded_count": len(result.Downloaded),
		"error_count":      len(result.Errors),
		"error_categories": result.ErrorCategories(),
		"duration_seconds": result.Duration().Seconds(),
	}
}

func jobSummary(job Job) map[string]interface{} {
	summary := map[string]interface{}{
		"job_id":     job.ID,
		"url":        job.Seed,
		"depth":      job.Depth,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}
	if !job.CompletedAt.IsZero() {
		summary["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		summary["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Status == JobStatusCompleted {
		summary["downloaded_count"] = job.Downloaded
		summary["error_count"] = job.Errors
		summary["error_categories"] = job.ErrorCategories
	}
	if job.ErrorMessage != "" {
		summary["error_message"] = job.ErrorMessage
	}
	return summary
}

// errorDetails lists per-URL errors sorted by URL
func errorDetails(result *crawler.Result) []map[string]string {
	details := make([]map[string]string, 0, len(result.Errors))
	for _, u := range result.FailedURLs() {
		err := result.Errors[u]
		details = append(details, map[string]string{
			"url":      u,
			"category": utils.CategorizeError(err),
			"message":  err.Error(),
		})
	}
	return details
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
