package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/crawler"
	"github.com/Sriram-PR/web-crawler/pkg/fetch"
)

const (
	serverName    = "web-crawler"
	serverVersion = "1.0.0"

	toolCount = 5
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig *config.AppConfig
	Crawler   *crawler.WebCrawler // Optional; built from AppConfig when nil and closed on Shutdown
	ReportDir string              // Background jobs write a YAML report here when set
	Transport string              // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server exposes the crawler as MCP tools
type Server struct {
	mcpServer    *server.MCPServer
	cfg          *ServerConfig
	log          *logrus.Entry
	crawler      *crawler.WebCrawler
	ownsCrawler  bool
	jobManager   *JobManager
	jobsWG       sync.WaitGroup
	shutdownOnce sync.Once
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log := cfg.Logger.WithField("component", "mcp")

	c := cfg.Crawler
	ownsCrawler := false
	if c == nil {
		downloader := fetch.NewHTTPDownloader(cfg.AppConfig, nil, log)
		var err error
		c, err = crawler.NewWebCrawler(downloader, crawler.OptionsFromConfig(cfg.AppConfig), log)
		if err != nil {
			return nil, fmt.Errorf("create crawler: %w", err)
		}
		ownsCrawler = true
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:   mcpServer,
		cfg:         cfg,
		log:         log,
		crawler:     c,
		ownsCrawler: ownsCrawler,
		jobManager:  NewJobManager(),
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	depthDescription := fmt.Sprintf("Crawl depth; 1 downloads only the URL itself (default: %d)", s.cfg.AppConfig.Depth)

	crawlTool := mcp.NewTool("crawl",
		mcp.WithDescription("Crawl a URL to the given depth and wait for the result. Returns downloaded URLs and per-URL errors."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL to start from"),
		),
		mcp.WithNumber("depth",
			mcp.Description(depthDescription),
		),
	)
	s.mcpServer.AddTool(crawlTool, s.handleCrawl)

	startCrawlTool := mcp.NewTool("start_crawl",
		mcp.WithDescription("Start a background crawl. Returns immediately with a job ID."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL to start from"),
		),
		mcp.WithNumber("depth",
			mcp.Description(depthDescription),
		),
	)
	s.mcpServer.AddTool(startCrawlTool, s.handleStartCrawl)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_crawl"),
		),
		mcp.WithBoolean("include_urls",
			mcp.Description("Include downloaded URLs and per-URL errors of a completed job"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	listJobsTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List all crawl jobs started by this server, oldest first"),
	)
	s.mcpServer.AddTool(listJobsTool, s.handleListJobs)

	progressTool := mcp.NewTool("crawler_status",
		mcp.WithDescription("Show current crawler load: active crawls, running and queued downloads and extractions"),
	)
	s.mcpServer.AddTool(progressTool, s.handleCrawlerStatus)

	s.log.Infof("Registered %d MCP tools", toolCount)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown closes the crawler (if this server created it) and waits for background jobs
// to record their outcome or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.log.Info("Shutting down MCP server...")
		if s.ownsCrawler {
			s.crawler.Close()
		}
	})

	done := make(chan struct{})
	go func() {
		s.jobsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
