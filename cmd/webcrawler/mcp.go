package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	applog "github.com/Sriram-PR/web-crawler/pkg/log"
	"github.com/Sriram-PR/web-crawler/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional)")
	envFile := fs.String("env", ".env", "Path to .env file with CRAWLER_* overrides (optional)")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	reportDir := fs.String("report-dir", "", "Directory for YAML reports of background crawls (optional)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: webcrawler mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  webcrawler mcp-server -config crawler.yaml

  # Start with SSE transport on port 8080
  webcrawler mcp-server -transport sse -port 8080

Available MCP Tools:
  crawl           Crawl a URL and wait for the result
  start_crawl     Start a background crawl
  get_job_status  Check a background crawl
  list_jobs       List background crawls
  crawler_status  Show running and queued work
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doMcpServer(mcpFlags{
		configPath: *configFile,
		envPath:    *envFile,
		transport:  *transport,
		port:       *port,
		reportDir:  *reportDir,
		logLevel:   *logLevel,
	}, os.Stderr))
}

type mcpFlags struct {
	configPath string
	envPath    string
	transport  string
	port       int
	reportDir  string
	logLevel   string
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(f mcpFlags, stderr io.Writer) int {
	// MCP protocol uses stdout, logs go to stderr
	log, err := applog.New(f.logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", f.logLevel)
		return 1
	}

	appCfg, err := loadConfig(f.configPath, f.envPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig: appCfg,
		ReportDir: f.reportDir,
		Transport: f.transport,
		Port:      f.port,
		Logger:    log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", f.transport)
	runErr := server.Run()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Warnf("MCP server shutdown: %v", err)
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", runErr)
		return 1
	}
	return 0
}
