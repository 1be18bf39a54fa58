package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/crawler"
	"github.com/Sriram-PR/web-crawler/pkg/fetch"
	applog "github.com/Sriram-PR/web-crawler/pkg/log"
	"github.com/Sriram-PR/web-crawler/pkg/orchestrate"
	"github.com/Sriram-PR/web-crawler/pkg/sitemap"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("webcrawler %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `webcrawler - Bounded-concurrency web crawler

Usage:
  webcrawler <command> [options]

Commands:
  crawl       Crawl a URL (or the configured seeds) to a fixed depth
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'webcrawler <command> -h' for command-specific help.`)
}

// loadConfig reads the optional .env file and config file, then applies CRAWLER_* overrides.
// An empty configPath starts from an empty config. The result is not yet validated.
func loadConfig(configPath, envPath string, log *logrus.Logger) (*config.AppConfig, error) {
	if err := config.LoadDotEnv(envPath); err != nil {
		return nil, err
	}

	appCfg := &config.AppConfig{}
	if configPath != "" {
		log.Infof("Loading configuration from %s", configPath)
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		appCfg = loaded
	}

	applied, err := appCfg.ApplyEnvOverrides()
	if err != nil {
		return nil, err
	}
	for _, name := range applied {
		log.Infof("Config override from environment: %s", name)
	}
	return appCfg, nil
}

// applyPositional applies `<url> [depth [downloads [extractors [perHost]]]]` to appCfg and
// returns the URL, or "" when no positional arguments were given.
func applyPositional(appCfg *config.AppConfig, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if len(args) > 5 {
		return "", fmt.Errorf("%w: too many arguments: expected <url> [depth [downloads [extractors [perHost]]]]", utils.ErrConfigValidation)
	}

	targets := []struct {
		name string
		dst  *int
	}{
		{"depth", &appCfg.Depth},
		{"downloads", &appCfg.Downloaders},
		{"extractors", &appCfg.Extractors},
		{"perHost", &appCfg.PerHost},
	}
	for i, raw := range args[1:] {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return "", fmt.Errorf("%w: %s must be a positive integer, got '%s'", utils.ErrConfigValidation, targets[i].name, raw)
		}
		*targets[i].dst = n
	}
	return args[0], nil
}

// crawlFlags holds the parsed crawl subcommand
type crawlFlags struct {
	configPath     string
	envPath        string
	logLevel       string
	reportPath     string // Report file for a single URL, report directory for configured seeds
	visitedLogPath string
	pprofAddr      string
	sitemapURL     string // Page URLs listed here are added to the configured seeds
	positional     []string
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	f := crawlFlags{}
	fs.StringVar(&f.configPath, "config", "", "Path to YAML config file (optional)")
	fs.StringVar(&f.envPath, "env", ".env", "Path to .env file with CRAWLER_* overrides (optional)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	fs.StringVar(&f.reportPath, "report", "", "Write a YAML crawl report (file for a URL argument, directory for configured seeds)")
	fs.StringVar(&f.visitedLogPath, "write-visited-log", "", "Write every scheduled URL and its final status to this file")
	fs.StringVar(&f.pprofAddr, "pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	fs.StringVar(&f.sitemapURL, "sitemap", "", "Sitemap (or sitemap index) whose URLs are crawled as seeds")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcrawler crawl [options] [<url> [depth [downloads [extractors [perHost]]]]]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nWithout a URL, the seeds listed in the config file are crawled in parallel.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  webcrawler crawl https://example.com 3\n")
		fmt.Fprintf(os.Stderr, "  webcrawler crawl -report out/report.yaml https://example.com 2 16 8 4\n")
		fmt.Fprintf(os.Stderr, "  webcrawler crawl -config crawler.yaml -report out/\n")
		fmt.Fprintf(os.Stderr, "  webcrawler crawl -sitemap https://example.com/sitemap.xml -report out/\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	f.positional = fs.Args()

	os.Exit(doCrawl(f, os.Stdout, os.Stderr))
}

// doCrawl is the testable implementation of the crawl subcommand.
// Returns exit code (0 = crawl ran, 1 = fatal error).
func doCrawl(f crawlFlags, stdout, stderr io.Writer) int {
	log, err := applog.New(f.logLevel, stderr)
	if err != nil {
		log.Warn(err)
	}

	appCfg, err := loadConfig(f.configPath, f.envPath, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	seed, err := applyPositional(appCfg, f.positional)
	if err != nil {
		log.Errorf("Argument error: %v", err)
		return 1
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	entry := log.WithField("component", "cli")

	seeds := appCfg.Seeds
	switch {
	case seed != "":
		seeds = []string{seed}
		if f.sitemapURL != "" {
			log.Warn("-sitemap is ignored when a URL argument is given")
		}
	case f.sitemapURL != "":
		resolver := sitemap.NewResolver(appCfg, nil, sitemap.Options{SameHostOnly: appCfg.SameHostOnly}, entry)
		found, err := resolver.Resolve(context.Background(), f.sitemapURL)
		if err != nil {
			log.Errorf("Sitemap error: %v", err)
			return 1
		}
		seeds = append(seeds, found...)
	}
	if len(seeds) == 0 {
		log.Error("No URL given and no seeds configured")
		return 1
	}

	logAppConfig(appCfg, log)
	startPprof(f.pprofAddr, log)

	downloader := fetch.NewHTTPDownloader(appCfg, nil, entry)
	c, err := crawler.NewWebCrawler(downloader, crawler.OptionsFromConfig(appCfg), entry)
	if err != nil {
		log.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, closing crawler...", sig)
		go c.Close()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(appCfg.ShutdownTimeout + appCfg.ForceShutdownTimeout + 5*time.Second):
			log.Warn("Shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	if seed != "" {
		return crawlOne(c, seed, appCfg.Depth, f, stdout, entry)
	}

	if f.visitedLogPath != "" {
		log.Warn("-write-visited-log is only supported with a URL argument, ignoring")
	}
	results := orchestrate.NewOrchestrator(c, seeds, appCfg.Depth, f.reportPath, entry).Run()
	exitCode := 0
	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(stdout, "FAILED %s: %v\n", r.Seed, r.Error)
			exitCode = 1
			continue
		}
		printResult(stdout, r.Result)
	}
	return exitCode
}

func crawlOne(c *crawler.WebCrawler, seed string, depth int, f crawlFlags, stdout io.Writer, log *logrus.Entry) int {
	var opts []crawler.DownloadOption
	if f.visitedLogPath != "" {
		opts = append(opts, crawler.WithVisitedLog(f.visitedLogPath))
	}

	result, err := c.Download(seed, depth, opts...)
	if err != nil {
		log.Errorf("Crawl failed: %v", err)
		return 1
	}
	if f.reportPath != "" {
		if err := crawler.WriteReport(f.reportPath, result, log); err != nil {
			log.Errorf("Failed to write report: %v", err)
		}
	}
	printResult(stdout, result)
	return 0
}

// printResult writes downloaded URLs and per-URL errors, one per line
func printResult(w io.Writer, result *crawler.Result) {
	fmt.Fprintf(w, "Crawl %s of %s (depth %d) finished in %v\n",
		result.CrawlID, result.SeedURL, result.Depth, result.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Downloaded (%d):\n", len(result.Downloaded))
	for _, u := range result.Downloaded {
		fmt.Fprintf(w, "  %s\n", u)
	}
	fmt.Fprintf(w, "Errors (%d):\n", len(result.Errors))
	for _, u := range result.FailedURLs() {
		err := result.Errors[u]
		fmt.Fprintf(w, "  %s [%s] %v\n", u, utils.CategorizeError(err), err)
	}
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	envFile := fs.String("env", ".env", "Path to .env file with CRAWLER_* overrides (optional)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcrawler validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *envFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, envPath string, stdout, stderr io.Writer) int {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	appCfg, err := loadConfig(configPath, envPath, quiet)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	if len(appCfg.Seeds) > 0 {
		if err := orchestrate.ValidateSeeds(appCfg.Seeds); err != nil {
			fmt.Fprintf(stderr, "ERROR: seeds: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "OK: %d seed(s)\n", len(appCfg.Seeds))
	}

	fmt.Fprintf(stdout, "OK: downloaders=%d extractors=%d per_host=%d depth=%d visited_store=%s\n",
		appCfg.Downloaders, appCfg.Extractors, appCfg.PerHost, appCfg.Depth, appCfg.VisitedStore)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Downloaders:%d, Extractors:%d, PerHost:%d, Depth:%d, LinkFanout:%d",
		appCfg.Downloaders, appCfg.Extractors, appCfg.PerHost, appCfg.Depth, appCfg.LinkFanout)
	log.Infof("Config Shutdown: Graceful:%v, Forced:%v", appCfg.ShutdownTimeout, appCfg.ForceShutdownTimeout)
	log.Infof("Config Visited Store: %s, StateDir:%q", appCfg.VisitedStore, appCfg.StateDir)
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Config Links: RespectNofollow:%t, SameHostOnly:%t, MaxPageSize:%d bytes",
		appCfg.RespectNofollow, appCfg.SameHostOnly, appCfg.MaxPageSizeBytes)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, MaxRedirects:%d",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.MaxRedirects)
}
