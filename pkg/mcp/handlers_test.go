package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/web-crawler/pkg/config"
)

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/docs">docs</a><a href="/missing">missing</a>`)
	})
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/">home</a>`)
	})
	mux.HandleFunc("/missing", http.NotFound)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestServer(t *testing.T, reportDir string) *Server {
	t.Helper()
	cfg := &config.AppConfig{
		Downloaders:       2,
		Extractors:        2,
		PerHost:           2,
		MaxRetries:        1,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     2 * time.Millisecond,
		ShutdownTimeout:   time.Second,
	}
	_, err := cfg.Validate()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := NewServer(&ServerConfig{AppConfig: cfg, ReportDir: reportDir, Transport: "stdio", Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (map[string]any, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content type %T", result.Content[0])

	if result.IsError {
		return map[string]any{"error": text.Text}, true
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded, false
}

func TestNewServer_RequiresAppConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestHandleCrawl(t *testing.T) {
	site := testSite(t)
	s := newTestServer(t, "")

	got, isErr := callTool(t, s.handleCrawl, map[string]any{"url": site.URL + "/", "depth": 2})
	require.False(t, isErr, got["error"])

	assert.Equal(t, float64(2), got["downloaded_count"])
	assert.Equal(t, float64(1), got["error_count"])
	assert.Equal(t, []any{site.URL + "/", site.URL + "/docs"}, got["downloaded"])

	errs, ok := got["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Equal(t, site.URL+"/missing", first["url"])
	assert.Equal(t, "Fetch_HTTP_404", first["category"])
}

func TestHandleCrawl_InvalidArguments(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"MissingURL", map[string]any{}, "url parameter is required"},
		{"RelativeURL", map[string]any{"url": "docs/index.html"}, "invalid URL"},
		{"ZeroDepth", map[string]any{"url": "http://a.test/", "depth": 0}, "depth must be >= 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isErr := callTool(t, s.handleCrawl, tt.args)
			require.True(t, isErr)
			assert.Contains(t, got["error"], tt.want)
		})
	}
}

func TestStartCrawlAndJobStatus(t *testing.T) {
	site := testSite(t)
	reportDir := t.TempDir()
	s := newTestServer(t, reportDir)

	started, isErr := callTool(t, s.handleStartCrawl, map[string]any{"url": site.URL + "/", "depth": 2})
	require.False(t, isErr, started["error"])
	assert.Equal(t, "started", started["status"])
	jobID, _ := started["job_id"].(string)
	require.NotEmpty(t, jobID)

	var status map[string]any
	require.Eventually(t, func() bool {
		status, _ = callTool(t, s.handleGetJobStatus, map[string]any{"job_id": jobID, "include_urls": true})
		return status["status"] == string(JobStatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, float64(2), status["downloaded_count"])
	assert.Equal(t, float64(1), status["error_count"])
	assert.Equal(t, []any{site.URL + "/", site.URL + "/docs"}, status["downloaded"])
	assert.Len(t, status["error_details"], 1)

	entries, err := os.ReadDir(reportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	list, _ := callTool(t, s.handleListJobs, map[string]any{})
	assert.Equal(t, float64(1), list["total_jobs"])
}

func TestHandleGetJobStatus_Errors(t *testing.T) {
	s := newTestServer(t, "")

	got, isErr := callTool(t, s.handleGetJobStatus, map[string]any{})
	require.True(t, isErr)
	assert.Contains(t, got["error"], "job_id parameter is required")

	got, isErr = callTool(t, s.handleGetJobStatus, map[string]any{"job_id": "nope"})
	require.True(t, isErr)
	assert.Contains(t, got["error"], "not found")
}

func TestHandleStartCrawl_AfterShutdown(t *testing.T) {
	s := newTestServer(t, "")
	require.NoError(t, s.Shutdown(context.Background()))

	got, isErr := callTool(t, s.handleStartCrawl, map[string]any{"url": "http://a.test/"})
	require.True(t, isErr)
	assert.Contains(t, got["error"], "shutting down")

	status, _ := callTool(t, s.handleCrawlerStatus, map[string]any{})
	assert.Equal(t, true, status["closed"])
}

func TestHandleCrawlerStatus_Idle(t *testing.T) {
	s := newTestServer(t, "")
	got, isErr := callTool(t, s.handleCrawlerStatus, map[string]any{})
	require.False(t, isErr)
	assert.Equal(t, float64(0), got["active_crawls"])
	assert.Equal(t, float64(0), got["downloads_running"])
	assert.Equal(t, false, got["closed"])
}

func TestRun_UnknownTransport(t *testing.T) {
	s := newTestServer(t, "")
	s.cfg.Transport = "carrier-pigeon"
	assert.ErrorContains(t, s.Run(), "unknown transport")
}
