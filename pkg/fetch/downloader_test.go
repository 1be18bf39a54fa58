package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

func testAppConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		MaxRetries:        1,
		InitialRetryDelay: 5 * time.Millisecond,
		MaxRetryDelay:     10 * time.Millisecond,
		UserAgent:         "test-crawler/1.0",
	}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return cfg
}

func TestHTTPDownloader_Download(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/pages/home", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/pages/home", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="next">next</a>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	d := NewHTTPDownloader(testAppConfig(t), nil, testLogger())
	doc, err := d.Download(context.Background(), server.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, "test-crawler/1.0", gotUA)

	links, err := doc.ExtractLinks()
	require.NoError(t, err)
	// Resolved against the final URL after the redirect
	assert.Equal(t, []string{server.URL + "/pages/next"}, links)
}

func TestHTTPDownloader_HTTPErrors(t *testing.T) {
	server, attempts := statusServer(t, http.StatusNotFound)

	d := NewHTTPDownloader(testAppConfig(t), testClient(), testLogger())
	doc, err := d.Download(context.Background(), server.URL)

	assert.Nil(t, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrClientHTTPError)
	assert.Equal(t, "HTTP_404", utils.CategorizeError(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestHTTPDownloader_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	t.Cleanup(server.Close)

	cfg := testAppConfig(t)
	cfg.MaxPageSizeBytes = 1024
	d := NewHTTPDownloader(cfg, testClient(), testLogger())

	_, err := d.Download(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrResponseBodyRead)
}

func TestHTTPDownloader_BadURL(t *testing.T) {
	d := NewHTTPDownloader(testAppConfig(t), testClient(), testLogger())
	_, err := d.Download(context.Background(), "http://[::1]:namedport")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestHTTPDownloader_CancelledContext(t *testing.T) {
	server, _ := statusServer(t, http.StatusOK)
	d := NewHTTPDownloader(testAppConfig(t), testClient(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Download(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
