package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// HTTPDownloader is the models.Downloader used outside of tests: a retrying GET whose body
// becomes an HTMLDocument.
type HTTPDownloader struct {
	fetcher   *Fetcher
	userAgent string
	maxBytes  int64 // 0 = unlimited
	linkOpts  LinkOptions
	log       *logrus.Entry
}

var _ models.Downloader = (*HTTPDownloader)(nil)

// NewHTTPDownloader builds a downloader from a validated AppConfig.
// If client is nil, one is created from cfg.HTTPClientSettings.
func NewHTTPDownloader(cfg *config.AppConfig, client *http.Client, baseLogger *logrus.Entry) *HTTPDownloader {
	logger := baseLogger.WithField("component", "downloader")
	if client == nil {
		client = NewClient(cfg.HTTPClientSettings, logger)
	}
	return &HTTPDownloader{
		fetcher:   NewFetcher(client, RetryPolicyFrom(cfg), logger),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxPageSizeBytes,
		linkOpts: LinkOptions{
			RespectNofollow: cfg.RespectNofollow,
			SameHostOnly:    cfg.SameHostOnly,
		},
		log: logger,
	}
}

// Download fetches rawURL and returns its body as an HTMLDocument.
func (d *HTTPDownloader) Download(ctx context.Context, rawURL string) (models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := d.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		drain(resp)
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if d.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if d.maxBytes > 0 && int64(len(body)) > d.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds max_page_size_bytes (%d)", utils.ErrResponseBodyRead, d.maxBytes)
	}

	d.log.WithFields(logrus.Fields{"url": rawURL, "bytes": len(body), "final_url": resp.Request.URL.String()}).Debug("Downloaded")
	return NewHTMLDocument(resp.Request.URL, resp.Header.Get("Content-Type"), body, d.linkOpts), nil
}
