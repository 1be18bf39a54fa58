package models

import "context"

// Downloader fetches a URL and returns its parsed Document.
// Implementations own retries, redirects and any other protocol details.
type Downloader interface {
	Download(ctx context.Context, url string) (Document, error)
}

// Document is a downloaded page whose outgoing links can be extracted.
type Document interface {
	ExtractLinks() ([]string, error)
}

// DownloaderFunc adapts a plain function to the Downloader interface.
type DownloaderFunc func(ctx context.Context, url string) (Document, error)

// Download calls f(ctx, url).
func (f DownloaderFunc) Download(ctx context.Context, url string) (Document, error) {
	return f(ctx, url)
}
