package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrURLParse = errors.New("malformed URL")         // URL could not be parsed or has no host; never scheduled
	ErrFetch    = errors.New("download failed")       // Downloader failed for a scheduled URL
	ErrExtract  = errors.New("link extraction failed") // Document.ExtractLinks failed for a downloaded page

	ErrRetryFailed     = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)")

	ErrParsing          = errors.New("parsing error")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrDatabase         = errors.New("database error")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrPoolClosed       = errors.New("worker pool is shut down")
	ErrCrawlerClosed    = errors.New("crawler is closed")
)

// CategorizeError maps an error to a predefined category string for logging and reports.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Stage first, then the most specific cause underneath it
	prefix := ""
	switch {
	case errors.Is(err, ErrURLParse):
		return "URL_Malformed"
	case errors.Is(err, ErrFetch):
		prefix = "Fetch_"
	case errors.Is(err, ErrExtract):
		prefix = "Extract_"
	}

	return prefix + categorizeCause(err)
}

// categorizeCause classifies the underlying cause of a fetch or extraction failure.
func categorizeCause(err error) string {
	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "RetryFailed_NetworkTimeout"
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrParsing):
		return "Content_Parsing"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrPoolClosed), errors.Is(err, ErrCrawlerClosed):
		return "System_Shutdown"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, context.Canceled):
		return "System_ContextCanceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
