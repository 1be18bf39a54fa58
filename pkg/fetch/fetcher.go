package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// RetryPolicy controls how often and how patiently a request is retried
type RetryPolicy struct {
	MaxRetries   int           // Retries after the first attempt
	InitialDelay time.Duration // Delay before the first retry; doubles each time
	MaxDelay     time.Duration // Upper bound for a single delay
}

// RetryPolicyFrom extracts the retry settings from a validated AppConfig
func RetryPolicyFrom(cfg *config.AppConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialRetryDelay,
		MaxDelay:     cfg.MaxRetryDelay,
	}
}

// backoff returns the jittered delay before the given retry attempt (attempt >= 1)
func (p RetryPolicy) backoff(attempt int) time.Duration {
	// initial * 2^(attempt-1), capped by MaxDelay
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (p.MaxDelay > 0 && delay > p.MaxDelay) {
		delay = p.MaxDelay
	}

	// +/- 10% jitter, spread is delay/5 wide centered at 0
	if spread := int64(delay) / 5; spread > 0 {
		delay += time.Duration(rand.Int63n(spread)) - delay/10
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Fetcher makes HTTP requests with retry, exponential backoff and jitter.
// Network errors, 5xx and 429 are retried; other statuses are returned immediately.
type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, policy RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		policy: policy,
		log:    log,
	}
}

// drain discards and closes a response body so the connection can be reused
func drain(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// FetchWithRetry performs req under ctx, retrying transient failures.
//
// On success the caller must close the response body. For non-retryable 4xx and other
// non-2xx statuses, both the response and a wrapped sentinel error are returned and the
// caller must still close the body.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	reqLog := f.log.WithField("url", req.URL.String())
	maxRetries := f.policy.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			reqLog.Debugf("Context done before attempt %d: %v", attempt, ctx.Err())
			if lastErr != nil {
				return nil, fmt.Errorf("context done (%w) after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context done before first attempt: %w", ctx.Err())
		}

		if attempt > 0 {
			delay := f.policy.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				reqLog.Debugf("Context done during retry delay: %v", ctx.Err())
				return nil, fmt.Errorf("context done (%w) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			drain(resp)
			// Cancellation is never retried
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reqLog.Debugf("Context done during HTTP request: %v", err)
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", err)
			lastErr = err
			continue
		}

		statusCode := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return resp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %s", utils.ErrServerHTTPError, resp.Status)
			drain(resp)

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %s", utils.ErrClientHTTPError, resp.Status)
			drain(resp)

		case statusCode >= 400:
			resLog.Debug("Client error (4xx), not retrying")
			return resp, fmt.Errorf("%w: status %s", utils.ErrClientHTTPError, resp.Status)

		default:
			resLog.Debugf("Non-retryable status: %d", statusCode)
			return resp, fmt.Errorf("%w: status %s", utils.ErrOtherHTTPError, resp.Status)
		}
	}

	reqLog.Warnf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
