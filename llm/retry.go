package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const maxRetries = 5

// backoffFunc returns how long to wait before retry number attempt+1.
type backoffFunc func(resp *http.Response, attempt int) time.Duration

// doWithRetry sends the request built by newReq, retrying while the status is
// one of retryOn. It returns the body of the first 200 response.
func doWithRetry(ctx context.Context, client *http.Client, provider string, newReq func() (*http.Request, error), backoff backoffFunc, retryOn ...int) ([]byte, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := newReq()
		if err != nil {
			return nil, err
		}

		httpResp, err := client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		body, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if httpResp.StatusCode == http.StatusOK {
			return body, nil
		}

		if retryable(httpResp.StatusCode, retryOn) && attempt < maxRetries {
			wait := backoff(httpResp, attempt)
			slog.Warn("API rate limited, retrying", "provider", provider, "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return nil, &APIError{Provider: provider, StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	return nil, fmt.Errorf("max retries exceeded")
}

func retryable(status int, retryOn []int) bool {
	for _, s := range retryOn {
		if s == status {
			return true
		}
	}
	return false
}

// retryAfterDelay returns how long to wait before retrying a rate-limited request.
// It respects the retry-after header if present, otherwise uses exponential backoff.
func retryAfterDelay(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("retry-after"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Exponential backoff: 5s, 10s, 20s, 40s, 60s
	wait := time.Duration(5<<uint(attempt)) * time.Second
	if wait > 60*time.Second {
		wait = 60 * time.Second
	}
	return wait
}
