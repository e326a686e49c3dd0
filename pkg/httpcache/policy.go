package httpcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 10 << 20

// RetryPolicy declares how a fetch is retried. It holds no business logic:
// Retryable classifies a failure and Backoff chooses the pause before the next attempt.
type RetryPolicy struct {
	// Retryable reports whether err warrants another attempt.
	Retryable func(err error) bool
	// Backoff returns the pause after the given failed attempt (1-based).
	Backoff func(attempt uint, err error) time.Duration
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts uint
}

// TransientPolicy retries once on throttling, server and network errors.
// It is used for API, search and image requests.
func TransientPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		Retryable: func(err error) bool {
			code, ok := StatusCode(err)
			if !ok {
				return true
			}
			switch code {
			case http.StatusTooManyRequests,
				http.StatusInternalServerError,
				http.StatusBadGateway,
				http.StatusServiceUnavailable,
				http.StatusGatewayTimeout:
				return true
			default:
				return false
			}
		},
		Backoff: func(uint, error) time.Duration { return 200 * time.Millisecond },
	}
}

// DocumentPolicy is the profile page policy: three attempts, linear backoff of
// 5s×attempt on 403/429/503 and 3s×attempt on timeouts or network errors.
// Any other HTTP status ends the fetch at once.
func DocumentPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Retryable:   isBlockedOrNetwork,
		Backoff: func(attempt uint, err error) time.Duration {
			if _, ok := StatusCode(err); ok {
				return time.Duration(5*attempt) * time.Second
			}
			return time.Duration(3*attempt) * time.Second
		},
	}
}

func isBlockedOrNetwork(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	code, ok := StatusCode(err)
	if !ok {
		return true
	}
	switch code {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// Fetch performs GET-style requests under policy and returns the body of the first 200 response.
// newRequest is called once per attempt (0-based) so callers can vary headers between attempts.
func Fetch(
	ctx context.Context,
	client *http.Client,
	policy RetryPolicy,
	newRequest func(attempt uint) (*http.Request, error),
	logger *slog.Logger,
) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := max(policy.MaxAttempts, 1)
	retryable := policy.Retryable
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	backoff := policy.Backoff
	if backoff == nil {
		backoff = func(uint, error) time.Duration { return 0 }
	}

	var attempt uint
	return retry.DoWithData(
		func() ([]byte, error) {
			n := attempt
			attempt++
			req, err := newRequest(n)
			if err != nil {
				return nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
			}
			return do(client, req)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return backoff(n+1, err)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.DebugContext(ctx, "retrying HTTP request", "attempt", n+1, "error", err)
		}),
	)
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}
