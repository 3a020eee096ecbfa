package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// TransientError marks a failure worth retrying: rate limits, server errors,
// network timeouts. The orchestrator retries these with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("generation: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that no retry can fix: invalid requests,
// content policy rejections, bad credentials. The orchestrator aborts the
// region immediately.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("generation: fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err should abort without retrying.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// Classify wraps an API error as transient or fatal.
//
// HTTP 429 and 5xx are transient, as are network timeouts and connection
// failures. 4xx other than 429 is fatal: the request itself is wrong and
// resending it cannot succeed. Context cancellation passes through
// unwrapped so callers can distinguish shutdown from failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err}
	}
	if isConnectionError(err) {
		return &TransientError{Err: err}
	}

	return &FatalError{Err: err}
}

func classifyStatus(status int, err error) error {
	switch {
	case status == 429:
		return &TransientError{Err: err}
	case status >= 500:
		return &TransientError{Err: err}
	case status >= 400:
		return &FatalError{Err: err}
	default:
		return &TransientError{Err: err}
	}
}

func isConnectionError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"EOF",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
