package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
	}{
		{
			name:      "rate limit",
			err:       &openai.APIError{HTTPStatusCode: 429, Message: "rate limit exceeded"},
			transient: true,
		},
		{
			name:      "server error",
			err:       &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"},
			transient: true,
		},
		{
			name:  "bad request",
			err:   &openai.APIError{HTTPStatusCode: 400, Message: "invalid image"},
			fatal: true,
		},
		{
			name:  "content policy",
			err:   &openai.APIError{HTTPStatusCode: 403, Message: "content policy violation"},
			fatal: true,
		},
		{
			name:  "bad credentials",
			err:   &openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"},
			fatal: true,
		},
		{
			name:      "request error 500",
			err:       &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("internal")},
			transient: true,
		},
		{
			name:      "connection refused",
			err:       fmt.Errorf("dial tcp: connection refused"),
			transient: true,
		},
		{
			name:  "unknown error is fatal",
			err:   errors.New("something unexpected"),
			fatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if IsTransient(got) != tt.transient {
				t.Errorf("IsTransient() = %v, want %v", IsTransient(got), tt.transient)
			}
			if IsFatal(got) != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", IsFatal(got), tt.fatal)
			}
			if !errors.Is(got, tt.err) && !errors.As(got, new(*openai.APIError)) && tt.err != nil {
				// The original error must stay reachable for inspection.
				var te *TransientError
				var fe *FatalError
				if !errors.As(got, &te) && !errors.As(got, &fe) {
					t.Error("classified error lost the original cause")
				}
			}
		})
	}
}

func TestClassifyPassesThroughCancellation(t *testing.T) {
	wrapped := fmt.Errorf("edit request: %w", context.Canceled)
	got := Classify(wrapped)
	if !errors.Is(got, context.Canceled) {
		t.Errorf("Classify() = %v, want context.Canceled preserved", got)
	}
	if IsTransient(got) || IsFatal(got) {
		t.Error("cancellation classified as transient or fatal")
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}
