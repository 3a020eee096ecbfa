// Package generation calls the OpenAI image edit API to fill one square
// region at a time, classifies failures as transient or fatal, and downloads
// URL-form results.
package generation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxPromptLength is the prompt character limit accepted by the image edit
// endpoint.
const MaxPromptLength = 1000

// IsAzureEndpoint returns true if the URL points to an Azure OpenAI service.
func IsAzureEndpoint(url string) bool {
	return strings.Contains(strings.ToLower(url), "azure")
}

// IsOpenAIEndpoint returns true if the URL points to the official OpenAI API.
func IsOpenAIEndpoint(url string) bool {
	return strings.Contains(strings.ToLower(url), "api.openai.com")
}

// IsLocalEndpoint returns true if the URL points to a local inference server.
func IsLocalEndpoint(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1")
}

// ClassifyEndpoint names the endpoint family a base URL targets. An empty
// URL means the client default, which is the official API.
func ClassifyEndpoint(url string) string {
	switch {
	case url == "" || IsOpenAIEndpoint(url):
		return "openai"
	case IsAzureEndpoint(url):
		return "azure"
	case IsLocalEndpoint(url):
		return "local"
	default:
		return "custom"
	}
}

// TruncatePrompt shortens a prompt to the API limit, cutting at the last
// word boundary when one exists near the end.
func TruncatePrompt(prompt string) string {
	if len(prompt) <= MaxPromptLength {
		return prompt
	}
	cut := prompt[:MaxPromptLength]
	if idx := strings.LastIndex(cut, " "); idx > MaxPromptLength/2 {
		cut = cut[:idx]
	}
	return cut
}

// SizeString formats a square edge length as the API size parameter.
func SizeString(size int) string {
	return fmt.Sprintf("%dx%d", size, size)
}

// NewCorrelationID returns a short random identifier tying together log
// entries, journal rows, and temp files for one generation attempt.
func NewCorrelationID() string {
	return uuid.NewString()[:8]
}
