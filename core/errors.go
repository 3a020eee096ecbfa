package core

import (
	"fmt"
)

// ConfigError represents a pre-flight configuration error with actionable instructions.
// All ConfigErrors are fatal: they are raised before any external call is made.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration and pre-flight geometry errors
const (
	ErrCodeInvalidDimensions = "INVALID_DIMENSIONS"
	ErrCodeInvalidSquare     = "INVALID_SQUARE"
	ErrCodeInvalidStep       = "INVALID_STEP"
	ErrCodeMissingAuth       = "MISSING_AUTH"
	ErrCodeMissingConfig     = "MISSING_CONFIG"
	ErrCodeInvalidImage      = "INVALID_IMAGE"
)

// ErrInvalidDimensions returns an error for an output size smaller than the source.
// Outpainting only expands: both output dimensions must be >= the source dimensions.
func ErrInvalidDimensions(srcW, srcH, outW, outH int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidDimensions,
		Message: fmt.Sprintf("Output size %dx%d is smaller than source size %dx%d", outW, outH, srcW, srcH),
		Action:  "Choose output dimensions at least as large as the source image",
	}
}

// ErrInvalidSquare returns an error for a square size outside the allowed set.
func ErrInvalidSquare(square int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidSquare,
		Message: fmt.Sprintf("Invalid square size: %d", square),
		Action:  "Set square to 1024, 512 or 256 (sizes accepted by the image edit API)",
	}
}

// ErrInvalidStep returns an error for a step size that is not in (0, square].
func ErrInvalidStep(step, square int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidStep,
		Message: fmt.Sprintf("Invalid step size %d for square size %d", step, square),
		Action:  "Set step to a positive value no larger than the square size (default: square/2)",
	}
}

// ErrMissingAuth returns an error for missing API credentials.
func ErrMissingAuth() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: "Missing OpenAI API credentials",
		Action:  "Set OPENAI_API_KEY in the environment or .env file, or pass the key in the job",
	}
}

// ErrMissingConfig returns an error for a missing required job field.
func ErrMissingConfig(field string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required job field: %s", field),
		Action:  fmt.Sprintf("Set %s in the job file or on the command line", field),
	}
}

// ErrInvalidImage returns an error for an unreadable or undecodable input image.
func ErrInvalidImage(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidImage,
		Message: fmt.Sprintf("Cannot read input image %s: %s", path, reason),
		Action:  "Check that the path exists and points to a PNG, JPEG or GIF image",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so.
func IsConfigError(err error) (*ConfigError, bool) {
	if configErr, ok := err.(*ConfigError); ok {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError.
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
