package ports

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrNotFound indicates that the feed has no data for the district.
	ErrNotFound = errors.New("not found")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// SourceError represents an error from a result source.
// It includes details about the source, district and any rate limit
// information.
type SourceError struct {
	// Source is the name of the result source that produced the error.
	Source string

	// DistrictID is the district that was being fetched.
	DistrictID string

	// Err is the underlying error that occurred.
	Err error

	// StatusCode holds the HTTP status code of the feed response, if any.
	StatusCode int

	// RetryAfter indicates how long to wait before retrying, if applicable.
	RetryAfter *time.Duration
}

// Error implements the error interface for SourceError.
func (e *SourceError) Error() string {
	msg := fmt.Sprintf("source error: source=%s, district=%s, err=%v", e.Source, e.DistrictID, e.Err)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is temporary and the fetch
// can be retried.
func (e *SourceError) IsRetryable() bool {
	// Only network/service-level errors are retryable; bad feeds are not
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewSourceError creates a new SourceError with the given details.
func NewSourceError(source, districtID string, err error) *SourceError {
	return &SourceError{
		Source:     source,
		DistrictID: districtID,
		Err:        err,
	}
}

// IsRetryable reports whether err, or any error it wraps, is a transient
// source failure. Errors that carry no retry information are retried
// unless they are context errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
