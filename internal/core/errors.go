package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded means compliance would need a longer wait than allowed.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrHardLimitReached means a bucket has used its lifetime request budget.
	ErrHardLimitReached = errors.New("hard request limit reached")
	// ErrUpstreamUnavailable means the archive failed twice in a row.
	ErrUpstreamUnavailable = errors.New("archive service unavailable")
	// ErrNotFound means no capture exists within the cutoff.
	ErrNotFound = errors.New("no archived capture found")
	// ErrInvalidDate means a malformed or impossible date input.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidArgument covers other malformed tool arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RateLimitError carries the bucket and wait that caused a rejection.
type RateLimitError struct {
	Bucket   BucketKey
	Wait     time.Duration
	MaxWait  time.Duration
	Limit    int
	HardStop bool
}

func (e *RateLimitError) Error() string {
	if e.HardStop {
		return fmt.Sprintf("%s: bucket %s used all %d requests", ErrHardLimitReached, e.Bucket, e.Limit)
	}
	return fmt.Sprintf("%s: bucket %s needs %s wait, max %s", ErrRateLimitExceeded, e.Bucket, e.Wait.Round(time.Millisecond), e.MaxWait)
}

func (e *RateLimitError) Unwrap() error {
	if e.HardStop {
		return ErrHardLimitReached
	}
	return ErrRateLimitExceeded
}

// UpstreamError describes a failed archive request.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("archive %s returned %d: %v", e.Endpoint, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("archive %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("archive %s returned %d", e.Endpoint, e.StatusCode)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Unavailable wraps a transient failure that survived its retry.
func Unavailable(cause error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, cause)
}

// InvalidDate builds an ErrInvalidDate for a named field.
func InvalidDate(field, value, reason string) error {
	if reason == "" {
		reason = "use YYYY-MM-DD"
	}
	return fmt.Errorf("%w: %s %q: %s", ErrInvalidDate, field, value, reason)
}

// InvalidArgument builds an ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether a caller may retry the failed operation later.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrHardLimitReached):
		return false
	case errors.Is(err, ErrRateLimitExceeded), errors.Is(err, ErrUpstreamUnavailable):
		return true
	default:
		return false
	}
}

// IsInputError reports whether err was caused by the caller's arguments.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidArgument)
}
