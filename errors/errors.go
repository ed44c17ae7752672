package errors

import (
	"errors"
	"strings"
)

// Sentinel errors for common error conditions across the research pipeline.
var (
	// ErrEmptyQuery indicates that a run was requested without a query
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrNoSearchProvider indicates that the pipeline was built without a search provider
	ErrNoSearchProvider = errors.New("search provider is required")

	// ErrNoResults indicates that no sub-question produced a research note
	ErrNoResults = errors.New("no research notes produced")

	// ErrEmptyResponse indicates that a provider stream finished without content
	ErrEmptyResponse = errors.New("provider returned an empty response")

	// ErrSessionNotFound indicates that a requested session snapshot does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates that configuration validation failed
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCyclicDependency indicates that a plan's dependency graph contains a cycle
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrUnknownDependency indicates a dependency reference outside the plan
	ErrUnknownDependency = errors.New("unknown dependency reference")

	// ErrInvalidTransition indicates a disallowed sub-question status change
	ErrInvalidTransition = errors.New("invalid status transition")
)

// nonRetryablePatterns are lowercase substrings of provider error messages
// that retrying cannot fix: credential problems and provider-side throttling.
var nonRetryablePatterns = []string{
	"auth",
	"forbidden",
	"api key",
	"apikey",
	"api_key",
	"401",
	"403",
	"rate limit",
	"rate_limit",
	"rate-limit",
	"429",
	"quota",
}

// IsNonRetryable reports whether err should abort a retry loop immediately
// instead of backing off for another attempt.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
