package client

import (
	"errors"
	"fmt"
)

// Startup errors returned by New. They are preconditions, not runtime
// failures: no request is ever sent when one of them is returned.
var (
	// ErrMissingCredential is returned when no access key is configured.
	ErrMissingCredential = errors.New("access key is required")

	// ErrInvalidCredential is returned when the access key cannot be sent as
	// an HTTP header value.
	ErrInvalidCredential = errors.New("access key is not a valid header value")

	// ErrInvalidBaseURL is returned when the API root cannot be parsed.
	ErrInvalidBaseURL = errors.New("invalid base url")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents connection failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError represents a failed Limitless API request with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("limitless %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify returns the ErrorClass carried by err, or "" when err is not an
// *APIError.
func Classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}
